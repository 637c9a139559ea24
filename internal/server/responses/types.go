// Package responses defines the JSON response types of the render server.
package responses

import "time"

// HealthResponse represents the liveness check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Cache     string    `json:"cache"`
}

// RenderResponse describes one rendered route.
type RenderResponse struct {
	Route     string    `json:"route"`
	Outcome   string    `json:"outcome"`
	URL       string    `json:"url,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}
