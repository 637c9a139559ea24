package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/server/responses"
	"git.home.luguber.info/inful/livedocs/internal/version"
)

// ReadinessFunc reports whether the server can render pages.
type ReadinessFunc func(ctx context.Context) error

// Backends names the content source and embed cache in readiness payloads.
type Backends struct {
	Source string
	Cache  string
}

// MonitoringHandlers contains monitoring-related HTTP handlers.
type MonitoringHandlers struct {
	started      time.Time
	backends     Backends
	ready        ReadinessFunc
	errorAdapter *errors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates monitoring handlers. A nil ready func always
// reports ready.
func NewMonitoringHandlers(started time.Time, backends Backends, ready ReadinessFunc) *MonitoringHandlers {
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}
	return &MonitoringHandlers{
		started:      started,
		backends:     backends,
		ready:        ready,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleHealthCheck reports liveness.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := &responses.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Uptime:    time.Since(h.started).Seconds(),
	}
	if err := writeJSONPretty(w, r, http.StatusOK, health); err != nil {
		internalErr := errors.WrapError(err, errors.CategoryInternal, "failed to write health response").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

// HandleReadiness reports whether pages can be rendered.
func (h *MonitoringHandlers) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if err := h.ready(r.Context()); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.RuntimeError("not ready").WithCause(err).Warning().Build())
		return
	}
	ready := &responses.ReadyResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Source:    h.backends.Source,
		Cache:     h.backends.Cache,
	}
	if err := writeJSONPretty(w, r, http.StatusOK, ready); err != nil {
		internalErr := errors.WrapError(err, errors.CategoryInternal, "failed to write readiness response").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}
