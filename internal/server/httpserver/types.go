package httpserver

import (
	"net/http"

	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/server/handlers"
)

// Options configures the server wiring that depends on the runtime.
type Options struct {
	Sessions handlers.SessionOpener
	Recorder metrics.Recorder

	// Backends are reported by the readiness endpoint.
	Backends handlers.Backends
	// Ready gates /readyz in addition to the server's own lifecycle.
	Ready handlers.ReadinessFunc

	// MetricsHandler is mounted at /metrics when metrics are enabled.
	MetricsHandler http.Handler
}
