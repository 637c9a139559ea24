package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/livedocs/internal/config"
	"git.home.luguber.info/inful/livedocs/internal/embedcache"
	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/server/handlers"
	smw "git.home.luguber.info/inful/livedocs/internal/server/middleware"
	"git.home.luguber.info/inful/livedocs/internal/server/responses"
	"git.home.luguber.info/inful/livedocs/internal/session"
	"git.home.luguber.info/inful/livedocs/internal/transport/transporttest"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	fake := transporttest.New().
		Set("/README.md", "# Home\n").
		Set("/guide.md", "# Guide\n\nsteps\n")
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	sessions := session.NewFactory(
		config.Site{Name: "Docs", Ext: ".md", Homepage: "README.md", MaxLevel: 6},
		session.Options{Transport: fake, Cache: embedcache.NewMemory(), Recorder: rec})
	return New(config.ServerConfig{Addr: "127.0.0.1:0"}, Options{
		Sessions:       sessions,
		Recorder:       rec,
		Backends:       handlers.Backends{Source: "http", Cache: "memory"},
		MetricsHandler: metrics.HTTPHandler(reg),
	})
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPageRendersRoute(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/guide")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Equal(t, "found", rec.Header().Get(handlers.OutcomeHeader))
	require.NotEmpty(t, rec.Header().Get(smw.RequestIDHeader))
	require.Contains(t, rec.Body.String(), "<p>steps</p>")
}

func TestPageMissingRouteIs404(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/missing")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "placeholder", rec.Header().Get(handlers.OutcomeHeader))
	require.Contains(t, rec.Body.String(), "404 - Not found")
}

func TestRequestIDIsKept(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(smw.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, "abc-123", rec.Header().Get(smw.RequestIDHeader))
}

func TestRenderAPI(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/render?route=/guide")

	require.Equal(t, http.StatusOK, rec.Code)
	var body responses.RenderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "/guide", body.Route)
	require.Equal(t, "found", body.Outcome)
	require.Equal(t, "/guide.md", body.URL)
	require.Contains(t, body.Content, "steps")
	require.NotEmpty(t, body.SessionID)
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
	require.Equal(t, http.StatusServiceUnavailable, get(t, s, "/readyz").Code)

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	rec := get(t, s, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	var body responses.ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "memory", body.Cache)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	get(t, s, "/guide")

	rec := get(t, s, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "livedocs_page_outcomes_total")
	require.Contains(t, rec.Body.String(), "livedocs_http_request_duration_seconds")
}

func TestMetricsCanBeDisabled(t *testing.T) {
	off := false
	s := New(config.ServerConfig{Metrics: &off}, Options{
		Sessions:       session.NewFactory(config.Site{Ext: ".md"}, session.Options{Transport: transporttest.New()}),
		MetricsHandler: metrics.HTTPHandler(prom.NewRegistry()),
	})

	rec := get(t, s, "/metrics")

	require.NotEqual(t, "found", rec.Header().Get(handlers.OutcomeHeader))
	require.NotContains(t, rec.Body.String(), "# HELP")
}
