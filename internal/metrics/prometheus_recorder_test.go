package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveFetchDuration("page", 150*time.Millisecond, ResultSuccess)
	pr.IncPageOutcome(OutcomeFound)
	pr.IncPageOutcome(OutcomeFound)
	pr.IncEmbedCache(true)
	pr.IncEmbedCache(false)
	pr.ObserveRenderDuration("main", time.Millisecond)
	pr.ObserveHTTPRequest("/*", 200, time.Millisecond)
	pr.IncPrewarmRun(true)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 6)
	require.InDelta(t, 2, testutil.ToFloat64(pr.pageOutcomes.WithLabelValues("found")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.embedCache.WithLabelValues("hit")), 0)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	require.NotPanics(t, func() {
		pr.IncPageOutcome(OutcomeNotFound)
		pr.IncEmbedCache(true)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncPageOutcome(OutcomePlaceholder)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `livedocs_page_outcomes_total{outcome="placeholder"} 1`)
}

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)
