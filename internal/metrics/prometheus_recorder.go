package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	fetchDuration  *prom.HistogramVec
	pageOutcomes   *prom.CounterVec
	embedCache     *prom.CounterVec
	renderDuration *prom.HistogramVec
	httpDuration   *prom.HistogramVec
	prewarmRuns    *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		fetchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "livedocs",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of fragment fetches by kind and result",
			Buckets:   prom.DefBuckets,
		}, []string{"kind", "result"}),
		pageOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "livedocs",
			Name:      "page_outcomes_total",
			Help:      "Route navigations by outcome",
		}, []string{"outcome"}),
		embedCache: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "livedocs",
			Name:      "embed_cache_lookups_total",
			Help:      "Embed cache lookups by result",
		}, []string{"result"}),
		renderDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "livedocs",
			Name:      "render_duration_seconds",
			Help:      "Duration of render stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		httpDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "livedocs",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of served HTTP requests",
			Buckets:   prom.DefBuckets,
		}, []string{"route", "status"}),
		prewarmRuns: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "livedocs",
			Name:      "prewarm_runs_total",
			Help:      "Prewarm job runs by result",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.fetchDuration, pr.pageOutcomes, pr.embedCache, pr.renderDuration, pr.httpDuration, pr.prewarmRuns)
	return pr
}

func (p *PrometheusRecorder) ObserveFetchDuration(kind string, d time.Duration, result ResultLabel) {
	if p == nil || p.fetchDuration == nil {
		return
	}
	p.fetchDuration.WithLabelValues(kind, string(result)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPageOutcome(outcome PageOutcome) {
	if p == nil || p.pageOutcomes == nil {
		return
	}
	p.pageOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncEmbedCache(hit bool) {
	if p == nil || p.embedCache == nil {
		return
	}
	p.embedCache.WithLabelValues(hitLabel(hit)).Inc()
}

func (p *PrometheusRecorder) ObserveRenderDuration(stage string, d time.Duration) {
	if p == nil || p.renderDuration == nil {
		return
	}
	p.renderDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveHTTPRequest(route string, status int, d time.Duration) {
	if p == nil || p.httpDuration == nil {
		return
	}
	p.httpDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPrewarmRun(success bool) {
	if p == nil || p.prewarmRuns == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.prewarmRuns.WithLabelValues(res).Inc()
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// HTTPHandler serves the metrics gathered by g.
func HTTPHandler(g prom.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
