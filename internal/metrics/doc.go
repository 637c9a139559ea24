// Package metrics records fetch, render and serving metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	fetcher := fetch.New(site, tr, renderer, fetch.WithRecorder(recorder))
//
// PrometheusRecorder is installed by the server when metrics are enabled and
// exposed on /metrics through HTTPHandler.
package metrics
