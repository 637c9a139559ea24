package metrics

import (
	"time"

	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
)

// ResultLabel enumerates fetch result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultNotFound ResultLabel = "not_found"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// ResultFromError maps a fetch error to its result label.
func ResultFromError(err error) ResultLabel {
	switch {
	case err == nil:
		return ResultSuccess
	case lderrors.IsNotFound(err):
		return ResultNotFound
	case lderrors.IsCanceled(err):
		return ResultCanceled
	default:
		return ResultFailed
	}
}

// PageOutcome is how a route navigation ended.
type PageOutcome string

const (
	OutcomeFound       PageOutcome = "found"
	OutcomeFallback    PageOutcome = "fallback"
	OutcomeNotFound    PageOutcome = "not_found"
	OutcomePlaceholder PageOutcome = "placeholder"
	OutcomeCoverOnly   PageOutcome = "cover_only"
	OutcomeSuperseded  PageOutcome = "superseded"
)

// Recorder defines observability hooks for fetching and rendering. All
// methods must be safe to call on the zero value of an implementation.
type Recorder interface {
	ObserveFetchDuration(kind string, d time.Duration, result ResultLabel)
	IncPageOutcome(outcome PageOutcome)
	IncEmbedCache(hit bool)
	ObserveRenderDuration(stage string, d time.Duration)
	ObserveHTTPRequest(route string, status int, d time.Duration)
	IncPrewarmRun(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveFetchDuration(string, time.Duration, ResultLabel) {}
func (NoopRecorder) IncPageOutcome(PageOutcome)                              {}
func (NoopRecorder) IncEmbedCache(bool)                                      {}
func (NoopRecorder) ObserveRenderDuration(string, time.Duration)             {}
func (NoopRecorder) ObserveHTTPRequest(string, int, time.Duration)           {}
func (NoopRecorder) IncPrewarmRun(bool)                                      {}
