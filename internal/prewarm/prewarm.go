// Package prewarm periodically renders known routes so the shared embed cache
// and transport response cache stay warm, optionally re-synchronizing the
// content source first.
package prewarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/livedocs/internal/config"
	"git.home.luguber.info/inful/livedocs/internal/fetch"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/retry"
	"git.home.luguber.info/inful/livedocs/internal/session"
	"git.home.luguber.info/inful/livedocs/internal/transport"
)

const jobName = "prewarm"

// Opener opens a session rendered at a route.
type Opener interface {
	Open(ctx context.Context, raw string) (*session.Session, fetch.Result, error)
}

// Runner wraps a gocron scheduler running the prewarm job.
type Runner struct {
	scheduler gocron.Scheduler
	sessions  Opener
	cfg       config.PrewarmConfig
	source    transport.Refresher
	policy    retry.Policy
	recorder  metrics.Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithRefresher re-synchronizes source before each run when refresh_source
// is set.
func WithRefresher(source transport.Refresher) Option { return func(r *Runner) { r.source = source } }

func WithRetryPolicy(p retry.Policy) Option { return func(r *Runner) { r.policy = p } }

func WithRecorder(rec metrics.Recorder) Option { return func(r *Runner) { r.recorder = rec } }

// New creates a runner. Nothing is scheduled until Start.
func New(cfg config.PrewarmConfig, sessions Opener, opts ...Option) (*Runner, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	r := &Runner{
		scheduler: s,
		sessions:  sessions,
		cfg:       cfg,
		policy:    retry.DefaultPolicy(),
		recorder:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start schedules the job every cfg.Interval, first run immediately, and
// starts the scheduler. Runs never overlap.
func (r *Runner) Start(ctx context.Context) error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.cfg.Interval),
		gocron.NewTask(func() {
			if err := r.RunOnce(ctx); err != nil {
				slog.Warn("Prewarm run failed", logfields.Job(jobName), logfields.Error(err))
			}
		}),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create prewarm job: %w", err)
	}
	slog.Info("Starting prewarm scheduler", slog.Duration("interval", r.cfg.Interval), slog.Int("routes", len(r.cfg.Routes)))
	r.scheduler.Start()
	return nil
}

// Stop gracefully shuts down the scheduler.
func (r *Runner) Stop() error {
	slog.Info("Stopping prewarm scheduler")
	return r.scheduler.Shutdown()
}

// RunOnce refreshes the source when configured, then renders every route.
// A route that resolves to a 404 page is logged, not failed.
func (r *Runner) RunOnce(ctx context.Context) error {
	started := time.Now()
	var errs []error
	if r.cfg.RefreshSource && r.source != nil {
		if err := r.policy.Do(ctx, "source refresh", r.source.Refresh); err != nil {
			errs = append(errs, fmt.Errorf("refresh source: %w", err))
		}
	}
	for _, route := range r.cfg.Routes {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, res, err := r.sessions.Open(ctx, route)
		if err != nil {
			errs = append(errs, fmt.Errorf("render %s: %w", route, err))
			continue
		}
		if res.Outcome == metrics.OutcomeNotFound || res.Outcome == metrics.OutcomePlaceholder {
			slog.Warn("Prewarmed route not found", logfields.Route(route), logfields.Outcome(string(res.Outcome)))
		}
	}
	err := errors.Join(errs...)
	r.recorder.IncPrewarmRun(err == nil)
	slog.Info("Prewarm run finished",
		logfields.Job(jobName),
		slog.Int("routes", len(r.cfg.Routes)),
		logfields.DurationMS(float64(time.Since(started).Microseconds())/1000),
		slog.Bool("ok", err == nil))
	return err
}
