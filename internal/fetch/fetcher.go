// Package fetch drives one navigation: it resolves the cover, page, sidebar and
// navbar fragments for a route, walks the fallback-language and 404 chain,
// and hands the content to the renderer.
//
// At most one primary request is in flight. Starting a navigation aborts the
// previous primary request and cancels its render; a superseded navigation
// never writes to the document.
package fetch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/livedocs/internal/config"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/render"
	"git.home.luguber.info/inful/livedocs/internal/router"
	"git.home.luguber.info/inful/livedocs/internal/site"
	"git.home.luguber.info/inful/livedocs/internal/transport"
)

const (
	sidebarFile = "_sidebar"
	navbarFile  = "_navbar"
)

// Result describes how a navigation ended.
type Result struct {
	Outcome   metrics.PageOutcome
	URL       string
	CoverOnly bool
}

// Fetcher orchestrates navigations for one session.
type Fetcher struct {
	site       *site.Context
	transport  transport.Transport
	renderer   *render.Renderer
	subSidebar string

	mu         sync.Mutex
	generation uint64
	current    transport.Request
	cancel     context.CancelFunc
	ready      sync.Once
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithPrerenderedSubSidebar supplies the sub-sidebar HTML rendered ahead of
// time alongside a server-rendered document.
func WithPrerenderedSubSidebar(html string) Option {
	return func(f *Fetcher) { f.subSidebar = html }
}

// New returns a fetcher that loads pages of s over t and hands them to r.
func New(s *site.Context, t transport.Transport, r *render.Renderer, opts ...Option) *Fetcher {
	f := &Fetcher{site: s, transport: t, renderer: r}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Init mounts the page shell and renders the current route, firing ready once.
// A document rendered ahead of time is not fetched: the current sidebar entry
// is re-activated and the completion hooks fire directly.
func (f *Fetcher) Init(ctx context.Context) (Result, error) {
	prerendered, err := f.renderer.Mount()
	if err != nil {
		return Result{}, err
	}
	if prerendered {
		sub := ""
		if f.site.Config.LoadSidebar.Enabled() {
			sub = f.subSidebar
		}
		f.renderer.Reactivate(sub)
		f.site.Hooks.RunDoneEach(ctx)
		f.fireReady(ctx)
		return Result{Outcome: metrics.OutcomeFound}, nil
	}
	res, err := f.Fetch(ctx)
	if err == nil && res.Outcome != metrics.OutcomeSuperseded {
		f.fireReady(ctx)
	}
	return res, err
}

func (f *Fetcher) fireReady(ctx context.Context) {
	f.ready.Do(func() { f.site.Hooks.RunReady(ctx) })
}

// Fetch renders the router's current route.
func (f *Fetcher) Fetch(ctx context.Context) (Result, error) {
	return f.FetchRoute(ctx, f.site.Router.Route())
}

// FetchRoute makes route current and renders it. It returns once the page,
// sidebar, navbar and cover are written and doneEach has fired, or as soon as
// a newer navigation supersedes it.
func (f *Fetcher) FetchRoute(ctx context.Context, route router.Route) (Result, error) {
	f.site.Router.SetRoute(route)
	route = f.site.Router.Route()
	gen, gctx := f.begin(ctx)
	nav := &navigation{
		fetcher: f,
		gen:     gen,
		ctx:     gctx,
		path:    route.Path,
		qs:      router.StringifyQuery(route.Query, "id"),
	}
	res := nav.run()

	if err := ctx.Err(); err != nil {
		return res, lderrors.WrapError(err, lderrors.CategoryCanceled, "navigation canceled").
			WithContext("route", route.Path).Info().Build()
	}
	if !f.isCurrent(gen) {
		res.Outcome = metrics.OutcomeSuperseded
	}
	f.site.Recorder.IncPageOutcome(res.Outcome)
	slog.Debug("Navigation finished",
		logfields.SessionID(f.site.ID),
		logfields.Route(route.Path),
		logfields.Outcome(string(res.Outcome)),
		logfields.Generation(gen))
	return res, nil
}

// begin starts a new generation, aborting the previous primary request and
// canceling the previous navigation's render.
func (f *Fetcher) begin(ctx context.Context) (uint64, context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
	}
	if f.current != nil {
		f.current.Abort()
	}
	f.generation++
	gctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	return f.generation, gctx
}

func (f *Fetcher) isCurrent(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation == gen
}

// commit runs fn only while gen is the current generation. Writes of a
// superseded navigation are dropped.
func (f *Fetcher) commit(gen uint64, fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation != gen {
		return false
	}
	fn()
	return true
}

// primary starts a single-flight request, aborting whichever primary request
// is still pending.
func (f *Fetcher) primary(ctx context.Context, url string) transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil {
		f.current.Abort()
	}
	f.current = f.transport.Get(ctx, url, true, f.site.Config.RequestHeaders)
	return f.current
}

// Transport is the source the fetcher reads from.
func (f *Fetcher) Transport() transport.Transport { return f.transport }

// Pending returns the URL of the current primary request, or "".
func (f *Fetcher) Pending() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return ""
	}
	return f.current.URL()
}

// get starts a request outside the single-flight slot.
func (f *Fetcher) get(ctx context.Context, url string) transport.Request {
	return f.transport.Get(ctx, url, false, f.site.Config.RequestHeaders)
}

// wait settles req and records its duration under kind.
func (f *Fetcher) wait(kind string, req transport.Request) (string, transport.Meta, error) {
	started := time.Now()
	text, meta, err := req.Wait()
	f.site.Recorder.ObserveFetchDuration(kind, time.Since(started), metrics.ResultFromError(err))
	if err != nil && !lderrors.IsCanceled(err) {
		slog.Debug("Fetch failed", logfields.Kind(kind), logfields.URL(req.URL()), logfields.Error(err))
	}
	return text, meta, err
}

func (f *Fetcher) page(url, text string, meta transport.Meta) render.Page {
	return render.Page{
		Text:  text,
		Found: true,
		Meta: render.PageMeta{
			UpdatedAt:    meta.UpdatedAt,
			LastModified: meta.LastModified,
			IsHTML:       strings.HasSuffix(stripQuery(url), ".html"),
			IsRemoteURL:  router.IsExternal(url, f.site.Config.Origin),
		},
	}
}

func stripQuery(url string) string {
	path, _, _ := strings.Cut(url, "?")
	return path
}

func sidebarName(cfg *config.Site) string { return cfg.LoadSidebar.File(sidebarFile, cfg.Ext) }
func navbarName(cfg *config.Site) string  { return cfg.LoadNavbar.File(navbarFile, cfg.Ext) }
