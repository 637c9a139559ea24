// Package session wires one viewing session: a page document, its router and
// compiler, the hook registry, the embed resolver and the fetch orchestrator.
//
// Sessions share a transport and an embed cache with the rest of the process.
// Everything else belongs to the session and is dropped with it.
package session

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/livedocs/internal/config"
	"git.home.luguber.info/inful/livedocs/internal/dom"
	"git.home.luguber.info/inful/livedocs/internal/embed"
	"git.home.luguber.info/inful/livedocs/internal/embedcache"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/fetch"
	"git.home.luguber.info/inful/livedocs/internal/hooks"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/render"
	"git.home.luguber.info/inful/livedocs/internal/site"
	"git.home.luguber.info/inful/livedocs/internal/transport"
)

// sharedCache backs sessions created without an explicit cache. Entries are
// keyed by raw page text and live for the whole process.
var sharedCache = embedcache.NewMemory()

// Options carries the shared dependencies of a session.
type Options struct {
	Transport transport.Transport
	// Cache defaults to a process-wide memory cache.
	Cache     embed.Cache
	Recorder  metrics.Recorder
	Plugins   []hooks.Plugin

	// Page is the document to render into. Empty means the default page.
	// A page without a mount element is treated as rendered ahead of time.
	Page string
	// SubSidebar is the sub-sidebar HTML rendered together with Page.
	SubSidebar string

	ScriptRunner render.ScriptRunner
	View         render.ViewFramework
}

// Session is a single viewer of a site.
type Session struct {
	site     *site.Context
	fetcher  *fetch.Fetcher
	renderer *render.Renderer
	resolver *embed.Resolver
	tasks    *render.TaskQueue
}

// New builds a session for cfg. cfg is copied; later changes to the caller's
// value do not reach the session.
func New(cfg config.Site, opts Options) (*Session, error) {
	if opts.Transport == nil {
		return nil, lderrors.ConfigError("session requires a transport").Build()
	}
	if opts.Cache == nil {
		opts.Cache = sharedCache
	}
	doc, err := document(cfg, opts.Page)
	if err != nil {
		return nil, err
	}

	reg := hooks.New(opts.Plugins...)
	var fm *hooks.FrontMatter
	if cfg.FrontMatter {
		fm = hooks.NewFrontMatter()
		reg.Use(fm)
	}

	s := &Session{tasks: &render.TaskQueue{}}
	s.site = site.New(&cfg, doc, reg, opts.Recorder)

	resolverOpts := []embed.Option{
		embed.WithHeaders(cfg.RequestHeaders),
		embed.WithRecorder(s.site.Recorder),
	}
	if fm != nil {
		resolverOpts = append(resolverOpts, embed.WithPreprocess(hooks.StripFrontMatter))
	}
	s.resolver = embed.New(s.site.Compiler, opts.Transport, opts.Cache, resolverOpts...)

	renderOpts := []render.Option{render.WithTaskQueue(s.tasks)}
	if opts.ScriptRunner != nil {
		renderOpts = append(renderOpts, render.WithScriptRunner(opts.ScriptRunner))
	}
	if opts.View != nil {
		renderOpts = append(renderOpts, render.WithViewFramework(opts.View))
	}
	if fm != nil {
		renderOpts = append(renderOpts, render.WithTitle(fm.Title))
	}
	s.renderer = render.New(s.site, s.resolver, renderOpts...)

	var fetchOpts []fetch.Option
	if opts.SubSidebar != "" {
		fetchOpts = append(fetchOpts, fetch.WithPrerenderedSubSidebar(opts.SubSidebar))
	}
	s.fetcher = fetch.New(s.site, opts.Transport, s.renderer, fetchOpts...)
	return s, nil
}

func document(cfg config.Site, page string) (*dom.Document, error) {
	if page == "" {
		title := cfg.Name
		if title == "" {
			title = "livedocs"
		}
		return dom.DefaultPage(title)
	}
	return dom.Parse(page)
}

func (s *Session) ID() string { return s.site.ID }

// Site exposes the session state, mainly for registering hooks before Init.
func (s *Session) Site() *site.Context { return s.site }

// Hooks returns the session's hook registry.
func (s *Session) Hooks() *hooks.Registry { return s.site.Hooks }

// Init mounts the page and renders the current route.
func (s *Session) Init(ctx context.Context) (fetch.Result, error) {
	res, err := s.fetcher.Init(ctx)
	s.drain(ctx)
	return res, err
}

// InitAt makes raw the current route, then mounts and renders it.
func (s *Session) InitAt(ctx context.Context, raw string) (fetch.Result, error) {
	s.site.Router.SetRoute(s.site.Router.Parse(raw))
	return s.Init(ctx)
}

// Navigate renders raw, which may be a hash route ("#/guide?x=1"), a path or
// a full URL carrying one of those.
func (s *Session) Navigate(ctx context.Context, raw string) (fetch.Result, error) {
	route := s.site.Router.Parse(raw)
	res, err := s.fetcher.FetchRoute(ctx, route)
	s.drain(ctx)
	return res, err
}

// HTML serializes the current document.
func (s *Session) HTML() (string, error) {
	return s.site.Document.HTML()
}

// Title is the current document title.
func (s *Session) Title() string {
	return s.site.Document.Title()
}

// Markdown fetches the page for raw and returns its markdown with every
// include directive expanded.
func (s *Session) Markdown(ctx context.Context, raw string) (string, error) {
	route := s.site.Router.Parse(raw)
	url := s.site.Router.GetFile(route.Path)
	req := s.fetcher.Transport().Get(ctx, url, true, s.site.Config.RequestHeaders)
	text, _, err := req.Wait()
	if err != nil {
		return "", err
	}
	if s.site.Config.FrontMatter {
		text = hooks.StripFrontMatter(text)
	}
	ts, err := s.resolver.Resolve(ctx, text)
	if err != nil {
		return "", err
	}
	return s.site.Compiler.Markdown(ts), nil
}

// drain runs the scripts deferred by the last render.
func (s *Session) drain(ctx context.Context) {
	if n := s.tasks.Drain(ctx); n > 0 {
		slog.Debug("Ran deferred tasks", logfields.SessionID(s.site.ID), slog.Int("count", n))
	}
}
