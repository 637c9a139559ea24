// Package render turns fetched fragments into HTML and writes them into the
// page document: main content, sidebar, navbar, cover and the name link.
package render

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"git.home.luguber.info/inful/livedocs/internal/config"
	"git.home.luguber.info/inful/livedocs/internal/dom"
	"git.home.luguber.info/inful/livedocs/internal/embed"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/router"
	"git.home.luguber.info/inful/livedocs/internal/site"
)

// NotFoundHTML is inserted when neither the page nor a 404 page was found.
const NotFoundHTML = "<h1>404 - Not found</h1>"

// PageMeta describes where a fetched fragment came from.
type PageMeta struct {
	UpdatedAt    time.Time
	LastModified string
	IsHTML       bool
	IsRemoteURL  bool
}

// Page is the outcome of a primary fetch. Found is false when nothing could
// be fetched and the placeholder is shown.
type Page struct {
	Text  string
	Found bool
	Meta  PageMeta
}

// Renderer writes compiled fragments into the session document.
type Renderer struct {
	site      *site.Context
	resolver  *embed.Resolver
	sanitizer *bluemonday.Policy
	scripts   ScriptRunner
	view      ViewFramework
	tasks     *TaskQueue
	title     func() string
	baseTitle string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithScriptRunner executes inline page scripts.
func WithScriptRunner(s ScriptRunner) Option { return func(r *Renderer) { r.scripts = s } }

// WithViewFramework remounts a view instance on every render.
func WithViewFramework(v ViewFramework) Option { return func(r *Renderer) { r.view = v } }

// WithTitle supplies a page title that takes precedence over the sidebar entry.
func WithTitle(fn func() string) Option { return func(r *Renderer) { r.title = fn } }

// WithTaskQueue shares a deferred task queue with the caller.
func WithTaskQueue(q *TaskQueue) Option { return func(r *Renderer) { r.tasks = q } }

// New returns a renderer writing into the document of s. Includes are
// expanded by resolver.
func New(s *site.Context, resolver *embed.Resolver, opts ...Option) *Renderer {
	r := &Renderer{
		site:      s,
		resolver:  resolver,
		sanitizer: NewSanitizer(),
		tasks:     &TaskQueue{},
		baseTitle: s.Document.Title(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tasks returns the queue deferred work is scheduled on.
func (r *Renderer) Tasks() *TaskQueue { return r.tasks }

var (
	base64Image  = regexp.MustCompile(`^data:image`)
	externalLink = regexp.MustCompile(`(?:https?:)?//`)
)

// Mount installs the page chrome. It reports true when the document was
// rendered ahead of time and left untouched.
func (r *Renderer) Mount() (bool, error) {
	cfg := r.site.Config
	logo := cfg.Logo
	if logo != "" && !base64Image.MatchString(logo) && !externalLink.MatchString(logo) && logo[0] != '.' {
		logo = router.JoinPath(r.site.Router.GetBasePath(), logo)
	}
	prerendered, err := r.site.Document.Mount(dom.Shell{
		Name:  cfg.Name,
		Logo:  logo,
		Repo:  cfg.Repo,
		Cover: cfg.CoverPage.Mode != config.CoverOff,
		Nav:   cfg.LoadNavbar.Enabled(),
	})
	if err != nil {
		return false, lderrors.RenderError("mount page shell").WithCause(err).Build()
	}
	r.RenderNameLink()
	return prerendered, nil
}

// Commit runs write only while the navigation that produced it is still
// current, and reports whether it ran. The check and the write must happen
// under one lock.
type Commit func(write func()) bool

// RenderMain renders page into the main content area and then calls next.
// Markdown runs through beforeEach, embed resolution, compilation, sanitizing
// for remote origins, updated-at templating and afterEach. HTML skips the
// compiler. Nothing is written when ctx is canceled first or when commit
// refuses the write. A nil commit writes unconditionally.
func (r *Renderer) RenderMain(ctx context.Context, page Page, commit Commit, next func(context.Context)) error {
	started := time.Now()
	defer func() { r.site.Recorder.ObserveRenderDuration("main", time.Since(started)) }()

	if !page.Found {
		if err := r.writeMain(ctx, commit, NotFoundHTML); err != nil {
			return err
		}
		if next != nil {
			next(ctx)
		}
		return nil
	}

	content := r.site.Hooks.RunBeforeEach(ctx, page.Text)
	html := content
	if !page.Meta.IsHTML {
		ts, err := r.resolver.Resolve(ctx, content)
		if err != nil {
			return err
		}
		html = r.site.Compiler.Compile(ts)
		if page.Meta.IsRemoteURL {
			html = r.sanitizer.Sanitize(html)
		}
	}
	html = FormatUpdated(html, page.Meta, r.site.Config.FormatUpdated)
	html = r.site.Hooks.RunAfterEach(ctx, html)

	if err := r.writeMain(ctx, commit, html); err != nil {
		return err
	}
	if next != nil {
		next(ctx)
	}
	return nil
}

func (r *Renderer) writeMain(ctx context.Context, commit Commit, html string) error {
	if err := checkCurrent(ctx); err != nil {
		return err
	}
	write := func() {
		r.site.Document.SetHTML(dom.SelectorMain, html)
		if !r.site.Config.LoadSidebar.Enabled() {
			r.RenderSidebar(ctx, "")
		}
		r.scheduleScripts(ctx)
	}
	if commit == nil {
		write()
		return nil
	}
	if !commit(write) {
		return lderrors.CanceledError("render superseded").Build()
	}
	return nil
}

func checkCurrent(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return lderrors.WrapError(err, lderrors.CategoryCanceled, "render superseded").Info().Build()
	}
	return nil
}

// scheduleScripts queues the first inline script of the page, or remounts the
// view framework when no script runs.
func (r *Renderer) scheduleScripts(ctx context.Context) {
	cfg := r.site.Config
	ran := false
	if r.scripts != nil && cfg.ShouldExecuteScript(r.view != nil) {
		if script, ok := r.site.Document.FirstScript(dom.SelectorMain); ok {
			ran = true
			r.tasks.Defer(func(ctx context.Context) {
				if err := r.scripts.Run(ctx, script); err != nil {
					slog.Warn("Page script failed", logfields.Route(r.site.Router.Route().Path), logfields.Error(err))
				}
			})
		}
	}
	if r.view == nil || ran || (cfg.ExecuteScript != nil && !*cfg.ExecuteScript) {
		return
	}
	r.view.Destroy(ctx)
	if err := r.view.Mount(ctx, dom.SelectorMainID); err != nil {
		slog.Warn("View mount failed", logfields.Route(r.site.Router.Route().Path), logfields.Error(err))
	}
}
