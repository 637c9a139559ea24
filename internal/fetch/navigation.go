package fetch

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/livedocs/internal/config"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/render"
	"git.home.luguber.info/inful/livedocs/internal/router"
)

// navigation is the state of one FetchRoute call.
type navigation struct {
	fetcher *Fetcher
	gen     uint64
	ctx     context.Context
	path    string
	qs      string
}

func (n *navigation) run() Result {
	f := n.fetcher
	cfg := f.site.Config
	f.commit(n.gen, f.renderer.RenderNameLink)

	var wg sync.WaitGroup
	if n.cover(&wg) {
		wg.Wait()
		n.done()
		return Result{Outcome: metrics.OutcomeCoverOnly, CoverOnly: true}
	}

	if cfg.LoadNavbar.Enabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if text, ok := n.nested("navbar", navbarName(cfg)); ok {
				f.commit(n.gen, func() { f.renderer.RenderNav(n.ctx, text) })
			}
		}()
	}

	res := n.main()
	wg.Wait()
	if res.Outcome != metrics.OutcomeSuperseded {
		n.done()
	}
	return res
}

func (n *navigation) superseded() bool {
	return n.ctx.Err() != nil || !n.fetcher.isCurrent(n.gen)
}

func (n *navigation) main() Result {
	f := n.fetcher
	url := f.site.Router.GetFile(n.path) + n.qs
	text, meta, err := f.wait("page", f.primary(n.ctx, url))
	if n.superseded() {
		return Result{Outcome: metrics.OutcomeSuperseded, URL: url}
	}
	if err == nil {
		return n.render(f.page(url, text, meta), metrics.OutcomeFound, url)
	}
	if res, ok := n.fallback(); ok {
		return res
	}
	return n.notFound()
}

// fallback retries once without the leading language segment when that
// segment is a configured fallback language.
func (n *navigation) fallback() (Result, bool) {
	f := n.fetcher
	segments := strings.SplitN(n.path, "/", 3)
	if len(segments) < 2 || !slices.Contains(f.site.Config.FallbackLanguages, segments[1]) {
		return Result{}, false
	}
	path := strings.TrimPrefix(n.path, "/"+segments[1])
	if path == "" {
		path = "/"
	}
	url := f.site.Router.GetFile(path) + n.qs
	text, meta, err := f.wait("fallback", f.primary(n.ctx, url))
	if n.superseded() {
		return Result{Outcome: metrics.OutcomeSuperseded, URL: url}, true
	}
	if err != nil {
		return n.notFound(), true
	}
	return n.render(f.page(url, text, meta), metrics.OutcomeFallback, url), true
}

// notFound fetches the configured 404 page, or shows the placeholder.
func (n *navigation) notFound() Result {
	f := n.fetcher
	cfg := f.site.Config
	if !cfg.NotFoundPage.Enabled() {
		return n.render(render.Page{}, metrics.OutcomePlaceholder, "")
	}
	url := f.site.Router.GetFile(cfg.NotFoundPage.Resolve(n.path, cfg.Ext)) + n.qs
	text, meta, err := f.wait("not_found", f.primary(n.ctx, url))
	if n.superseded() {
		return Result{Outcome: metrics.OutcomeSuperseded, URL: url}
	}
	if err != nil {
		return n.render(render.Page{}, metrics.OutcomePlaceholder, url)
	}
	return n.render(f.page(url, text, meta), metrics.OutcomeNotFound, url)
}

func (n *navigation) render(page render.Page, outcome metrics.PageOutcome, url string) Result {
	commit := func(write func()) bool { return n.fetcher.commit(n.gen, write) }
	if err := n.fetcher.renderer.RenderMain(n.ctx, page, commit, n.loadSidebar); err != nil {
		if !lderrors.IsCanceled(err) {
			slog.Warn("Render failed", logfields.Route(n.path), logfields.URL(url), logfields.Error(err))
		}
		return Result{Outcome: metrics.OutcomeSuperseded, URL: url}
	}
	return Result{Outcome: outcome, URL: url}
}

// loadSidebar runs after the main content is written. When no sidebar file
// exists anywhere up the tree the sidebar is built from the page headings.
func (n *navigation) loadSidebar(ctx context.Context) {
	f := n.fetcher
	cfg := f.site.Config
	if !cfg.LoadSidebar.Enabled() {
		return
	}
	text, _ := n.nested("sidebar", sidebarName(cfg))
	f.commit(n.gen, func() { f.renderer.RenderSidebar(ctx, text) })
}

// nested looks for file next to the route and then in each ancestor
// directory, one request at a time, leaf to root.
func (n *navigation) nested(kind, file string) (string, bool) {
	f := n.fetcher
	path := n.path
	for first := true; ; first = false {
		if !first {
			path = strings.TrimSuffix(path, "/")
		}
		path = router.GetParentPath(path)
		if path == "" {
			return "", false
		}
		url := f.site.Router.GetFile(path+file) + n.qs
		text, _, err := f.wait(kind, f.get(n.ctx, url))
		if err == nil {
			return text, true
		}
		if n.superseded() {
			return "", false
		}
	}
}

// cover starts the cover fetch for the route and reports whether only the
// cover is shown.
func (n *navigation) cover(wg *sync.WaitGroup) bool {
	f := n.fetcher
	cfg := f.site.Config
	if cfg.CoverPage.Mode == config.CoverOff {
		return false
	}
	name := cfg.CoverPage.Resolve(n.path)
	coverOnly := name != "" && cfg.OnlyCover
	if name == "" {
		f.commit(n.gen, func() { f.renderer.RenderCover(n.ctx, render.Page{}, coverOnly) })
		return coverOnly
	}

	url := f.site.Router.GetFile(router.GetParentPath(n.path)+name) + n.qs
	wg.Add(1)
	go func() {
		defer wg.Done()
		text, meta, err := f.wait("cover", f.get(n.ctx, url))
		page := render.Page{}
		if err == nil {
			page = f.page(url, text, meta)
		}
		f.commit(n.gen, func() { f.renderer.RenderCover(n.ctx, page, coverOnly) })
	}()
	return coverOnly
}

// done fires doneEach for the current navigation.
func (n *navigation) done() {
	if n.superseded() {
		return
	}
	n.fetcher.site.Hooks.RunDoneEach(n.ctx)
}
