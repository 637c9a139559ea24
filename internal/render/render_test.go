package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/livedocs/internal/config"
	"git.home.luguber.info/inful/livedocs/internal/dom"
	"git.home.luguber.info/inful/livedocs/internal/embed"
	"git.home.luguber.info/inful/livedocs/internal/embedcache"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/hooks"
	"git.home.luguber.info/inful/livedocs/internal/router"
	"git.home.luguber.info/inful/livedocs/internal/site"
	"git.home.luguber.info/inful/livedocs/internal/transport/transporttest"
)

type fixture struct {
	site     *site.Context
	renderer *Renderer
	fake     *transporttest.Fake
}

func newFixture(t *testing.T, cfg config.Site, opts ...Option) *fixture {
	t.Helper()
	if cfg.Ext == "" {
		cfg.Ext = ".md"
	}
	if cfg.MaxLevel == 0 {
		cfg.MaxLevel = 6
	}
	doc, err := dom.DefaultPage("Docs")
	require.NoError(t, err)
	s := site.New(&cfg, doc, hooks.New(), nil)
	fake := transporttest.New()
	resolver := embed.New(s.Compiler, fake, embedcache.NewMemory())
	r := New(s, resolver, opts...)
	_, err = r.Mount()
	require.NoError(t, err)
	return &fixture{site: s, renderer: r, fake: fake}
}

func (f *fixture) navigate(path string) {
	f.site.Router.SetRoute(router.Route{Path: path})
}

func found(text string) Page { return Page{Text: text, Found: true} }

func TestRenderMainMarkdown(t *testing.T) {
	f := newFixture(t, config.Site{Name: "Docs"})
	f.navigate("/guide")
	nextCalls := 0

	err := f.renderer.RenderMain(context.Background(), found("# Guide\n\ntext\n"), nil, func(context.Context) { nextCalls++ })

	require.NoError(t, err)
	require.Equal(t, 1, nextCalls)
	main := f.site.Document.InnerHTML(dom.SelectorMain)
	require.Contains(t, main, `<h1 id="guide">`)
	require.Contains(t, main, "<p>text</p>")
	require.Contains(t, f.site.Document.InnerHTML(dom.SelectorSidebar), "Guide")
}

func TestRenderMainNotFound(t *testing.T) {
	f := newFixture(t, config.Site{})
	called := false

	err := f.renderer.RenderMain(context.Background(), Page{}, nil, func(context.Context) { called = true })

	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, NotFoundHTML, f.site.Document.InnerHTML(dom.SelectorMain))
}

func TestRenderMainHTMLSkipsCompiler(t *testing.T) {
	f := newFixture(t, config.Site{})
	var before, after int
	f.site.Hooks.BeforeEach(func(_ context.Context, s string) (string, error) { before++; return s, nil })
	f.site.Hooks.AfterEach(func(_ context.Context, h string) (string, error) { after++; return h, nil })

	page := Page{Text: "<div># not markdown</div>", Found: true, Meta: PageMeta{IsHTML: true}}
	require.NoError(t, f.renderer.RenderMain(context.Background(), page, nil, nil))

	require.Equal(t, "<div># not markdown</div>", f.site.Document.InnerHTML(dom.SelectorMain))
	require.Equal(t, 1, before)
	require.Equal(t, 1, after)
}

func TestRenderMainHooksTransform(t *testing.T) {
	f := newFixture(t, config.Site{})
	f.site.Hooks.BeforeEach(func(_ context.Context, s string) (string, error) { return s + "\nappended\n", nil })
	f.site.Hooks.AfterEach(func(_ context.Context, h string) (string, error) { return "<div class=\"wrap\">" + h + "</div>", nil })

	require.NoError(t, f.renderer.RenderMain(context.Background(), found("start\n"), nil, nil))

	main := f.site.Document.InnerHTML(dom.SelectorMain)
	require.Contains(t, main, `<div class="wrap">`)
	require.Contains(t, main, "appended")
}

func TestRenderMainSanitizesRemote(t *testing.T) {
	f := newFixture(t, config.Site{})
	page := Page{Text: "hi <script>alert(1)</script> <b onclick=\"x()\">bold</b>\n", Found: true, Meta: PageMeta{IsRemoteURL: true}}

	require.NoError(t, f.renderer.RenderMain(context.Background(), page, nil, nil))

	main := f.site.Document.InnerHTML(dom.SelectorMain)
	require.NotContains(t, main, "<script>")
	require.NotContains(t, main, "onclick")
	require.Contains(t, main, "<b>bold</b>")
}

func TestRenderMainResolvesEmbeds(t *testing.T) {
	f := newFixture(t, config.Site{})
	f.fake.Set("/part.md", "included text\n")

	require.NoError(t, f.renderer.RenderMain(context.Background(), found("[p](part.md ':include')\n"), nil, nil))

	require.Contains(t, f.site.Document.InnerHTML(dom.SelectorMain), "<p>included text</p>")
}

func TestRenderMainCanceledWritesNothing(t *testing.T) {
	f := newFixture(t, config.Site{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false

	err := f.renderer.RenderMain(ctx, found("# Late\n"), nil, func(context.Context) { called = true })

	require.Error(t, err)
	require.True(t, lderrors.IsCanceled(err))
	require.False(t, called)
	require.Empty(t, f.site.Document.InnerHTML(dom.SelectorMain))
}

func TestRenderMainRefusedCommitWritesNothing(t *testing.T) {
	f := newFixture(t, config.Site{})
	f.navigate("/guide")
	commits := 0
	stale := func(func()) bool {
		commits++
		return false
	}
	called := false
	sidebar := f.site.Document.InnerHTML(dom.SelectorSidebar)

	err := f.renderer.RenderMain(context.Background(), found("# Stale\n"), stale, func(context.Context) { called = true })

	require.Error(t, err)
	require.True(t, lderrors.IsCanceled(err))
	require.Equal(t, 1, commits)
	require.False(t, called)
	require.Empty(t, f.site.Document.InnerHTML(dom.SelectorMain))
	require.Equal(t, sidebar, f.site.Document.InnerHTML(dom.SelectorSidebar))
}

func TestRenderMainWritesInsideCommit(t *testing.T) {
	f := newFixture(t, config.Site{})
	f.navigate("/guide")
	var during string
	current := func(write func()) bool {
		write()
		during = f.site.Document.InnerHTML(dom.SelectorMain)
		return true
	}

	require.NoError(t, f.renderer.RenderMain(context.Background(), found("# Fresh\n"), current, nil))

	require.Contains(t, during, `<h1 id="fresh">`)
	require.Equal(t, during, f.site.Document.InnerHTML(dom.SelectorMain))
}

func TestRenderMainUpdatedAt(t *testing.T) {
	f := newFixture(t, config.Site{FormatUpdated: config.FormatUpdated{Layout: "{YYYY}-{MM}-{DD}"}})
	page := found("Updated " + UpdatedPlaceholder + "\n")
	page.Meta.UpdatedAt = time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	require.NoError(t, f.renderer.RenderMain(context.Background(), page, nil, nil))

	require.Contains(t, f.site.Document.InnerHTML(dom.SelectorMain), "Updated 2024-03-09")
}

type recordingRunner struct{ scripts []dom.Script }

func (r *recordingRunner) Run(_ context.Context, s dom.Script) error {
	r.scripts = append(r.scripts, s)
	return nil
}

type recordingView struct{ destroyed, mounted int }

func (v *recordingView) Destroy(context.Context)             { v.destroyed++ }
func (v *recordingView) Mount(context.Context, string) error { v.mounted++; return nil }

func TestScriptDeferredToTaskQueue(t *testing.T) {
	runner := &recordingRunner{}
	on := true
	f := newFixture(t, config.Site{ExecuteScript: &on}, WithScriptRunner(runner))

	require.NoError(t, f.renderer.RenderMain(context.Background(), found("text\n\n<script>first()</script>\n\n<script>second()</script>\n"), nil, nil))

	require.Empty(t, runner.scripts)
	require.Equal(t, 1, f.renderer.Tasks().Drain(context.Background()))
	require.Len(t, runner.scripts, 1)
	require.Equal(t, "first()", runner.scripts[0].Code)
}

func TestViewFrameworkRemountedWithoutScript(t *testing.T) {
	view := &recordingView{}
	f := newFixture(t, config.Site{}, WithViewFramework(view))

	require.NoError(t, f.renderer.RenderMain(context.Background(), found("one\n"), nil, nil))
	require.NoError(t, f.renderer.RenderMain(context.Background(), found("two\n"), nil, nil))

	require.Equal(t, 2, view.destroyed)
	require.Equal(t, 2, view.mounted)
}

func TestViewFrameworkSkippedWhenScriptsDisabled(t *testing.T) {
	view := &recordingView{}
	off := false
	f := newFixture(t, config.Site{ExecuteScript: &off}, WithViewFramework(view))

	require.NoError(t, f.renderer.RenderMain(context.Background(), found("one\n"), nil, nil))

	require.Zero(t, view.mounted)
}

func TestRenderSidebarFromFileWithSubSidebar(t *testing.T) {
	f := newFixture(t, config.Site{Name: "Docs", LoadSidebar: config.FileToggle{Mode: config.ToggleDefault}, SubMaxLevel: 2})
	f.navigate("/guide")
	require.NoError(t, f.renderer.RenderMain(context.Background(), found("# Guide\n\n## Setup\n"), nil, nil))

	f.renderer.RenderSidebar(context.Background(), "- [Home](/)\n- [Guide](guide.md)\n")

	sidebar := f.site.Document.InnerHTML(dom.SelectorSidebar)
	require.Contains(t, sidebar, `<li class="active"><a href="#/guide" title="Guide">Guide</a><ul class="app-sub-sidebar">`)
	require.Contains(t, sidebar, `href="#/guide?id=setup"`)
	require.Equal(t, "Guide", f.site.Document.Title())
}

func TestRenderSidebarAutoHeader(t *testing.T) {
	f := newFixture(t, config.Site{LoadSidebar: config.FileToggle{Mode: config.ToggleDefault}, AutoHeader: true})
	f.navigate("/intro")
	require.NoError(t, f.renderer.RenderMain(context.Background(), found("Just text\n"), nil, nil))

	f.renderer.RenderSidebar(context.Background(), "- [Introduction](intro.md)\n")

	main := f.site.Document.InnerHTML(dom.SelectorMainID)
	require.Contains(t, main, `<h1 id="introduction">`)
	require.Less(t, indexOf(main, "<h1"), indexOf(main, "<p>Just text</p>"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestRenderSidebarHidden(t *testing.T) {
	f := newFixture(t, config.Site{HideSidebar: true})

	f.renderer.RenderSidebar(context.Background(), "")

	require.False(t, f.site.Document.Has("aside.sidebar"))
	require.False(t, f.site.Document.Has("button.sidebar-toggle"))
}

func TestRenderSidebarTitleFromFrontMatter(t *testing.T) {
	f := newFixture(t, config.Site{}, WithTitle(func() string { return "From front matter" }))

	require.NoError(t, f.renderer.RenderMain(context.Background(), found("# Page\n"), nil, nil))

	require.Equal(t, "From front matter", f.site.Document.Title())
}

func TestRenderNav(t *testing.T) {
	f := newFixture(t, config.Site{LoadNavbar: config.FileToggle{Mode: config.ToggleDefault}})
	f.navigate("/api/client")

	f.renderer.RenderNav(context.Background(), "- [Guide](guide.md)\n- [API](api/)\n")

	nav := f.site.Document.InnerHTML(dom.SelectorNav)
	require.Contains(t, nav, `<a href="#/api/" title="API" class="active">API</a>`)
	require.Contains(t, nav, `<a href="#/guide" title="Guide">Guide</a>`)

	f.navigate("/guide")
	f.renderer.RenderNav(context.Background(), "")
	nav = f.site.Document.InnerHTML(dom.SelectorNav)
	require.Contains(t, nav, `<a href="#/guide" title="Guide" class="active">Guide</a>`)
	require.Contains(t, nav, `<a href="#/api/" title="API">API</a>`)
}

func TestRenderCoverBackgroundImage(t *testing.T) {
	f := newFixture(t, config.Site{CoverPage: config.CoverPage{Mode: config.CoverSingle, Path: "_coverpage"}})

	f.renderer.RenderCover(context.Background(), found("# Project\n\n![](bg.png)\n"), true)

	doc := f.site.Document
	require.True(t, doc.HasClass(dom.SelectorCover, "show"))
	require.True(t, doc.HasClass(dom.SelectorCover, "has-mask"))
	require.True(t, doc.HasClass(dom.SelectorMainRegion, "hidden"))
	style, _ := doc.Attr(dom.SelectorCover, "style")
	require.Equal(t, "background-image: url(/bg.png); background-size: cover; background-position: center center", style)
	require.NotContains(t, doc.InnerHTML(dom.SelectorCoverMain), "<img")
	require.Contains(t, doc.InnerHTML(dom.SelectorCoverMain), "Project")
}

func TestRenderCoverColor(t *testing.T) {
	f := newFixture(t, config.Site{CoverPage: config.CoverPage{Mode: config.CoverSingle, Path: "_coverpage"}})

	f.renderer.RenderCover(context.Background(), found("# Project\n\n![color](#f0f0f0)\n"), false)

	style, _ := f.site.Document.Attr(dom.SelectorCover, "style")
	require.Equal(t, "background: #f0f0f0", style)
	require.False(t, f.site.Document.HasClass(dom.SelectorMainRegion, "hidden"))
}

func TestRenderCoverHiddenWithoutText(t *testing.T) {
	f := newFixture(t, config.Site{CoverPage: config.CoverPage{Mode: config.CoverSingle, Path: "_coverpage"}})

	f.renderer.RenderCover(context.Background(), Page{}, false)

	require.False(t, f.site.Document.HasClass(dom.SelectorCover, "show"))
}

func TestRenderNameLink(t *testing.T) {
	f := newFixture(t, config.Site{Name: "Docs", NameLink: config.NameLink{ByPath: []config.PrefixPage{{Prefix: "/zh-cn/", Path: "#/zh-cn/"}}}})
	f.navigate("/zh-cn/guide")

	f.renderer.RenderNameLink()

	href, _ := f.site.Document.Attr(dom.SelectorNameLink, "href")
	require.Equal(t, "#/zh-cn/", href)
}

func TestMountJoinsLogoWithBasePath(t *testing.T) {
	f := newFixture(t, config.Site{Name: "Docs", Logo: "img/logo.png", BasePath: "/docs/"})

	src, _ := f.site.Document.Attr(dom.SelectorNameLink+" img", "src")

	require.Equal(t, "/docs/img/logo.png", src)
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 3, 120_000_000, time.UTC)

	require.Equal(t, "2024-03-09 07:05:03.120", FormatDate("{YYYY}-{MM}-{DD} {HH}:{mm}:{ss}.{fff}", ts))
	require.Equal(t, "March 09, 2024", FormatDate("long", ts))
}

func TestFormatUpdatedFallsBackToHeader(t *testing.T) {
	out := FormatUpdated("at "+UpdatedPlaceholder, PageMeta{LastModified: "Sat, 09 Mar 2024 07:05:03 GMT"}, config.FormatUpdated{})

	require.Equal(t, "at Sat, 09 Mar 2024 07:05:03 GMT", out)
	require.Equal(t, "at "+UpdatedPlaceholder, FormatUpdated("at "+UpdatedPlaceholder, PageMeta{}, config.FormatUpdated{}))
}

func TestTaskQueueDrainsNestedTasks(t *testing.T) {
	q := &TaskQueue{}
	var order []int
	q.Defer(func(context.Context) {
		order = append(order, 1)
		q.Defer(func(context.Context) { order = append(order, 3) })
	})
	q.Defer(func(context.Context) { order = append(order, 2) })

	require.Equal(t, 3, q.Drain(context.Background()))
	require.Equal(t, []int{1, 2, 3}, order)
	require.Zero(t, q.Len())
}
