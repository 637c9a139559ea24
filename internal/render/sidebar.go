package render

import (
	"context"
	"time"

	"git.home.luguber.info/inful/livedocs/internal/dom"
)

// RenderSidebar writes the sidebar from text, or from the page headings when
// text is empty, and marks the entry for the current route. The page's
// sub-sidebar is appended under that entry when the sidebar came from a file.
func (r *Renderer) RenderSidebar(ctx context.Context, text string) {
	started := time.Now()
	defer func() { r.site.Recorder.ObserveRenderDuration("sidebar", time.Since(started)) }()

	cfg := r.site.Config
	doc := r.site.Document
	c := r.site.Compiler

	if cfg.HideSidebar {
		doc.Remove("aside.sidebar")
		doc.Remove("button.sidebar-toggle")
		doc.ToggleClass(".content", "no-sidebar", true)
		c.SubSidebar(0)
		r.setTitle(dom.Active{}, false)
		return
	}

	doc.SetHTML(dom.SelectorSidebar, c.Sidebar(text, cfg.MaxLevel))
	active, ok := doc.ActivateLinks(dom.SelectorSidebar, r.site.CurrentURL(), true)
	if cfg.LoadSidebar.Enabled() && ok {
		if sub := c.SubSidebar(cfg.SubMaxLevel); sub != "" {
			doc.AppendToActiveParent(active, sub)
		}
	} else {
		c.SubSidebar(0)
	}
	r.setTitle(active, ok)

	if cfg.AutoHeader && ok {
		doc.PrependUnlessFirst(dom.SelectorMainID, "h1", c.Header(active.Text, 1))
	}
}

func (r *Renderer) setTitle(active dom.Active, ok bool) {
	title := r.baseTitle
	switch {
	case r.title != nil && r.title() != "":
		title = r.title()
	case ok && active.Title != "":
		title = active.Title
	case ok:
		title = active.Text + " - " + r.baseTitle
	}
	r.site.Document.SetTitle(title)
}

// RenderNav writes the navbar and marks its entry for the current route.
func (r *Renderer) RenderNav(_ context.Context, text string) {
	if text != "" {
		r.site.Document.SetHTML(dom.SelectorNav, r.site.Compiler.CompileText(text))
	}
	if r.site.Config.LoadNavbar.Enabled() {
		r.site.Document.ActivateLinks(dom.SelectorNav, r.site.CurrentURL(), false)
	}
}

// RenderNameLink points the site name at the configured link for the route.
func (r *Renderer) RenderNameLink() {
	doc := r.site.Document
	if !doc.Has(dom.SelectorNameLink) {
		return
	}
	href, ok := r.site.Config.NameLink.Resolve(r.site.Router.Route().Path)
	if !ok {
		href = r.site.Router.ToURL("/", nil, "")
	}
	doc.SetAttr(dom.SelectorNameLink, "href", href)
}

// Reactivate marks the current sidebar entry of a document rendered ahead of
// time and attaches the sub-sidebar that was rendered with it.
func (r *Renderer) Reactivate(subSidebar string) {
	doc := r.site.Document
	active, ok := doc.ActivateLinks(dom.SelectorSidebar, r.site.CurrentURL(), true)
	if ok && subSidebar != "" {
		doc.AppendToActiveParent(active, subSidebar)
	}
	r.RenderNameLink()
}
