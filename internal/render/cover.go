package render

import (
	"context"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/livedocs/internal/dom"
	"git.home.luguber.info/inful/livedocs/internal/router"
)

// coverBackground matches a trailing paragraph holding only an image, which
// sets the cover background instead of being shown. An image with alt text
// "color" sets a background color.
var coverBackground = regexp.MustCompile(`<p><img.*?data-origin="(.*?)"[^a]+alt="(.*?)">([^<]*?)</p>$`)

// RenderCover shows or hides the cover. In cover-only mode the main region is
// hidden while the cover is up.
func (r *Renderer) RenderCover(_ context.Context, cover Page, coverOnly bool) {
	doc := r.site.Document
	doc.ToggleClass(dom.SelectorMainRegion, "hidden", coverOnly)
	if !cover.Found || cover.Text == "" {
		doc.ToggleClass(dom.SelectorCover, "show", false)
		return
	}
	doc.ToggleClass(dom.SelectorCover, "show", true)

	html := cover.Text
	if !cover.Meta.IsHTML {
		html = r.site.Compiler.Cover(cover.Text)
	}
	html = strings.TrimSpace(html)
	if m := coverBackground.FindStringSubmatch(html); m != nil {
		if m[2] == "color" {
			doc.SetStyle(dom.SelectorCover, "background", m[1]+m[3])
		} else {
			path := m[1]
			if !router.IsAbsolutePath(path) {
				path = router.JoinPath(r.site.Router.GetBasePath(), path)
			}
			doc.ToggleClass(dom.SelectorCover, "has-mask", true)
			doc.SetStyle(dom.SelectorCover, "background-image", "url("+path+")")
			doc.SetStyle(dom.SelectorCover, "background-size", "cover")
			doc.SetStyle(dom.SelectorCover, "background-position", "center center")
		}
		html = strings.Replace(html, m[0], "", 1)
	}
	doc.SetHTML(dom.SelectorCoverMain, html)
}
