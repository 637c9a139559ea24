package compiler

import (
	"bytes"
	"html"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gtext "github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"git.home.luguber.info/inful/livedocs/internal/router"
)

const (
	ignoreMarker    = "{livedocs-ignore}"
	ignoreAllMarker = "{livedocs-ignore-all}"

	attrIgnore    = "data-livedocs-ignore"
	attrIgnoreAll = "data-livedocs-ignore-all"
)

// renderState is the per-compile state read by the node renderers. It is only
// touched while the owning Compiler's lock is held.
type renderState struct {
	slugs   *slugger
	toc     *[]TOCEntry
	current string
}

// nodeRenderer renders headings, links and images the way pages expect them:
// anchored headings, route-aware links and base-relative images.
type nodeRenderer struct {
	router *router.Router
	site   siteOptions
	state  *renderState
}

type siteOptions struct {
	homepage string
	basePath string
}

func (r *nodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindHeading, r.renderHeading)
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindImage, r.renderImage)
}

func (r *nodeRenderer) renderHeading(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Heading)
	if !entering {
		_, _ = w.WriteString("</span></a></h")
		_ = w.WriteByte("0123456"[n.Level])
		_, _ = w.WriteString(">\n")
		return ast.WalkContinue, nil
	}

	text := strings.TrimSpace(plainText(n, source))
	slug := r.state.slugs.slug(text)
	href := r.router.ToURL(r.state.current, router.Query{"id": slug}, "")

	if r.state.toc != nil {
		_, ignore := n.AttributeString(attrIgnore)
		_, ignoreAll := n.AttributeString(attrIgnoreAll)
		*r.state.toc = append(*r.state.toc, TOCEntry{
			Level:     n.Level,
			Title:     html.EscapeString(text),
			Slug:      href,
			IgnoreSub: ignore,
			IgnoreAll: ignoreAll,
		})
	}

	level := "0123456"[n.Level]
	_, _ = w.WriteString("<h")
	_ = w.WriteByte(level)
	_, _ = w.WriteString(` id="` + html.EscapeString(slug) + `"><a href="` + html.EscapeString(href) +
		`" data-id="` + html.EscapeString(slug) + `" class="anchor"><span>`)
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Link)
	href := string(n.Destination)
	title, opts := GetAndRemoveConfig(string(n.Title))

	var attrs []string
	if !router.IsAbsolutePath(href) && !opts.Has("ignore") {
		if href == r.site.homepage {
			href = "README"
		}
		href = r.router.ToURL(href, nil, r.state.current)
	} else if !strings.HasPrefix(href, "mailto:") {
		if _, ok := opts["target"]; !ok {
			attrs = append(attrs, `target="_blank"`, `rel="noopener"`)
		}
	}
	if v, ok := opts["target"]; ok {
		attrs = append(attrs, `target="`+html.EscapeString(v)+`"`)
	}
	if opts.Has("disabled") {
		attrs = append(attrs, "disabled")
		href = "javascript:void(0)"
	}
	if v := opts["class"]; v != "" {
		attrs = append(attrs, `class="`+html.EscapeString(v)+`"`)
	}
	if v := opts["id"]; v != "" {
		attrs = append(attrs, `id="`+html.EscapeString(v)+`"`)
	}
	if title != "" {
		attrs = append(attrs, `title="`+html.EscapeString(title)+`"`)
	}

	_, _ = w.WriteString(`<a href="` + html.EscapeString(href) + `"`)
	for _, a := range attrs {
		_, _ = w.WriteString(" " + a)
	}
	_ = w.WriteByte('>')
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderImage(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Image)
	href := string(n.Destination)
	title, opts := GetAndRemoveConfig(string(n.Title))

	var attrs []string
	if opts.Has("no-zoom") {
		attrs = append(attrs, "data-no-zoom")
	}
	if title != "" {
		attrs = append(attrs, `title="`+html.EscapeString(title)+`"`)
	}
	if size := opts["size"]; size != "" {
		width, height, found := strings.Cut(size, "x")
		if found {
			attrs = append(attrs, `width="`+html.EscapeString(width)+`"`, `height="`+html.EscapeString(height)+`"`)
		} else {
			attrs = append(attrs, `width="`+html.EscapeString(width)+`"`)
		}
	}
	if v := opts["class"]; v != "" {
		attrs = append(attrs, `class="`+html.EscapeString(v)+`"`)
	}
	if v := opts["id"]; v != "" {
		attrs = append(attrs, `id="`+html.EscapeString(v)+`"`)
	}

	src := href
	if !router.IsAbsolutePath(href) {
		src = router.JoinPath(r.site.basePath, router.GetParentPath(r.state.current), href)
	}

	_, _ = w.WriteString(`<img src="` + html.EscapeString(src) + `" data-origin="` + html.EscapeString(href) +
		`" alt="` + html.EscapeString(plainText(n, source)) + `"`)
	for _, a := range attrs {
		_, _ = w.WriteString(" " + a)
	}
	_ = w.WriteByte('>')
	return ast.WalkSkipChildren, nil
}

// plainText concatenates the literal text below n, skipping raw HTML.
func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// ignoreTransformer strips "{livedocs-ignore}" and "{livedocs-ignore-all}"
// markers (bare or inside an HTML comment) from headings and records them as
// node attributes for the TOC.
type ignoreTransformer struct{}

func (ignoreTransformer) Transform(doc *ast.Document, reader gtext.Reader, _ parser.Context) {
	source := reader.Source()
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		for c := n.FirstChild(); c != nil; {
			next := c.NextSibling()
			var value []byte
			switch t := c.(type) {
			case *ast.Text:
				value = t.Segment.Value(source)
			case *ast.RawHTML:
				for i := 0; i < t.Segments.Len(); i++ {
					s := t.Segments.At(i)
					value = append(value, s.Value(source)...)
				}
			}
			if value != nil {
				stripIgnoreMarkers(n, c, value)
			}
			c = next
		}
		return ast.WalkSkipChildren, nil
	})
}

func stripIgnoreMarkers(heading, child ast.Node, value []byte) {
	found := false
	if bytes.Contains(value, []byte(ignoreAllMarker)) {
		heading.SetAttributeString(attrIgnoreAll, true)
		value = bytes.ReplaceAll(value, []byte(ignoreAllMarker), nil)
		found = true
	}
	if bytes.Contains(value, []byte(ignoreMarker)) {
		heading.SetAttributeString(attrIgnore, true)
		value = bytes.ReplaceAll(value, []byte(ignoreMarker), nil)
		found = true
	}
	if !found {
		return
	}
	if child.Kind() == ast.KindRawHTML {
		heading.RemoveChild(heading, child)
		return
	}
	heading.ReplaceChild(heading, child, ast.NewString(value))
}
