// Package compiler turns markdown into page HTML. It lexes documents into
// top-level block tokens so include directives can be spliced in before the
// final render, and renders headings, links and images relative to the
// current route.
package compiler

import (
	"bytes"
	"html"
	"log/slog"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	ghtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"git.home.luguber.info/inful/livedocs/internal/config"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/router"
)

// Compiler compiles token streams for one viewing session. Calls are
// serialized; the heading list of the last page compile is kept for the
// sub-sidebar.
type Compiler struct {
	router *router.Router
	site   *config.Site
	md     goldmark.Markdown

	mu    sync.Mutex
	state *renderState
	toc   []TOCEntry
}

// New creates a compiler resolving links through r.
func New(site *config.Site, r *router.Router) *Compiler {
	state := &renderState{slugs: newSlugger()}
	nr := &nodeRenderer{
		router: r,
		site:   siteOptions{homepage: site.Homepage, basePath: site.BasePath},
		state:  state,
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
					chromahtml.PreventSurroundingPre(true),
				),
				highlighting.WithWrapperRenderer(wrapCode),
			),
		),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(ignoreTransformer{}, 500)),
		),
		goldmark.WithRendererOptions(
			ghtml.WithUnsafe(),
			renderer.WithNodeRenderers(util.Prioritized(nr, 100)),
		),
	)
	return &Compiler{router: r, site: site, md: md, state: state}
}

func wrapCode(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
	if !entering {
		_, _ = w.WriteString("</code></pre>\n")
		return
	}
	lang, ok := ctx.Language()
	if !ok || len(lang) == 0 {
		_, _ = w.WriteString("<pre><code>")
		return
	}
	l := html.EscapeString(string(lang))
	_, _ = w.WriteString(`<pre data-lang="` + l + `"><code class="lang-` + l + `">`)
}

// Compile renders a page stream. Headings are collected as the page TOC.
func (c *Compiler) Compile(ts *TokenStream) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toc = nil
	return c.compile(ts, &c.toc)
}

// CompileText lexes and renders markdown without touching the page TOC. It
// serves sidebar, navbar, cover and embedded fragments.
func (c *Compiler) CompileText(text string) string {
	if text == "" {
		return ""
	}
	ts := c.Lex(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compile(ts, nil)
}

// CompileFragment renders a stream without touching the page TOC.
func (c *Compiler) CompileFragment(ts *TokenStream) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compile(ts, nil)
}

func (c *Compiler) compile(ts *TokenStream, toc *[]TOCEntry) string {
	if ts == nil || len(ts.Tokens) == 0 {
		return ""
	}
	c.state.slugs = newSlugger()
	c.state.toc = toc
	c.state.current = c.router.GetCurrentPath()
	defer func() { c.state.toc = nil }()

	defs := linkDefinitions(ts.Links)
	var out strings.Builder
	var buf bytes.Buffer
	for _, tok := range ts.Tokens {
		if tok.Kind == KindHTML {
			out.WriteString(tok.Text)
			out.WriteByte('\n')
			continue
		}
		src := tok.Text
		if tok.Kind == KindCode {
			src = restoreCode(src)
		}
		if defs != "" {
			src += "\n\n" + defs
		}
		buf.Reset()
		if err := c.md.Convert([]byte(src), &buf); err != nil {
			slog.Warn("Failed to compile block", logfields.Kind(string(tok.Kind)), logfields.Error(err))
			out.WriteString("<p>" + html.EscapeString(tok.Text) + "</p>\n")
			continue
		}
		out.Write(buf.Bytes())
	}
	return out.String()
}

// restoreCode puts placeholder backticks back into a fenced block and widens
// the fence so restored backticks cannot close it early.
func restoreCode(text string) string {
	if !strings.Contains(text, CodePlaceholder) {
		return text
	}
	text = strings.ReplaceAll(text, CodePlaceholder, "`")
	first, rest, ok := strings.Cut(text, "\n")
	if !ok {
		return text
	}
	lastNL := strings.LastIndex(rest, "\n")
	if lastNL < 0 {
		return text
	}
	body := rest[:lastNL]
	lang := strings.TrimLeft(first, "`~ ")
	fence := strings.Repeat("`", max(3, longestRun(body, '`')+1))
	return fence + lang + "\n" + body + "\n" + fence + "\n"
}

func longestRun(s string, ch byte) int {
	best, cur := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == ch {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}

// TOC returns a copy of the headings collected by the last Compile.
func (c *Compiler) TOC() []TOCEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TOCEntry, len(c.toc))
	copy(out, c.toc)
	return out
}

// Sidebar renders sidebar markdown, or a heading tree of the current page
// down to maxLevel when text is empty.
func (c *Compiler) Sidebar(text string, maxLevel int) string {
	if text != "" {
		return c.CompileText(text)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var toc []TOCEntry
	for i := 0; i < len(c.toc); i++ {
		entry := c.toc[i]
		if !entry.IgnoreSub {
			toc = append(toc, entry)
			continue
		}
		for i+1 < len(c.toc) && c.toc[i+1].Level > entry.Level {
			i++
		}
	}
	return treeHTML(genTree(toc, maxLevel))
}

// SubSidebar renders the page headings down to level for insertion under the
// active sidebar entry, then forgets them. Level 0 disables it.
func (c *Compiler) SubSidebar(level int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	toc := c.toc
	c.toc = nil
	if level <= 0 {
		return ""
	}
	for _, entry := range toc {
		if entry.IgnoreAll {
			return ""
		}
	}
	if len(toc) > 0 && toc[0].Level == 1 {
		toc = toc[1:]
	}
	kept := make([]TOCEntry, 0, len(toc))
	for _, entry := range toc {
		if !entry.IgnoreSub {
			kept = append(kept, entry)
		}
	}
	return treeHTML(genTree(kept, level))
}

// Header renders an anchored heading outside of any document.
func (c *Compiler) Header(text string, level int) string {
	level = min(max(level, 1), 6)
	slug := Slugify(text)
	href := c.router.ToURL(c.router.GetCurrentPath(), router.Query{"id": slug}, "")
	n := string("0123456"[level])
	return `<h` + n + ` id="` + html.EscapeString(slug) + `"><a href="` + html.EscapeString(href) +
		`" data-id="` + html.EscapeString(slug) + `" class="anchor"><span>` + text + `</span></a></h` + n + `>`
}

// Cover renders cover page markdown. The page TOC is left untouched.
func (c *Compiler) Cover(text string) string {
	return c.CompileText(text)
}

// Markdown serializes a stream back to markdown with placeholders restored.
func (c *Compiler) Markdown(ts *TokenStream) string {
	if ts == nil {
		return ""
	}
	parts := make([]string, 0, len(ts.Tokens)+1)
	for _, tok := range ts.Tokens {
		text := tok.Text
		if tok.Kind == KindCode {
			text = restoreCode(text)
		}
		parts = append(parts, strings.TrimRight(text, "\n"))
	}
	if defs := linkDefinitions(ts.Links); defs != "" {
		parts = append(parts, strings.TrimRight(defs, "\n"))
	}
	return strings.Join(parts, "\n\n") + "\n"
}
