// Package dom holds the page document that rendered fragments are inserted
// into. All access goes through Document, which serializes mutations.
package dom

import (
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Substitution targets.
const (
	SelectorMain       = ".markdown-section"
	SelectorMainID     = "#main"
	SelectorSidebar    = ".sidebar-nav"
	SelectorNav        = "nav"
	SelectorCover      = ".cover"
	SelectorCoverMain  = ".cover-main"
	SelectorMainRegion = "main"
	SelectorNameLink   = ".app-name-link"
	SelectorMount      = "#app"
)

// Document is a parsed HTML page guarded by a mutex.
type Document struct {
	mu  sync.Mutex
	doc *goquery.Document
}

// Parse reads a full HTML page.
func Parse(page string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

// HTML serializes the whole page.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}

// Has reports whether selector matches anything.
func (d *Document) Has(selector string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).Length() > 0
}

// SetHTML replaces the inner HTML of the first match. It reports whether the
// target exists.
func (d *Document) SetHTML(selector, content string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return false
	}
	sel.SetHtml(content)
	return true
}

// ReplaceWith replaces the first match, element included.
func (d *Document) ReplaceWith(selector, content string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return false
	}
	sel.ReplaceWithHtml(content)
	return true
}

// InnerHTML returns the inner HTML of the first match.
func (d *Document) InnerHTML(selector string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out, _ := d.doc.Find(selector).First().Html()
	return out
}

// Text returns the text content of the first match.
func (d *Document) Text(selector string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).First().Text()
}

// ToggleClass adds or removes class on every match.
func (d *Document) ToggleClass(selector, class string, on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector)
	if on {
		sel.AddClass(class)
	} else {
		sel.RemoveClass(class)
	}
}

// HasClass reports whether the first match carries class.
func (d *Document) HasClass(selector, class string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).First().HasClass(class)
}

// Attr returns an attribute of the first match.
func (d *Document) Attr(selector, name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).First().Attr(name)
}

// SetAttr sets an attribute on every match.
func (d *Document) SetAttr(selector, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find(selector).SetAttr(name, value)
}

// SetStyle sets one inline style property on every match.
func (d *Document) SetStyle(selector, property, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		s.SetAttr("style", setStyleProperty(style, property, value))
	})
}

func setStyleProperty(style, property, value string) string {
	var decls []string
	replaced := false
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		name, _, _ := strings.Cut(decl, ":")
		if strings.EqualFold(strings.TrimSpace(name), property) {
			if !replaced {
				decls = append(decls, property+": "+value)
				replaced = true
			}
			continue
		}
		decls = append(decls, decl)
	}
	if !replaced {
		decls = append(decls, property+": "+value)
	}
	return strings.Join(decls, "; ")
}

// Remove deletes every match.
func (d *Document) Remove(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find(selector).Remove()
}

// Prepend inserts content as the first children of the first match.
func (d *Document) Prepend(selector, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find(selector).First().PrependHtml(content)
}

// PrependUnlessFirst inserts content before the first element child of the
// first match unless that child is already a tag element. An empty match is
// left alone.
func (d *Document) PrependUnlessFirst(selector, tag, content string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	first := d.doc.Find(selector).First().Children().First()
	if first.Length() == 0 || goquery.NodeName(first) == tag {
		return false
	}
	sel := d.doc.Find(selector).First()
	sel.PrependHtml(content)
	return true
}

// Title returns the document title.
func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find("title").First().Text()
}

// SetTitle sets the document title, creating the element when missing.
func (d *Document) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find("title").First()
	if sel.Length() == 0 {
		d.doc.Find("head").First().AppendHtml("<title></title>")
		sel = d.doc.Find("title").First()
	}
	sel.SetText(title)
}

// Script is an inline script found in rendered content.
type Script struct {
	Code string
	Type string
}

// FirstScript returns the first inline script directly under selector whose
// type is not a template. Scripts with an empty body are skipped.
func (d *Document) FirstScript(selector string) (Script, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var found Script
	ok := false
	d.doc.Find(selector + " > script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		typ, _ := s.Attr("type")
		if strings.Contains(typ, "template") {
			return true
		}
		found = Script{Code: s.Text(), Type: typ}
		ok = true
		return false
	})
	if !ok || strings.TrimSpace(found.Code) == "" {
		return Script{}, false
	}
	return found, true
}

// Active is the link marked active by ActivateLinks.
type Active struct {
	Href  string
	Title string
	Text  string
	node  *html.Node
}

// ActivateLinks marks the link under container whose href is the longest
// prefix of current. The class goes on the link's parent when isParent is
// set; every other link loses it. Links without a title get their text.
func (d *Document) ActivateLinks(container, current string, isParent bool) (Active, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	type candidate struct {
		sel  *goquery.Selection
		href string
	}
	var links []candidate
	d.doc.Find(container + " a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links = append(links, candidate{sel: s, href: decode(href)})
	})
	sort.SliceStable(links, func(i, j int) bool { return len(links[i].href) > len(links[j].href) })

	current = decode(current)
	var active Active
	found := false
	for _, l := range links {
		node := l.sel
		if isParent {
			node = l.sel.Parent()
		}
		title, hasTitle := l.sel.Attr("title")
		if !hasTitle || title == "" {
			title = l.sel.Text()
			l.sel.SetAttr("title", title)
		}
		if !found && l.href != "" && strings.HasPrefix(current, l.href) {
			node.AddClass("active")
			active = Active{Href: l.href, Title: title, Text: l.sel.Text(), node: l.sel.Get(0)}
			found = true
			continue
		}
		node.RemoveClass("active")
	}
	return active, found
}

// AppendToActiveParent appends content to the parent of an active link.
func (d *Document) AppendToActiveParent(a Active, content string) bool {
	if a.node == nil || a.node.Parent == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.FindNodes(a.node.Parent).AppendHtml(content)
	return true
}

// Mutate runs fn with exclusive access to the underlying document.
func (d *Document) Mutate(fn func(doc *goquery.Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.doc)
}

func decode(s string) string {
	if out, err := url.PathUnescape(s); err == nil {
		return out
	}
	return s
}
