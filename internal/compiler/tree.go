package compiler

import (
	"html"
	"regexp"
	"strings"
)

// TOCEntry is a heading collected while compiling a page.
type TOCEntry struct {
	Level int
	// Title is escaped heading text.
	Title string
	// Slug is the route URL of the heading anchor.
	Slug      string
	IgnoreSub bool
	IgnoreAll bool
	children  []*TOCEntry
}

// genTree nests entries by level. A heading whose parent level is missing
// becomes a root; entries deeper than maxLevel are dropped.
func genTree(toc []TOCEntry, maxLevel int) []*TOCEntry {
	var roots []*TOCEntry
	last := map[int]*TOCEntry{}
	for i := range toc {
		entry := toc[i]
		entry.children = nil
		node := &entry
		level := node.Level
		if level == 0 {
			level = 1
		}
		if level > maxLevel {
			continue
		}
		if parent, ok := last[level-1]; ok {
			parent.children = append(parent.children, node)
		} else {
			roots = append(roots, node)
		}
		last[level] = node
	}
	return roots
}

var stripTags = regexp.MustCompile(`<[^>]+>`)

// treeHTML renders a nested list of section links.
func treeHTML(nodes []*TOCEntry) string {
	if len(nodes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<ul class="app-sub-sidebar">`)
	for _, n := range nodes {
		title := stripTags.ReplaceAllString(n.Title, "")
		b.WriteString(`<li><a class="section-link" href="` + html.EscapeString(n.Slug) + `" title="` + title + `">` + n.Title + `</a></li>`)
		b.WriteString(treeHTML(n.children))
	}
	b.WriteString(`</ul>`)
	return b.String()
}
