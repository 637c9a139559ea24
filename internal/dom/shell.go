package dom

import (
	"bytes"
	"fmt"
	"html/template"
)

// Shell describes the page chrome mounted in place of the #app element.
type Shell struct {
	Name  string
	Logo  string
	Repo  string
	Cover bool
	Nav   bool
}

const shellHTML = `{{if .Repo}}<a href="{{.Repo}}" title="View source" class="github-corner" aria-label="View source"><svg viewBox="0 0 250 250" aria-hidden="true"><path d="M0,0 L115,115 L130,115 L142,142 L250,250 L250,0 Z"></path></svg></a>{{end}}` +
	`{{if .Cover}}<section class="cover show"><div class="mask"></div><div class="cover-main"></div></section>{{end}}` +
	`<main><button class="sidebar-toggle" aria-label="Menu"><div class="sidebar-toggle-button"><span></span><span></span><span></span></div></button>` +
	`<aside class="sidebar">{{if .Name}}<h1 class="app-name"><a class="app-name-link" data-nosearch>{{if .Logo}}<img alt="{{.Name}}" src="{{.Logo}}">{{else}}{{.Name}}{{end}}</a></h1>{{end}}` +
	`<div class="sidebar-nav"></div></aside>` +
	`<section class="content"><article class="markdown-section" id="main"></article></section></main>`

const pageHTML = `<!DOCTYPE html><html><head><meta charset="UTF-8"><title>{{.}}</title></head><body><div id="app"></div></body></html>`

var (
	shellTemplate = template.Must(template.New("shell").Parse(shellHTML))
	pageTemplate  = template.Must(template.New("page").Parse(pageHTML))
)

// DefaultPage returns an empty page with a mount element.
func DefaultPage(title string) (*Document, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, title); err != nil {
		return nil, fmt.Errorf("render page template: %w", err)
	}
	return Parse(buf.String())
}

// Mount replaces the #app element with the page chrome. When the document has
// no mount element it was rendered ahead of time and Mount reports true
// without touching it.
func (d *Document) Mount(s Shell) (prerendered bool, err error) {
	if !d.Has(SelectorMount) {
		return true, nil
	}
	var buf bytes.Buffer
	if err := shellTemplate.Execute(&buf, s); err != nil {
		return false, fmt.Errorf("render shell template: %w", err)
	}
	d.ReplaceWith(SelectorMount, buf.String())

	if s.Nav && !d.Has(SelectorNav) {
		d.Prepend("body", "<nav></nav>")
	}
	d.ToggleClass(SelectorNav, "app-nav", true)
	d.ToggleClass(SelectorNav, "no-badge", s.Repo == "")
	d.ToggleClass("body", "ready", true)
	return false, nil
}
