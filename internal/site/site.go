// Package site holds the per-session state the fetch and render stages share.
// It is passed by reference; nothing here is global.
package site

import (
	"github.com/google/uuid"

	"git.home.luguber.info/inful/livedocs/internal/compiler"
	"git.home.luguber.info/inful/livedocs/internal/config"
	"git.home.luguber.info/inful/livedocs/internal/dom"
	"git.home.luguber.info/inful/livedocs/internal/hooks"
	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/router"
)

// Context is one viewing session's shared state. Config must not be mutated
// after New.
type Context struct {
	ID       string
	Config   *config.Site
	Router   *router.Router
	Compiler *compiler.Compiler
	Document *dom.Document
	Hooks    *hooks.Registry
	Recorder metrics.Recorder
}

// New builds a context around doc. A nil registry or recorder gets a no-op
// default.
func New(cfg *config.Site, doc *dom.Document, reg *hooks.Registry, rec metrics.Recorder) *Context {
	if reg == nil {
		reg = hooks.New()
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	r := router.New(cfg)
	return &Context{
		ID:       uuid.NewString(),
		Config:   cfg,
		Router:   r,
		Compiler: compiler.New(cfg, r),
		Document: doc,
		Hooks:    reg,
		Recorder: rec,
	}
}

// CurrentURL is the current route as a link href, used to match sidebar and
// navbar entries.
func (c *Context) CurrentURL() string {
	return c.Router.ToURL(c.Router.GetCurrentPath(), nil, "")
}
