// Package hooks holds the lifecycle extension points fired around each render:
// beforeEach on raw page text, afterEach on compiled HTML, doneEach once the
// sidebar and navbar are attached, and ready once per session.
package hooks

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/livedocs/internal/logfields"
)

// BeforeEachFunc transforms raw page text before it is compiled.
type BeforeEachFunc func(ctx context.Context, content string) (string, error)

// AfterEachFunc transforms compiled HTML before it is inserted.
type AfterEachFunc func(ctx context.Context, html string) (string, error)

// Func is a notification hook.
type Func func(ctx context.Context)

// Plugin registers hooks on a Registry.
type Plugin interface {
	Name() string
	Install(r *Registry)
}

// Registry keeps hooks in registration order. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	before []BeforeEachFunc
	after  []AfterEachFunc
	done   []Func
	ready  []Func
}

func New(plugins ...Plugin) *Registry {
	r := &Registry{}
	r.Use(plugins...)
	return r
}

// Use installs plugins in order.
func (r *Registry) Use(plugins ...Plugin) {
	for _, p := range plugins {
		p.Install(r)
		slog.Debug("Plugin installed", slog.String("plugin", p.Name()))
	}
}

func (r *Registry) BeforeEach(fn BeforeEachFunc) {
	r.mu.Lock()
	r.before = append(r.before, fn)
	r.mu.Unlock()
}

func (r *Registry) AfterEach(fn AfterEachFunc) {
	r.mu.Lock()
	r.after = append(r.after, fn)
	r.mu.Unlock()
}

func (r *Registry) DoneEach(fn Func) {
	r.mu.Lock()
	r.done = append(r.done, fn)
	r.mu.Unlock()
}

func (r *Registry) Ready(fn Func) {
	r.mu.Lock()
	r.ready = append(r.ready, fn)
	r.mu.Unlock()
}

// RunBeforeEach threads content through every beforeEach hook. A failing hook
// is logged and its input passed on unchanged.
func (r *Registry) RunBeforeEach(ctx context.Context, content string) string {
	r.mu.RLock()
	hooks := append([]BeforeEachFunc(nil), r.before...)
	r.mu.RUnlock()
	for _, fn := range hooks {
		out, err := fn(ctx, content)
		if err != nil {
			slog.Warn("beforeEach hook failed", logfields.Error(err))
			continue
		}
		content = out
	}
	return content
}

// RunAfterEach threads html through every afterEach hook.
func (r *Registry) RunAfterEach(ctx context.Context, html string) string {
	r.mu.RLock()
	hooks := append([]AfterEachFunc(nil), r.after...)
	r.mu.RUnlock()
	for _, fn := range hooks {
		out, err := fn(ctx, html)
		if err != nil {
			slog.Warn("afterEach hook failed", logfields.Error(err))
			continue
		}
		html = out
	}
	return html
}

func (r *Registry) RunDoneEach(ctx context.Context) {
	r.mu.RLock()
	hooks := append([]Func(nil), r.done...)
	r.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}

func (r *Registry) RunReady(ctx context.Context) {
	r.mu.RLock()
	hooks := append([]Func(nil), r.ready...)
	r.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}
