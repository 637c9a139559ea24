package session

import (
	"context"
	"sync/atomic"

	"git.home.luguber.info/inful/livedocs/internal/config"
	"git.home.luguber.info/inful/livedocs/internal/fetch"
)

// Factory opens sessions that share one transport, cache and recorder. The
// site configuration can be swapped at any time; sessions already open keep
// the configuration they started with.
type Factory struct {
	site atomic.Pointer[config.Site]
	opts Options
}

func NewFactory(cfg config.Site, opts Options) *Factory {
	f := &Factory{opts: opts}
	f.Update(cfg)
	return f
}

// Update replaces the configuration used by sessions opened from now on.
func (f *Factory) Update(cfg config.Site) {
	f.site.Store(&cfg)
}

// Site returns a copy of the current configuration.
func (f *Factory) Site() config.Site { return *f.site.Load() }

// New creates a session without rendering anything.
func (f *Factory) New() (*Session, error) {
	return New(f.Site(), f.opts)
}

// Open creates a session and renders raw into it.
func (f *Factory) Open(ctx context.Context, raw string) (*Session, fetch.Result, error) {
	s, err := f.New()
	if err != nil {
		return nil, fetch.Result{}, err
	}
	res, err := s.InitAt(ctx, raw)
	if err != nil {
		return nil, res, err
	}
	return s, res, nil
}
