// Package transport fetches raw page fragments. Every request is cancellable;
// the fetch orchestrator aborts a superseded primary request and discards its
// outcome.
package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
)

// Meta describes a successful response.
type Meta struct {
	// UpdatedAt is the parsed last-modification time, zero when unknown.
	UpdatedAt    time.Time
	LastModified string
	ContentType  string
	Status       int
}

// Request is an in-flight GET.
type Request interface {
	// Wait blocks until the request settles. An aborted request always yields
	// a canceled error, even when the response arrived concurrently.
	Wait() (string, Meta, error)
	Abort()
	URL() string
}

// Transport starts GET requests. hasBar marks the primary page request, which
// reports download progress.
type Transport interface {
	Get(ctx context.Context, url string, hasBar bool, headers map[string]string) Request
}

// Refresher is implemented by sources whose content can be re-synchronized.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ProgressFunc receives download progress for primary requests. total is -1
// when the size is unknown.
type ProgressFunc func(url string, loaded, total int64)

type fetchFunc func(ctx context.Context) (string, Meta, error)

// pending runs a fetchFunc in its own goroutine.
type pending struct {
	url     string
	cancel  context.CancelFunc
	done    chan struct{}
	aborted atomic.Bool

	body string
	meta Meta
	err  error
}

func start(ctx context.Context, url string, fn fetchFunc) *pending {
	ctx, cancel := context.WithCancel(ctx)
	p := &pending{url: url, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer cancel()
		p.body, p.meta, p.err = fn(ctx)
		if p.err != nil && ctx.Err() != nil {
			p.err = canceled(url, ctx.Err())
		}
	}()
	return p
}

func (p *pending) Wait() (string, Meta, error) {
	<-p.done
	if p.aborted.Load() {
		return "", Meta{}, canceled(p.url, context.Canceled)
	}
	return p.body, p.meta, p.err
}

func (p *pending) Abort() {
	p.aborted.Store(true)
	p.cancel()
}

func (p *pending) URL() string { return p.url }

func canceled(url string, cause error) error {
	return lderrors.WrapError(cause, lderrors.CategoryCanceled, "request aborted").
		WithContext("url", url).Info().Build()
}

func notFound(url string) error {
	return lderrors.NotFoundError("resource not found").WithContext("url", url).Build()
}

// responseCache keeps successful responses per URL for the process lifetime.
type responseCache struct {
	mu      sync.RWMutex
	entries map[string]cachedResponse
}

type cachedResponse struct {
	body string
	meta Meta
}

func newResponseCache() *responseCache {
	return &responseCache{entries: make(map[string]cachedResponse)}
}

func (c *responseCache) get(url string) (cachedResponse, bool) {
	if c == nil {
		return cachedResponse{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[url]
	return r, ok
}

func (c *responseCache) put(url, body string, meta Meta) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries[url] = cachedResponse{body: body, meta: meta}
	c.mu.Unlock()
}

func (c *responseCache) clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]cachedResponse)
	c.mu.Unlock()
}
