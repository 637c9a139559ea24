// Package transporttest provides an in-memory transport whose responses and
// completion timing are controlled by tests.
package transporttest

import (
	"context"
	"strings"
	"sync"

	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/transport"
)

// Response is the outcome served for one URL.
type Response struct {
	Body string
	Meta transport.Meta
	Err  error
}

// Fake serves registered responses. A URL with a query string falls back to
// the response registered for its path. Unknown URLs fail as not found.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Response
	gates     map[string]chan struct{}
	calls     []Call
}

// Call records one Get.
type Call struct {
	URL     string
	HasBar  bool
	Headers map[string]string
}

// New returns a fake with no registered responses.
func New() *Fake {
	return &Fake{responses: map[string]Response{}, gates: map[string]chan struct{}{}}
}

// Set serves body for url.
func (f *Fake) Set(url, body string) *Fake {
	return f.SetResponse(url, Response{Body: body, Meta: transport.Meta{Status: 200}})
}

// SetResponse serves r for url.
func (f *Fake) SetResponse(url string, r Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = r
	return f
}

// Block holds every request for url until release is called.
func (f *Fake) Block(url string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[url] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls returns the requests made so far, in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// URLs returns the requested URLs, in order.
func (f *Fake) URLs() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.URL
	}
	return out
}

// Count returns how often url was requested.
func (f *Fake) Count(url string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.URL == url {
			n++
		}
	}
	return n
}

// Get records the call and returns a request settling with the registered response.
func (f *Fake) Get(ctx context.Context, url string, hasBar bool, headers map[string]string) transport.Request {
	f.mu.Lock()
	f.calls = append(f.calls, Call{URL: url, HasBar: hasBar, Headers: headers})
	resp, ok := f.responses[url]
	gate := f.gates[url]
	if path, _, found := strings.Cut(url, "?"); found {
		if !ok {
			resp, ok = f.responses[path]
		}
		if gate == nil {
			gate = f.gates[path]
		}
	}
	f.mu.Unlock()
	if !ok {
		resp = Response{Err: lderrors.NotFoundError("resource not found").WithContext("url", url).Build()}
	}
	return &request{ctx: ctx, url: url, resp: resp, gate: gate, abort: make(chan struct{})}
}

type request struct {
	ctx   context.Context
	url   string
	resp  Response
	gate  chan struct{}
	abort chan struct{}
	once  sync.Once
}

func (r *request) Wait() (string, transport.Meta, error) {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-r.abort:
			return "", transport.Meta{}, r.canceled()
		case <-r.ctx.Done():
			return "", transport.Meta{}, r.canceled()
		}
	}
	select {
	case <-r.abort:
		return "", transport.Meta{}, r.canceled()
	default:
	}
	return r.resp.Body, r.resp.Meta, r.resp.Err
}

func (r *request) Abort() { r.once.Do(func() { close(r.abort) }) }

func (r *request) URL() string { return r.url }

func (r *request) canceled() error {
	return lderrors.CanceledError("request aborted").WithContext("url", r.url).Build()
}
