package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/version"
)

// DefaultMaxBodyBytes caps a single response body.
const DefaultMaxBodyBytes int64 = 10 << 20

// HTTP fetches fragments from a web origin. Relative paths resolve against
// the base URL; absolute URLs are fetched as-is.
type HTTP struct {
	client   *http.Client
	base     *url.URL
	cache    *responseCache
	progress ProgressFunc
	maxBody  int64
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) HTTPOption { return func(h *HTTP) { h.client = c } }

// WithProgress reports download progress of primary requests.
func WithProgress(fn ProgressFunc) HTTPOption { return func(h *HTTP) { h.progress = fn } }

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) HTTPOption { return func(h *HTTP) { h.maxBody = n } }

// WithResponseCache keeps successful responses in memory.
func WithResponseCache(enabled bool) HTTPOption {
	return func(h *HTTP) {
		if enabled {
			h.cache = newResponseCache()
		} else {
			h.cache = nil
		}
	}
}

// NewHTTP creates a transport rooted at baseURL (may be empty when only
// absolute URLs are fetched).
func NewHTTP(baseURL string, timeout time.Duration, opts ...HTTPOption) (*HTTP, error) {
	h := &HTTP{cache: newResponseCache(), maxBody: DefaultMaxBodyBytes}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, lderrors.WrapError(err, lderrors.CategoryConfig, "invalid source url").
				WithContext("url", baseURL).Build()
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		h.base = u
	}
	// Cloned so HTTP_PROXY/NO_PROXY are honoured without sharing connection state.
	rt := http.DefaultTransport.(*http.Transport).Clone()
	h.client = &http.Client{Timeout: timeout, Transport: rt}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Resolve maps a content path to the absolute URL it is fetched from.
func (h *HTTP) Resolve(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if h.base == nil {
		return p
	}
	if strings.HasPrefix(p, "//") {
		return h.base.Scheme + ":" + p
	}
	return h.base.String() + strings.TrimPrefix(p, "/")
}

// Get starts a GET for p.
func (h *HTTP) Get(ctx context.Context, p string, hasBar bool, headers map[string]string) Request {
	target := h.Resolve(p)
	return start(ctx, target, func(ctx context.Context) (string, Meta, error) {
		if r, ok := h.cache.get(target); ok {
			return r.body, r.meta, nil
		}
		body, meta, err := h.do(ctx, target, hasBar, headers)
		if err != nil {
			return "", Meta{}, err
		}
		h.cache.put(target, body, meta)
		return body, meta, nil
	})
}

// Purge drops all cached responses.
func (h *HTTP) Purge() { h.cache.clear() }

func (h *HTTP) do(ctx context.Context, target string, hasBar bool, headers map[string]string) (string, Meta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", Meta{}, lderrors.WrapError(err, lderrors.CategoryValidation, "invalid request url").
			WithContext("url", target).Build()
	}
	req.Header.Set("User-Agent", version.UserAgent())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", Meta{}, canceled(target, ctx.Err())
		}
		return "", Meta{}, lderrors.WrapError(err, lderrors.CategoryNetwork, "request failed").
			WithContext("url", target).Retryable().Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", Meta{}, notFound(target)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, h.maxBody))
		return "", Meta{}, lderrors.NetworkError("unexpected status").
			WithContext("url", target).WithContext("status", resp.StatusCode).Build()
	case resp.ContentLength > h.maxBody:
		return "", Meta{}, tooLarge(target, h.maxBody)
	}

	var reader io.Reader = resp.Body
	if hasBar && h.progress != nil {
		reader = &progressReader{r: resp.Body, url: target, total: resp.ContentLength, fn: h.progress}
	}
	data, err := io.ReadAll(io.LimitReader(reader, h.maxBody+1))
	if err != nil {
		if ctx.Err() != nil {
			return "", Meta{}, canceled(target, ctx.Err())
		}
		return "", Meta{}, lderrors.WrapError(err, lderrors.CategoryNetwork, "failed to read body").
			WithContext("url", target).Build()
	}
	if int64(len(data)) > h.maxBody {
		return "", Meta{}, tooLarge(target, h.maxBody)
	}

	meta := Meta{
		LastModified: resp.Header.Get("Last-Modified"),
		ContentType:  resp.Header.Get("Content-Type"),
		Status:       resp.StatusCode,
	}
	if meta.LastModified != "" {
		if t, perr := http.ParseTime(meta.LastModified); perr == nil {
			meta.UpdatedAt = t
		} else {
			slog.Debug("Unparseable Last-Modified header", logfields.URL(target), logfields.Error(perr))
		}
	}
	return string(data), meta, nil
}

type progressReader struct {
	r      io.Reader
	url    string
	total  int64
	loaded int64
	fn     ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.loaded += int64(n)
	if n > 0 || err == io.EOF {
		p.fn(p.url, p.loaded, p.total)
	}
	return n, err
}

func tooLarge(target string, limit int64) error {
	return lderrors.NewError(lderrors.CategoryNetwork, "response body too large").
		WithContext("url", target).WithContext("limit", limit).Build()
}
