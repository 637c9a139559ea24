// Package embed resolves include directives in page markdown. All included
// resources are fetched concurrently and joined before the token stream is
// touched; the resolved stream is cached by the raw page text.
package embed

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/livedocs/internal/compiler"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/metrics"
	"git.home.luguber.info/inful/livedocs/internal/transport"
)

const (
	defaultMaxDepth    = 4
	defaultConcurrency = 8
)

// Cache stores resolved streams keyed by raw page text.
type Cache interface {
	Get(ctx context.Context, raw string) (*compiler.TokenStream, bool)
	Set(ctx context.Context, raw string, ts *compiler.TokenStream)
}

// Resolver expands include directives for one session.
type Resolver struct {
	compiler    *compiler.Compiler
	transport   transport.Transport
	cache       Cache
	headers     map[string]string
	preprocess  func(string) string
	recorder    metrics.Recorder
	maxDepth    int
	concurrency int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHeaders adds request headers to every embed fetch.
func WithHeaders(h map[string]string) Option { return func(r *Resolver) { r.headers = h } }

// WithPreprocess transforms fetched markdown before it is lexed, for example
// to strip front matter.
func WithPreprocess(fn func(string) string) Option { return func(r *Resolver) { r.preprocess = fn } }

// WithRecorder reports cache hits and fetch durations.
func WithRecorder(rec metrics.Recorder) Option { return func(r *Resolver) { r.recorder = rec } }

// WithMaxDepth bounds nested markdown includes.
func WithMaxDepth(n int) Option { return func(r *Resolver) { r.maxDepth = n } }

// WithConcurrency bounds parallel fetches per document.
func WithConcurrency(n int) Option { return func(r *Resolver) { r.concurrency = n } }

// New returns a resolver that lexes with c, fetches includes over t and keeps
// resolved streams in cache.
func New(c *compiler.Compiler, t transport.Transport, cache Cache, opts ...Option) *Resolver {
	r := &Resolver{
		compiler:    c,
		transport:   t,
		cache:       cache,
		recorder:    metrics.NoopRecorder{},
		maxDepth:    defaultMaxDepth,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve lexes raw and expands its include directives. A cached stream is
// returned without any transport call. The returned stream is a copy the
// caller may modify; its Links map is shared with the cache.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*compiler.TokenStream, error) {
	if r.cache != nil {
		if ts, ok := r.cache.Get(ctx, raw); ok {
			r.recorder.IncEmbedCache(true)
			return ts.ShallowCopy(), nil
		}
		r.recorder.IncEmbedCache(false)
	}
	ts, err := r.resolve(ctx, raw, 0)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(ctx, raw, ts.ShallowCopy())
	}
	return ts, nil
}

// fetched is the outcome of one directive.
type fetched struct {
	stream *compiler.TokenStream
	ok     bool
}

func (r *Resolver) resolve(ctx context.Context, text string, depth int) (*compiler.TokenStream, error) {
	ts := r.compiler.Lex(text)

	var directives []compiler.EmbedDirective
	for i, tok := range ts.Tokens {
		if tok.Kind != compiler.KindParagraph && tok.Kind != compiler.KindHTML {
			continue
		}
		directives = append(directives, r.compiler.FindEmbeds(i, tok.Text)...)
	}
	if len(directives) == 0 {
		return ts, nil
	}

	results := make([]fetched, len(directives))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, d := range directives {
		if !d.Embed.Fetchable() {
			continue
		}
		g.Go(func() error {
			stream, err := r.fetch(gctx, d.Embed, depth)
			if err != nil {
				if lderrors.IsCanceled(err) && ctx.Err() != nil {
					return err
				}
				slog.Debug("Embed skipped", logfields.URL(d.Embed.URL), logfields.Kind(string(d.Embed.Type)), logfields.Error(err))
				return nil
			}
			results[i] = fetched{stream: stream, ok: stream != nil}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, lderrors.WrapError(err, lderrors.CategoryCanceled, "embed resolution canceled").Info().Build()
	}

	r.substituteHTML(ts, directives, results)
	r.spliceParagraphs(ts, directives, results)
	return ts, nil
}

// substituteHTML replaces include links inside html tokens with the compiled
// embed, or with media markup.
func (r *Resolver) substituteHTML(ts *compiler.TokenStream, directives []compiler.EmbedDirective, results []fetched) {
	for i, d := range directives {
		tok := &ts.Tokens[d.Index]
		if tok.Kind != compiler.KindHTML {
			continue
		}
		switch {
		case d.Embed.HTML != "":
			tok.Text = strings.Replace(tok.Text, d.Source, d.Embed.HTML, 1)
		case results[i].ok:
			tok.Text = strings.Replace(tok.Text, d.Source, r.compiler.CompileFragment(results[i].stream), 1)
		}
	}
}

// spliceParagraphs replaces each paragraph holding include links with the
// included tokens, in document order. A paragraph whose includes are all
// media keeps its text with the media markup inlined. A paragraph whose
// includes all failed is left alone.
func (r *Resolver) spliceParagraphs(ts *compiler.TokenStream, directives []compiler.EmbedDirective, results []fetched) {
	offset := 0
	for start := 0; start < len(directives); {
		index := directives[start].Index
		end := start
		for end < len(directives) && directives[end].Index == index {
			end++
		}
		group, groupResults := directives[start:end], results[start:end]
		start = end

		if ts.Tokens[index+offset].Kind != compiler.KindParagraph {
			continue
		}

		allMedia := true
		for _, d := range group {
			if d.Embed.HTML == "" {
				allMedia = false
			}
		}
		if allMedia {
			text := ts.Tokens[index+offset].Text
			for _, d := range group {
				text = strings.Replace(text, d.Source, d.Embed.HTML, 1)
			}
			ts.Tokens[index+offset].Text = text
			continue
		}

		var replacement []compiler.Token
		for i, d := range group {
			switch {
			case d.Embed.HTML != "":
				replacement = append(replacement, compiler.Token{Kind: compiler.KindHTML, Text: d.Embed.HTML})
			case groupResults[i].ok:
				replacement = append(replacement, groupResults[i].stream.Tokens...)
				ts.MergeLinks(groupResults[i].stream.Links)
			}
		}
		if len(replacement) == 0 {
			continue
		}
		offset += ts.Splice(index+offset, replacement)
	}
}

// fetch loads one include and turns it into tokens. A nil stream with a nil
// error means the include had no content.
func (r *Resolver) fetch(ctx context.Context, e compiler.Embed, depth int) (*compiler.TokenStream, error) {
	started := time.Now()
	req := r.transport.Get(ctx, e.URL, false, r.headers)
	text, _, err := req.Wait()
	r.recorder.ObserveFetchDuration("embed", time.Since(started), metrics.ResultFromError(err))
	if err != nil {
		return nil, err
	}
	if e.Fragment != "" && (e.Type == compiler.EmbedMarkdown || e.Type == compiler.EmbedCode) {
		text = compiler.ExtractFragment(text, e.Fragment)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	switch e.Type {
	case compiler.EmbedMarkdown:
		text = absolutizeLinks(text, e.URL)
		if r.preprocess != nil {
			text = r.preprocess(text)
		}
		if depth+1 < r.maxDepth {
			return r.resolve(ctx, text, depth+1)
		}
		return r.compiler.Lex(text), nil
	case compiler.EmbedMermaid:
		return &compiler.TokenStream{
			Tokens: []compiler.Token{{Kind: compiler.KindHTML, Text: "<div class=\"mermaid\">\n" + text + "\n</div>"}},
			Links:  map[string]compiler.Link{},
		}, nil
	default:
		return r.compiler.Lex(compiler.FenceCode(e.Lang, text)), nil
	}
}

var dotLink = regexp.MustCompile(`\[([^\[\]]+)\]\(\./([^)]+)\)`)

// absolutizeLinks rewrites "./x" links in an included document so they point
// next to the included file instead of the including page.
func absolutizeLinks(text, embedURL string) string {
	dir := embedURL
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i]
	} else {
		dir = ""
	}
	return dotLink.ReplaceAllString(text, "[$1]("+strings.ReplaceAll(dir, "$", "$$")+"/$2)")
}
