package embed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/livedocs/internal/compiler"
	"git.home.luguber.info/inful/livedocs/internal/config"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/embedcache"
	"git.home.luguber.info/inful/livedocs/internal/router"
	"git.home.luguber.info/inful/livedocs/internal/transport/transporttest"
)

func newResolver(t *testing.T, fake *transporttest.Fake, opts ...Option) (*Resolver, *compiler.Compiler) {
	t.Helper()
	site := &config.Site{Ext: ".md", RouterMode: config.RouterModeHash}
	r := router.New(site)
	c := compiler.New(site, r)
	return New(c, fake, embedcache.NewMemory(), opts...), c
}

func kinds(ts *compiler.TokenStream) []compiler.TokenKind {
	out := make([]compiler.TokenKind, len(ts.Tokens))
	for i, tok := range ts.Tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestResolveSplicesMarkdownEmbed(t *testing.T) {
	fake := transporttest.New().Set("/part.md", "## Part\n\ntext\n\n[l]: /l\n")
	r, _ := newResolver(t, fake)

	ts, err := r.Resolve(context.Background(), "# Page\n\n[x](part.md ':include')\n\nafter\n")

	require.NoError(t, err)
	require.Equal(t, []compiler.TokenKind{compiler.KindHeading, compiler.KindHeading, compiler.KindParagraph, compiler.KindParagraph}, kinds(ts))
	require.Equal(t, "## Part", ts.Tokens[1].Text)
	require.Equal(t, "text", ts.Tokens[2].Text)
	require.Equal(t, "after", ts.Tokens[3].Text)
	require.Equal(t, compiler.Link{Href: "/l"}, ts.Links["l"])
}

func TestResolveShiftsLaterEmbedsBySplicedLength(t *testing.T) {
	fake := transporttest.New().
		Set("/a.md", "## A\n\none\n\ntwo\n").
		Set("/b.md", "bee\n")
	r, _ := newResolver(t, fake)
	raw := "# Title\n\nintro\n\n[a](a.md ':include')\n\nmid one\n\nmid two\n\n[b](b.md ':include')\n\nend\n"

	ts, err := r.Resolve(context.Background(), raw)

	require.NoError(t, err)
	texts := make([]string, len(ts.Tokens))
	for i, tok := range ts.Tokens {
		texts[i] = tok.Text
	}
	require.Equal(t, []string{"# Title", "intro", "## A", "one", "two", "mid one", "mid two", "bee", "end"}, texts)
	require.Equal(t, "bee", ts.Tokens[7].Text)
}

func TestResolveCacheHitMakesNoTransportCalls(t *testing.T) {
	fake := transporttest.New().Set("/part.md", "part")
	r, _ := newResolver(t, fake)
	raw := "[x](part.md ':include')\n"

	first, err := r.Resolve(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, 1, fake.Count("/part.md"))

	second, err := r.Resolve(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, 1, fake.Count("/part.md"))
	require.Equal(t, first.Tokens, second.Tokens)
}

func TestResolveCodeEmbed(t *testing.T) {
	fake := transporttest.New().Set("/main.go", "fmt.Println(`x`)\n")
	r, _ := newResolver(t, fake)

	ts, err := r.Resolve(context.Background(), "[code](main.go ':include')\n")

	require.NoError(t, err)
	require.Len(t, ts.Tokens, 1)
	require.Equal(t, compiler.KindCode, ts.Tokens[0].Kind)
	require.Equal(t, "go", ts.Tokens[0].Lang)
	require.Contains(t, ts.Tokens[0].Text, compiler.CodePlaceholder)
}

func TestResolveCodeFragment(t *testing.T) {
	fake := transporttest.New().Set("/demo.js", "setup()\n/// [demo]\nrun()\n/// [demo]\nteardown()\n")
	r, _ := newResolver(t, fake)

	ts, err := r.Resolve(context.Background(), "[code](demo.js ':include :fragment=demo')\n")

	require.NoError(t, err)
	require.Len(t, ts.Tokens, 1)
	require.Equal(t, "```js\nrun()\n```", ts.Tokens[0].Text)
}

func TestResolveFailedFetchLeavesParagraph(t *testing.T) {
	fake := transporttest.New()
	r, _ := newResolver(t, fake)

	ts, err := r.Resolve(context.Background(), "[x](missing.md ':include')\n")

	require.NoError(t, err)
	require.Len(t, ts.Tokens, 1)
	require.Equal(t, "[x](missing.md ':include')", ts.Tokens[0].Text)
}

func TestResolveMediaInline(t *testing.T) {
	fake := transporttest.New()
	r, _ := newResolver(t, fake)

	ts, err := r.Resolve(context.Background(), "Watch [v](a.mp4 ':include')\n")

	require.NoError(t, err)
	require.Empty(t, fake.Calls())
	require.Equal(t, `Watch <video src="/a.mp4" controls>Not Support</video>`, ts.Tokens[0].Text)
}

func TestResolveHTMLTokenSubstitution(t *testing.T) {
	fake := transporttest.New().Set("/part.md", "## Part\n")
	r, _ := newResolver(t, fake)

	ts, err := r.Resolve(context.Background(), "<div>\n[x](part.md ':include')\n</div>\n")

	require.NoError(t, err)
	require.Len(t, ts.Tokens, 1)
	require.Equal(t, compiler.KindHTML, ts.Tokens[0].Kind)
	require.Contains(t, ts.Tokens[0].Text, `id="part"`)
	require.NotContains(t, ts.Tokens[0].Text, ":include")
}

func TestResolveSeveralEmbedsInOneParagraph(t *testing.T) {
	fake := transporttest.New().Set("/a.md", "alpha\n").Set("/b.md", "beta\n")
	r, _ := newResolver(t, fake)

	ts, err := r.Resolve(context.Background(), "[a](a.md ':include')\n[b](b.md ':include')\n\nend\n")

	require.NoError(t, err)
	require.Len(t, ts.Tokens, 3)
	require.Equal(t, "alpha", ts.Tokens[0].Text)
	require.Equal(t, "beta", ts.Tokens[1].Text)
	require.Equal(t, "end", ts.Tokens[2].Text)
}

func TestResolveNestedMarkdown(t *testing.T) {
	fake := transporttest.New().
		Set("/a.md", "[b](b.md ':include')\n").
		Set("/b.md", "deep\n")
	r, _ := newResolver(t, fake)

	ts, err := r.Resolve(context.Background(), "[a](a.md ':include')\n")

	require.NoError(t, err)
	require.Len(t, ts.Tokens, 1)
	require.Equal(t, "deep", ts.Tokens[0].Text)
}

func TestResolveFetchesConcurrently(t *testing.T) {
	fake := transporttest.New().Set("/a.md", "alpha\n").Set("/b.md", "beta\n")
	releaseA := fake.Block("/a.md")
	releaseB := fake.Block("/b.md")
	r, _ := newResolver(t, fake)

	done := make(chan *compiler.TokenStream, 1)
	go func() {
		ts, _ := r.Resolve(context.Background(), "[a](a.md ':include')\n\n[b](b.md ':include')\n")
		done <- ts
	}()

	require.Eventually(t, func() bool { return len(fake.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	releaseB()
	select {
	case <-done:
		t.Fatal("resolved before every fetch finished")
	case <-time.After(20 * time.Millisecond):
	}
	releaseA()

	ts := <-done
	require.Len(t, ts.Tokens, 2)
	require.Equal(t, "alpha", ts.Tokens[0].Text)
	require.Equal(t, "beta", ts.Tokens[1].Text)
}

func TestResolveCanceled(t *testing.T) {
	fake := transporttest.New().Set("/a.md", "alpha\n")
	release := fake.Block("/a.md")
	defer release()
	r, _ := newResolver(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, "[a](a.md ':include')\n")
		errc <- err
	}()
	require.Eventually(t, func() bool { return len(fake.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	err := <-errc
	require.Error(t, err)
	require.True(t, lderrors.IsCanceled(err))
}

func TestAbsolutizeLinks(t *testing.T) {
	require.Equal(t, "see [a](/docs/b.md) and [c](c.md)",
		absolutizeLinks("see [a](./b.md) and [c](c.md)", "/docs/part.md"))
}
