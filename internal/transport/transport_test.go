package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/livedocs/internal/config"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
)

func TestHTTPGet(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/docs/README.md":
			require.Equal(t, "secret", r.Header.Get("X-Token"))
			w.Header().Set("Last-Modified", "Tue, 02 Jan 2024 03:04:05 GMT")
			_, _ = w.Write([]byte("# Home"))
		case "/docs/broken.md":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var progressCalls atomic.Int32
	h, err := NewHTTP(srv.URL+"/docs", time.Second, WithProgress(func(string, int64, int64) { progressCalls.Add(1) }))
	require.NoError(t, err)

	body, meta, err := h.Get(context.Background(), "/README.md", true, map[string]string{"X-Token": "secret"}).Wait()
	require.NoError(t, err)
	require.Equal(t, "# Home", body)
	require.Equal(t, 2024, meta.UpdatedAt.Year())
	require.Equal(t, http.StatusOK, meta.Status)
	require.Positive(t, progressCalls.Load())

	// Served from the response cache.
	_, _, err = h.Get(context.Background(), "/README.md", false, map[string]string{"X-Token": "secret"}).Wait()
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	_, _, err = h.Get(context.Background(), "/missing.md", false, nil).Wait()
	require.True(t, lderrors.IsNotFound(err))

	_, _, err = h.Get(context.Background(), "/broken.md", false, nil).Wait()
	require.True(t, lderrors.HasCategory(err, lderrors.CategoryNetwork))

	// Failures are not cached.
	_, _, err = h.Get(context.Background(), "/missing.md", false, nil).Wait()
	require.Error(t, err)
	require.Equal(t, int32(4), hits.Load())
}

func TestHTTPRejectsNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cached.md":
			w.WriteHeader(http.StatusNotModified)
		case "/moved.md":
			w.WriteHeader(http.StatusMultipleChoices)
			_, _ = w.Write([]byte("pick one"))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, time.Second)
	require.NoError(t, err)

	for _, p := range []string{"/cached.md", "/moved.md"} {
		body, _, err := h.Get(context.Background(), p, false, nil).Wait()
		require.Error(t, err, p)
		require.True(t, lderrors.HasCategory(err, lderrors.CategoryNetwork), p)
		require.Empty(t, body, p)
	}

	body, meta, err := h.Get(context.Background(), "/empty.md", false, nil).Wait()
	require.NoError(t, err)
	require.Empty(t, body)
	require.Equal(t, http.StatusNoContent, meta.Status)
}

func TestHTTPBoundsResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chunked.md" {
			// Flushing before writing drops Content-Length.
			w.(http.Flusher).Flush()
		}
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, time.Second, WithMaxBodyBytes(16))
	require.NoError(t, err)

	for _, p := range []string{"/sized.md", "/chunked.md"} {
		_, _, err := h.Get(context.Background(), p, false, nil).Wait()
		require.Error(t, err, p)
		require.True(t, lderrors.HasCategory(err, lderrors.CategoryNetwork), p)
		c, ok := lderrors.AsClassified(err)
		require.True(t, ok)
		require.False(t, c.CanRetry())
	}

	fits, err := NewHTTP(srv.URL, time.Second, WithMaxBodyBytes(64))
	require.NoError(t, err)
	body, _, err := fits.Get(context.Background(), "/chunked.md", false, nil).Wait()
	require.NoError(t, err)
	require.Len(t, body, 64)
}

func TestHTTPResolve(t *testing.T) {
	h, err := NewHTTP("https://docs.example.com/content", time.Second)
	require.NoError(t, err)
	require.Equal(t, "https://docs.example.com/content/guide.md", h.Resolve("/guide.md"))
	require.Equal(t, "https://docs.example.com/content/guide.md?x=1", h.Resolve("guide.md?x=1"))
	require.Equal(t, "https://raw.other.com/a.md", h.Resolve("https://raw.other.com/a.md"))
	require.Equal(t, "https://cdn.other.com/a.md", h.Resolve("//cdn.other.com/a.md"))
}

func TestAbortYieldsCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()
	defer close(release)

	h, err := NewHTTP(srv.URL, 5*time.Second)
	require.NoError(t, err)
	req := h.Get(context.Background(), "/slow.md", true, nil)
	req.Abort()
	_, _, err = req.Wait()
	require.True(t, lderrors.IsCanceled(err))
}

func TestAbortAfterCompletionStillCanceled(t *testing.T) {
	d := NewFS(fstest.MapFS{"a.md": {Data: []byte("a")}})
	req := d.Get(context.Background(), "/a.md", false, nil)
	_, _, err := req.Wait()
	require.NoError(t, err)
	req.Abort()
	_, _, err = req.Wait()
	require.True(t, lderrors.IsCanceled(err))
}

func TestDirGet(t *testing.T) {
	mod := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	d := NewFS(fstest.MapFS{
		"README.md":       {Data: []byte("# Home"), ModTime: mod},
		"guide/_sidebar.md": {Data: []byte("- [Intro](intro.md)")},
	})

	body, meta, err := d.Get(context.Background(), "/README.md?lang=en", true, nil).Wait()
	require.NoError(t, err)
	require.Equal(t, "# Home", body)
	require.True(t, meta.UpdatedAt.Equal(mod))

	body, _, err = d.Get(context.Background(), "guide/_sidebar.md", false, nil).Wait()
	require.NoError(t, err)
	require.Contains(t, body, "Intro")

	_, _, err = d.Get(context.Background(), "/nope.md", false, nil).Wait()
	require.True(t, lderrors.IsNotFound(err))

	_, _, err = d.Get(context.Background(), "/", false, nil).Wait()
	require.True(t, lderrors.IsNotFound(err))
}

func TestFSPathClampsToRoot(t *testing.T) {
	p, ok := fsPath("/../../etc/passwd")
	require.True(t, ok)
	require.Equal(t, "etc/passwd", p)
	p, ok = fsPath("/a/b.md#frag")
	require.True(t, ok)
	require.Equal(t, "a/b.md", p)
}

func TestGitGet(t *testing.T) {
	fs := memfs.New()
	repo, err := git.Init(memory.NewStorage(), fs)
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fs, "docs/README.md", []byte("# From git"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("docs/README.md")
	require.NoError(t, err)
	when := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	_, err = wt.Commit("init", &git.CommitOptions{Author: &object.Signature{Name: "docs", Email: "docs@example.com", When: when}})
	require.NoError(t, err)

	g, err := NewGitFromRepository(repo, fs, config.GitSource{Path: "docs", Branch: "master"})
	require.NoError(t, err)

	body, meta, err := g.Get(context.Background(), "/README.md", true, nil).Wait()
	require.NoError(t, err)
	require.Equal(t, "# From git", body)
	require.True(t, meta.UpdatedAt.Equal(when))

	_, _, err = g.Get(context.Background(), "/missing.md", false, nil).Wait()
	require.True(t, lderrors.IsNotFound(err))
	require.False(t, g.Head().IsZero())
}

func TestMuxRoutesAbsoluteURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote"))
	}))
	defer srv.Close()

	remote, err := NewHTTP("", time.Second)
	require.NoError(t, err)
	m := &Mux{Local: NewFS(fstest.MapFS{"a.md": {Data: []byte("local")}}), Remote: remote}

	body, _, err := m.Get(context.Background(), "/a.md", false, nil).Wait()
	require.NoError(t, err)
	require.Equal(t, "local", body)

	body, _, err = m.Get(context.Background(), srv.URL+"/b.md", false, nil).Wait()
	require.NoError(t, err)
	require.Equal(t, "remote", body)

	require.NoError(t, m.Refresh(context.Background()))
}
