package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	gittransport "github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"git.home.luguber.info/inful/livedocs/internal/config"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
)

// Git serves fragments from a repository cloned into memory. Refresh pulls new
// commits; page timestamps come from the last commit touching each file.
type Git struct {
	cfg config.GitSource

	mu       sync.RWMutex
	repo     *git.Repository
	worktree billy.Filesystem
	head     plumbing.Hash
	updated  map[string]time.Time
}

// CloneGit clones the configured branch into memory.
func CloneGit(ctx context.Context, cfg config.GitSource) (*Git, error) {
	fsys := memfs.New()
	repo, err := git.CloneContext(ctx, memory.NewStorage(), fsys, &git.CloneOptions{
		URL:           cfg.URL,
		ReferenceName: plumbing.NewBranchReferenceName(cfg.Branch),
		SingleBranch:  true,
		Auth:          gitAuth(cfg),
	})
	if err != nil {
		return nil, lderrors.GitError("clone failed").WithCause(err).
			WithContext("url", cfg.URL).WithContext("branch", cfg.Branch).Build()
	}
	return NewGitFromRepository(repo, fsys, cfg)
}

// NewGitFromRepository serves an already checked-out repository.
func NewGitFromRepository(repo *git.Repository, worktree billy.Filesystem, cfg config.GitSource) (*Git, error) {
	g := &Git{cfg: cfg, repo: repo, worktree: worktree, updated: map[string]time.Time{}}
	ref, err := repo.Head()
	if err != nil {
		return nil, lderrors.WrapError(err, lderrors.CategoryGit, "repository has no HEAD").Build()
	}
	g.head = ref.Hash()
	return g, nil
}

func gitAuth(cfg config.GitSource) gittransport.AuthMethod {
	if cfg.Token == "" {
		return nil
	}
	user := cfg.Username
	if user == "" {
		user = "livedocs"
	}
	return &githttp.BasicAuth{Username: user, Password: cfg.Token}
}

// Head returns the commit currently served.
func (g *Git) Head() plumbing.Hash {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.head
}

// Refresh pulls the configured branch. Already up to date is not an error.
func (g *Git) Refresh(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	wt, err := g.repo.Worktree()
	if err != nil {
		return lderrors.WrapError(err, lderrors.CategoryGit, "no worktree").Build()
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		ReferenceName: plumbing.NewBranchReferenceName(g.cfg.Branch),
		SingleBranch:  true,
		Auth:          gitAuth(g.cfg),
		Force:         true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return lderrors.GitError("pull failed").WithCause(err).
			WithContext("url", g.cfg.URL).Build()
	}
	ref, err := g.repo.Head()
	if err != nil {
		return lderrors.WrapError(err, lderrors.CategoryGit, "repository has no HEAD").Build()
	}
	if ref.Hash() != g.head {
		slog.Info("Git source updated", slog.String("from", g.head.String()), slog.String("to", ref.Hash().String()))
		g.head = ref.Hash()
		g.updated = map[string]time.Time{}
	}
	return nil
}

func (g *Git) Get(ctx context.Context, p string, _ bool, _ map[string]string) Request {
	return start(ctx, p, func(ctx context.Context) (string, Meta, error) {
		name, ok := fsPath(p)
		if !ok {
			return "", Meta{}, notFound(p)
		}
		name = path.Join(g.cfg.Path, name)
		if err := ctx.Err(); err != nil {
			return "", Meta{}, canceled(p, err)
		}

		g.mu.RLock()
		data, err := util.ReadFile(g.worktree, name)
		g.mu.RUnlock()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", Meta{}, notFound(p)
			}
			return "", Meta{}, lderrors.WrapError(err, lderrors.CategoryGit, "failed to read file").
				WithContext("path", name).Build()
		}
		meta := Meta{Status: 200}
		if t := g.lastCommitTime(name); !t.IsZero() {
			meta.UpdatedAt = t
			meta.LastModified = t.UTC().Format(http.TimeFormat)
		}
		return string(data), meta, nil
	})
}

func (g *Git) lastCommitTime(name string) time.Time {
	g.mu.RLock()
	t, ok := g.updated[name]
	head := g.head
	g.mu.RUnlock()
	if ok {
		return t
	}

	iter, err := g.repo.Log(&git.LogOptions{From: head, FileName: &name})
	if err != nil {
		slog.Debug("Git log failed", logfields.Path(name), logfields.Error(err))
		return time.Time{}
	}
	defer iter.Close()
	var commit *object.Commit
	commit, err = iter.Next()
	if err == nil && commit != nil {
		t = commit.Committer.When
	}

	g.mu.Lock()
	if g.head == head {
		g.updated[name] = t
	}
	g.mu.Unlock()
	return t
}
