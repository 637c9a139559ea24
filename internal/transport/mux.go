package transport

import (
	"context"
	"strings"
	"time"

	"git.home.luguber.info/inful/livedocs/internal/config"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/retry"
)

// Mux sends absolute http(s) URLs to Remote and everything else to Local, so
// a directory or git source can still embed remote files.
type Mux struct {
	Local  Transport
	Remote Transport
}

func (m *Mux) Get(ctx context.Context, p string, hasBar bool, headers map[string]string) Request {
	if m.Remote != nil && (strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") || strings.HasPrefix(p, "//")) {
		return m.Remote.Get(ctx, p, hasBar, headers)
	}
	return m.Local.Get(ctx, p, hasBar, headers)
}

// Refresh refreshes the local source when it supports it.
func (m *Mux) Refresh(ctx context.Context) error {
	if r, ok := m.Local.(Refresher); ok {
		return r.Refresh(ctx)
	}
	if r, ok := m.Remote.(interface{ Purge() }); ok && m.Local == m.Remote {
		r.Purge()
	}
	return nil
}

// FromConfig builds the transport for a source section. Git sources are
// cloned with the retry policy.
func FromConfig(ctx context.Context, src config.SourceConfig, policy retry.Policy, progress ProgressFunc) (*Mux, error) {
	remote, err := NewHTTP(remoteBase(src), src.Timeout,
		WithResponseCache(src.ResponseCacheEnabled()),
		WithProgress(progress))
	if err != nil {
		return nil, err
	}
	switch src.Type {
	case config.SourceDir:
		return &Mux{Local: NewDir(src.Dir), Remote: remote}, nil
	case config.SourceGit:
		var g *Git
		err := policy.Do(ctx, "git clone", func(ctx context.Context) error {
			cloneCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()
			var cerr error
			g, cerr = CloneGit(cloneCtx, src.Git)
			return cerr
		})
		if err != nil {
			return nil, err
		}
		return &Mux{Local: g, Remote: remote}, nil
	case config.SourceHTTP:
		return &Mux{Local: remote, Remote: remote}, nil
	default:
		return nil, lderrors.ConfigError("unknown source type").WithContext("type", string(src.Type)).Build()
	}
}

func remoteBase(src config.SourceConfig) string {
	if src.Type == config.SourceHTTP {
		return src.URL
	}
	return ""
}
