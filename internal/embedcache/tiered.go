package embedcache

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/livedocs/internal/compiler"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
)

// Store is a shared byte store behind the in-process cache.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
	Close() error
	Name() string
}

// Key fingerprints raw document text for use as a shared store key.
func Key(raw string) string {
	return mdfp.CalculateFingerprintFromParts("", raw)
}

// Tiered answers from process memory first and falls back to a shared store.
// Store failures are logged and treated as misses.
type Tiered struct {
	local  *Memory
	remote Store
}

func NewTiered(local *Memory, remote Store) *Tiered {
	if local == nil {
		local = NewMemory()
	}
	return &Tiered{local: local, remote: remote}
}

func (t *Tiered) Get(ctx context.Context, raw string) (*compiler.TokenStream, bool) {
	if ts, ok := t.local.Get(ctx, raw); ok {
		return ts, true
	}
	key := Key(raw)
	data, ok, err := t.remote.Load(ctx, key)
	if err != nil {
		slog.Warn("Embed cache lookup failed", logfields.Cache(t.remote.Name()), logfields.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var ts compiler.TokenStream
	if err := json.Unmarshal(data, &ts); err != nil {
		slog.Warn("Discarding undecodable embed cache entry", logfields.Cache(t.remote.Name()), logfields.Error(err))
		return nil, false
	}
	if ts.Links == nil {
		ts.Links = map[string]compiler.Link{}
	}
	t.local.Set(ctx, raw, &ts)
	return &ts, true
}

func (t *Tiered) Set(ctx context.Context, raw string, ts *compiler.TokenStream) {
	t.local.Set(ctx, raw, ts)
	data, err := json.Marshal(ts)
	if err != nil {
		slog.Warn("Failed to encode embed cache entry", logfields.Error(err))
		return
	}
	if err := t.remote.Save(ctx, Key(raw), data); err != nil {
		slog.Warn("Embed cache store failed", logfields.Cache(t.remote.Name()), logfields.Error(err))
	}
}

func (t *Tiered) Close() error { return t.remote.Close() }
