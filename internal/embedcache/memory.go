// Package embedcache stores resolved embed token streams so a raw document is
// resolved once per process, or once per fleet when a shared backend is used.
package embedcache

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/livedocs/internal/compiler"
)

// Backend is a token stream cache keyed by the raw document text.
type Backend interface {
	Get(ctx context.Context, raw string) (*compiler.TokenStream, bool)
	Set(ctx context.Context, raw string, ts *compiler.TokenStream)
	Close() error
}

// Memory keeps streams for the lifetime of the process. Entries are never
// invalidated; a changed document has different raw text and a new key.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*compiler.TokenStream
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*compiler.TokenStream)}
}

func (m *Memory) Get(_ context.Context, raw string) (*compiler.TokenStream, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.entries[raw]
	return ts, ok
}

// Set stores ts under raw. The first entry for a key wins.
func (m *Memory) Set(_ context.Context, raw string, ts *compiler.TokenStream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[raw]; !ok {
		m.entries[raw] = ts
	}
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }
