package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livedocs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  url: https://one.example.com\n"), 0o600))

	var latest atomic.Value
	w, err := NewWatcher(path, func(c *Config) { latest.Store(c.Source.URL) })
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("source:\n  url: https://two.example.com\n"), 0o600))

	require.Eventually(t, func() bool {
		v, _ := latest.Load().(string)
		return v == "https://two.example.com"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherSkipsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livedocs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  url: https://one.example.com\n"), 0o600))

	var calls atomic.Int32
	w, err := NewWatcher(path, func(*Config) { calls.Add(1) })
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("source:\n  type: http\n"), 0o600))
	time.Sleep(300 * time.Millisecond)
	require.Zero(t, calls.Load())
}
