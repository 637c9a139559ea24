package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/livedocs/internal/compiler"
	"git.home.luguber.info/inful/livedocs/internal/config"
	"git.home.luguber.info/inful/livedocs/internal/retry"
)

func sampleStream() *compiler.TokenStream {
	return &compiler.TokenStream{
		Tokens: []compiler.Token{{Kind: compiler.KindParagraph, Text: "hello"}},
		Links:  map[string]compiler.Link{"a": {Href: "/a"}},
	}
}

func TestMemoryFirstEntryWins(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	first := sampleStream()
	m.Set(ctx, "raw", first)
	m.Set(ctx, "raw", &compiler.TokenStream{})

	got, ok := m.Get(ctx, "raw")
	require.True(t, ok)
	require.Same(t, first, got)
	require.Equal(t, 1, m.Len())

	_, ok = m.Get(ctx, "other")
	require.False(t, ok)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestTieredSharesThroughRedis(t *testing.T) {
	ctx := context.Background()
	_, client := newMiniredis(t)
	store := NewRedisFromClient(client, WithPrefix("test:"))

	NewTiered(NewMemory(), store).Set(ctx, "raw", sampleStream())

	other := NewTiered(NewMemory(), store)
	got, ok := other.Get(ctx, "raw")
	require.True(t, ok)
	require.Equal(t, sampleStream(), got)

	_, ok = other.Get(ctx, "missing")
	require.False(t, ok)
}

func TestRedisTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	store := NewRedisFromClient(client, WithTTL(time.Second))

	require.NoError(t, store.Save(ctx, "k", []byte("v")))
	require.True(t, mr.Exists("livedocs:embed:k"))

	mr.FastForward(2 * time.Second)

	_, ok, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteLoadSaveAndExpiry(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(":memory:", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "k", []byte("one")))
	require.NoError(t, s.Save(ctx, "k", []byte("two")))

	got, ok, err := s.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("two"), got)

	now = now.Add(2 * time.Minute)
	_, ok, err = s.Load(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (failingStore) Save(context.Context, string, []byte) error { return errors.New("down") }
func (failingStore) Close() error                               { return nil }
func (failingStore) Name() string                               { return "failing" }

func TestTieredTreatsStoreFailureAsMiss(t *testing.T) {
	ctx := context.Background()
	tiered := NewTiered(NewMemory(), failingStore{})

	_, ok := tiered.Get(ctx, "raw")
	require.False(t, ok)

	tiered.Set(ctx, "raw", sampleStream())
	_, ok = tiered.Get(ctx, "raw")
	require.True(t, ok)
}

func TestKeyIsStable(t *testing.T) {
	require.Equal(t, Key("# doc"), Key("# doc"))
	require.NotEqual(t, Key("# doc"), Key("# other"))
}

func TestFromConfigDefaultsToMemory(t *testing.T) {
	mem := NewMemory()

	b, err := FromConfig(context.Background(), config.CacheConfig{}, mem, retry.DefaultPolicy())

	require.NoError(t, err)
	require.Same(t, mem, b)
}

func TestFromConfigSQLite(t *testing.T) {
	b, err := FromConfig(context.Background(), config.CacheConfig{
		Backend: config.CacheSQLite,
		SQLite:  config.SQLiteCache{Path: ":memory:"},
	}, nil, retry.DefaultPolicy())

	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	require.IsType(t, &Tiered{}, b)
}
