package embedcache

import (
	"context"

	"git.home.luguber.info/inful/livedocs/internal/config"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/retry"
)

// FromConfig builds the configured cache around the process memory cache.
// Connecting to a shared backend is retried with policy.
func FromConfig(ctx context.Context, cfg config.CacheConfig, memory *Memory, policy retry.Policy) (Backend, error) {
	if memory == nil {
		memory = NewMemory()
	}
	var store Store
	connect := func(ctx context.Context) error {
		var err error
		switch cfg.Backend {
		case config.CacheRedis:
			store, err = NewRedis(ctx, cfg.Redis, cfg.TTL)
		case config.CacheNATS:
			store, err = NewNATS(ctx, cfg.NATS, cfg.TTL)
		case config.CacheSQLite:
			store, err = NewSQLite(cfg.SQLite.Path, cfg.TTL)
		}
		if err != nil {
			return lderrors.CacheError("connect embed cache").WithCause(err).Retryable().Build()
		}
		return nil
	}

	switch cfg.Backend {
	case config.CacheRedis, config.CacheNATS, config.CacheSQLite:
	default:
		return memory, nil
	}
	if err := policy.Do(ctx, "embed-cache-connect", connect); err != nil {
		return nil, err
	}
	return NewTiered(memory, store), nil
}
