package embedcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/livedocs/internal/config"
)

// NATS stores encoded streams in a JetStream key-value bucket.
type NATS struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NewNATS connects to the server and opens the bucket, creating it when it
// does not exist yet.
func NewNATS(ctx context.Context, cfg config.NATSCache, ttl time.Duration) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	kv, err := openBucket(ctx, js, cfg.Bucket, ttl)
	if err != nil {
		conn.Close()
		return nil, err
	}
	slog.Info("NATS embed cache initialized", "url", cfg.URL, "bucket", cfg.Bucket)
	return &NATS{conn: conn, kv: kv}, nil
}

// NewNATSFromKeyValue wraps an already opened bucket.
func NewNATSFromKeyValue(kv jetstream.KeyValue) *NATS {
	return &NATS{kv: kv}
}

func openBucket(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Resolved embed streams for livedocs",
		MaxBytes:    100 * 1024 * 1024,
		History:     1,
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}
	slog.Info("Created KV bucket for embed cache", "bucket", bucket)
	return kv, nil
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Load(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return entry.Value(), true, nil
}

func (n *NATS) Save(ctx context.Context, key string, value []byte) error {
	if _, err := n.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

func (n *NATS) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
