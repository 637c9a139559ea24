package embedcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores encoded streams in a single table. Use ":memory:" for a
// throwaway database.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLite(path string, ttl time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db, ttl: ttl, now: time.Now}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS embeds (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		stored_at INTEGER NOT NULL
	);`)
	return err
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value    []byte
		storedAt int64
	)
	err := s.db.QueryRowContext(ctx, "SELECT value, stored_at FROM embeds WHERE key = ?", key).Scan(&value, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select embed: %w", err)
	}
	if s.ttl > 0 && s.now().Sub(time.Unix(storedAt, 0)) > s.ttl {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM embeds WHERE key = ?", key); err != nil {
			return nil, false, fmt.Errorf("expire embed: %w", err)
		}
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLite) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeds (key, value, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, stored_at = excluded.stored_at`,
		key, value, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert embed: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
