// Package cache stores raw remote responses keyed by request.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"multiselect/pkg/db"
)

// Cacher defines the caching interface.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// SQLiteCache implements Cacher using pkg/db.
type SQLiteCache struct {
	db  *db.DB
	ttl time.Duration
}

// NewSQLiteCache creates a new cache. Entries older than ttl are treated as
// misses; a zero ttl keeps entries until pruned.
func NewSQLiteCache(d *db.DB, ttl time.Duration) *SQLiteCache {
	return &SQLiteCache{db: d, ttl: ttl}
}

func (c *SQLiteCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var (
		val     []byte
		created string
	)
	err := c.db.QueryRowContext(ctx, "SELECT value, created_at FROM cache WHERE key = ?", key).Scan(&val, &created)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("Cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	if c.ttl > 0 && expired(created, c.ttl) {
		return nil, false
	}
	return val, true
}

func (c *SQLiteCache) SetCache(ctx context.Context, key string, val []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache (key, value, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, created_at = excluded.created_at`,
		key, val)
	return err
}

// Nop never stores anything.
type Nop struct{}

func (Nop) GetCache(context.Context, string) ([]byte, bool) { return nil, false }
func (Nop) SetCache(context.Context, string, []byte) error  { return nil }

// expired parses a stored timestamp. The driver may hand it back either as
// SQLite text or as a formatted time value.
func expired(created string, ttl time.Duration) bool {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, created); err == nil {
			return time.Since(t) > ttl
		}
	}
	return true
}
