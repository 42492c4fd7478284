package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "multiselect:resp:"

// RedisCache implements Cacher on a shared Redis instance so several hosts
// can reuse remote responses.
type RedisCache struct {
	rc  *redis.Client
	ttl time.Duration
}

// OpenRedis connects to addr. It returns nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedisCache wraps a client. A zero ttl defaults to one hour.
func NewRedisCache(rc *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{rc: rc, ttl: ttl}
}

func (c *RedisCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rc.Get(ctx, redisPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Redis cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

func (c *RedisCache) SetCache(ctx context.Context, key string, val []byte) error {
	return c.rc.Set(ctx, redisPrefix+key, val, c.ttl).Err()
}
