package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiselect/pkg/db"
)

func TestSQLiteCache(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "cache_test.db"))
	require.NoError(t, err)
	defer d.Close()
	c := NewSQLiteCache(d, 0)
	ctx := context.Background()

	val, hit := c.GetCache(ctx, "any-key")
	assert.False(t, hit)
	assert.Nil(t, val)

	require.NoError(t, c.SetCache(ctx, "any-key", []byte("data")))
	val, hit = c.GetCache(ctx, "any-key")
	assert.True(t, hit)
	assert.Equal(t, []byte("data"), val)

	require.NoError(t, c.SetCache(ctx, "any-key", []byte("newer")))
	val, _ = c.GetCache(ctx, "any-key")
	assert.Equal(t, []byte("newer"), val)
}

func TestSQLiteCache_Expired(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "cache_ttl.db"))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Exec("INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)",
		"stale", []byte("x"), time.Now().Add(-2*time.Hour).UTC().Format("2006-01-02 15:04:05"))
	require.NoError(t, err)

	_, hit := NewSQLiteCache(d, time.Hour).GetCache(context.Background(), "stale")
	assert.False(t, hit)
	_, hit = NewSQLiteCache(d, 0).GetCache(context.Background(), "stale")
	assert.True(t, hit)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := OpenRedis(mr.Addr(), "", 0)
	require.NotNil(t, rc)
	defer rc.Close()

	c := NewRedisCache(rc, time.Minute)
	ctx := context.Background()

	_, hit := c.GetCache(ctx, "k")
	assert.False(t, hit)

	require.NoError(t, c.SetCache(ctx, "k", []byte("v")))
	val, hit := c.GetCache(ctx, "k")
	assert.True(t, hit)
	assert.Equal(t, []byte("v"), val)

	mr.FastForward(2 * time.Minute)
	_, hit = c.GetCache(ctx, "k")
	assert.False(t, hit)
}

func TestOpenRedis_Empty(t *testing.T) {
	assert.Nil(t, OpenRedis("", "", 0))
}

func TestNop(t *testing.T) {
	var c Cacher = Nop{}
	assert.NoError(t, c.SetCache(context.Background(), "k", []byte("v")))
	_, hit := c.GetCache(context.Background(), "k")
	assert.False(t, hit)
}
