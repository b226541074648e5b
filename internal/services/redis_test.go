package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache, err := NewRedisCache("redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestRedisCache_Basic(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Ping(ctx))

	key := "test:key:123"
	require.NoError(t, cache.Set(ctx, key, "test value", time.Minute))

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "test value", got)
	assert.Equal(t, time.Minute, mr.TTL(key))

	require.NoError(t, cache.Del(ctx, key))
	got, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got, "missing keys read as empty")
}

func TestRedisCache_Expiry(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short", "v", time.Second))
	mr.FastForward(2 * time.Second)

	got, err := cache.Get(ctx, "short")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache("://nope", testLogger())
	assert.Error(t, err)
}

func TestRedisCache_SharedClientStaysOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cache := NewRedisCacheWithClient(rdb, testLogger())
	require.NoError(t, cache.Close())
	assert.NoError(t, rdb.Ping(context.Background()).Err(), "shared client is not closed")
}

func TestRedisCache_PingFailsWhenDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cache, err := NewRedisCache("redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)
	defer cache.Close()
	mr.Close()

	assert.Error(t, cache.Ping(context.Background()))
}
