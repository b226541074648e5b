package services

import (
	"context"
	"time"
)

// Cache is a string key/value store with per-entry expiry. Values are opaque
// to the cache; callers encode them.
type Cache interface {
	Ping(ctx context.Context) error

	// Set stores value under key. A zero ttl keeps it until deleted.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns "" and no error for a missing or expired key.
	Get(ctx context.Context, key string) (string, error)

	Del(ctx context.Context, keys ...string) error

	Close() error
}
