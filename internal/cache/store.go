package cache

import (
	"context"
	"time"
)

// Store represents a shared cache used for rate limiting and session lookups.
// Get reports false when the key is absent or expired.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
