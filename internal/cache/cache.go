package cache

import (
	"context"
	"time"
)

// Cache is a small JSON cache for request-path reads that may be briefly
// stale, like queue depth snapshots.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
