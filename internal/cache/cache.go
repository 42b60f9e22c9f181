// Package cache holds the short-lived state shared between API replicas: the
// upload records served to polling clients and the per-key request counters.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-valued key store with expiry. Implementations must be safe
// for concurrent use. Get reports a missing key as (nil, false, nil).
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	// IncrWithExpiry increments key and starts its expiry on the first hit of
	// a window. Later hits leave the expiry alone.
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}
