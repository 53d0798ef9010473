// Package cache provides the (key, value, TTL) store injected wherever the
// engine needs freshness state, so no component carries a hidden in-process
// cache of its own.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired
var ErrMiss = errors.New("cache miss")

// Store is the cache abstraction. Implementations must treat a miss as
// ErrMiss, not a failure; any other error means the backend is unhealthy
// and the caller should degrade.
type Store interface {
	// Get unmarshals the cached value into dest
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Healthy() bool
	Close() error
}
