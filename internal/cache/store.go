// Package cache provides the key/value store used for response caching,
// rate limiting and the scheduler lock. Redis backs it in deployments; the
// in-process Memory store serves single-instance runs and tests.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache: miss")

// Store is the subset of redis semantics the service relies on
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelPrefix(ctx context.Context, prefix string) error
	// IncrWindow increments a fixed-window counter and returns the count and
	// the time left in the window
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// AcquireLock returns ok=false when another holder owns key
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
	Ping(ctx context.Context) error
	Close() error
}

// Key joins parts with ':'
func Key(prefix string, parts ...string) string {
	key := prefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
