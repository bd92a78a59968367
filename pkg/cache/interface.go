// Package cache defines the TTL key-value store injected into components
// that keep short-lived shared state: password range bodies, directory
// answers and the challenge replay guard.
//
//go:generate mockgen -package mockcache -source=interface.go -destination=mock/mockcache.go *
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrFull is returned by a bounded store that may not evict live entries to
// make room for a new one.
var ErrFull = errors.New("cache is full")

// Store is a concurrent key-value store whose entries expire after a TTL.
// Expired entries must never be returned; implementations may drop them
// lazily on read.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key for ttl, replacing any previous value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value under key for ttl only if no live entry exists. It
	// reports whether the value was stored.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}
