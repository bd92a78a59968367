// Package rediscache implements cache.Store on top of Redis, so several
// service instances share password range bodies and the replay guard.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exposureshield/pkg/cache"

	"github.com/redis/go-redis/v9"
)

// Store is a cache.Store backed by Redis string keys with native expiry.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ cache.Store = (*Store)(nil)

// New returns a Store that namespaces every key with prefix.
func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Get returns the value under key. A missing key is not an error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("could not get cache key: %w", err)
	}

	return v, true, nil
}

// Set stores value under key for ttl.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("could not set cache key: %w", err)
	}

	return nil
}

// SetNX stores value under key for ttl unless the key exists.
func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	stored, err := s.client.SetNX(ctx, s.prefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("could not set cache key: %w", err)
	}

	return stored, nil
}
