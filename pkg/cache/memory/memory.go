// Package memory provides an in-process cache.Store split into shards picked
// by xxhash, so unrelated keys rarely contend on the same lock.
package memory

import (
	"context"
	"sync"
	"time"

	"exposureshield/pkg/cache"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 32

type entry struct {
	value     []byte
	expiresAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// Options configure a Store.
type Options struct {
	// Shards is the number of independently locked partitions. Defaults to 32.
	Shards int
	// MaxEntriesPerShard bounds memory. When a shard is full, expired entries
	// are purged first and then an arbitrary live entry is evicted. Zero means
	// unbounded.
	MaxEntriesPerShard int
	// NoEviction keeps live entries when a shard is full: only expired entries
	// are purged, and writes of new keys fail with cache.ErrFull if that is
	// not enough.
	NoEviction bool
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Store is a sharded in-memory cache.Store with passive expiry.
type Store struct {
	shards     []*shard
	maxEntries int
	noEviction bool
	now        func() time.Time
}

var _ cache.Store = (*Store)(nil)

// New creates an empty Store.
func New(opts Options) *Store {
	if opts.Shards <= 0 {
		opts.Shards = defaultShards
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	shards := make([]*shard, opts.Shards)
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]entry)}
	}

	return &Store{
		shards:     shards,
		maxEntries: opts.MaxEntriesPerShard,
		noEviction: opts.NoEviction,
		now:        opts.Now,
	}
}

func (s *Store) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Get returns the live value under key. An expired entry is removed.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	sh := s.shardFor(key)
	now := s.now()

	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !now.Before(e.expiresAt) {
		sh.mu.Lock()
		// another writer may have refreshed the key in between
		if cur, ok := sh.entries[key]; ok && !now.Before(cur.expiresAt) {
			delete(sh.entries, key)
		}
		sh.mu.Unlock()

		return nil, false, nil
	}

	return e.value, true, nil
}

// Set stores value under key for ttl.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	sh := s.shardFor(key)
	now := s.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if err := s.makeRoom(sh, key, now); err != nil {
		return err
	}
	sh.entries[key] = entry{value: value, expiresAt: now.Add(ttl)}

	return nil
}

// SetNX stores value under key for ttl unless a live entry exists.
func (s *Store) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	sh := s.shardFor(key)
	now := s.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if e, ok := sh.entries[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}

	if err := s.makeRoom(sh, key, now); err != nil {
		return false, err
	}
	sh.entries[key] = entry{value: value, expiresAt: now.Add(ttl)}

	return true, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}

	return n
}

// makeRoom must be called with sh.mu held for writing.
func (s *Store) makeRoom(sh *shard, key string, now time.Time) error {
	if s.maxEntries <= 0 || len(sh.entries) < s.maxEntries {
		return nil
	}
	if _, exists := sh.entries[key]; exists {
		return nil
	}

	for k, e := range sh.entries {
		if !now.Before(e.expiresAt) {
			delete(sh.entries, k)
		}
	}

	if s.noEviction {
		if len(sh.entries) >= s.maxEntries {
			return cache.ErrFull
		}

		return nil
	}

	for k := range sh.entries {
		if len(sh.entries) < s.maxEntries {
			break
		}
		delete(sh.entries, k)
	}

	return nil
}
