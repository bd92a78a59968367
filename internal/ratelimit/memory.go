package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const memoryShards = 64

// bucket holds the admitted timestamps of one key in ascending order.
type bucket struct {
	mu     sync.Mutex
	stamps []time.Time
	window time.Duration
	// dead is set by Reap once the bucket has been removed from its shard.
	// A caller that raced with Reap must look the key up again.
	dead bool
}

// prune must be called with b.mu held.
func (b *bucket) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(b.stamps) && b.stamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.stamps = append(b.stamps[:0], b.stamps[i:]...)
	}
}

type memoryShard struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

// MemoryStore keeps buckets in process. Keys are spread over shards by
// xxhash; a shard lock only guards the bucket map and each bucket has its own
// lock, so distinct keys never wait on each other's bookkeeping.
type MemoryStore struct {
	shards [memoryShards]memoryShard
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Reaper = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].buckets = make(map[string]*bucket)
	}

	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	return &s.shards[xxhash.Sum64String(key)%memoryShards]
}

// lookup returns the bucket of key, creating it when missing.
func (s *MemoryStore) lookup(key string) *bucket {
	sh := s.shard(key)

	sh.mu.RLock()
	b, ok := sh.buckets[key]
	sh.mu.RUnlock()
	if ok {
		return b
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if b, ok = sh.buckets[key]; !ok {
		b = &bucket{}
		sh.buckets[key] = b
	}

	return b
}

// Hit implements Store.
func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, limit int, window time.Duration) (bool, error) {
	for {
		b := s.lookup(key)

		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()

			continue
		}

		b.window = window
		b.prune(now, window)
		if len(b.stamps) >= limit {
			b.mu.Unlock()

			return false, nil
		}

		b.stamps = append(b.stamps, now)
		b.mu.Unlock()

		return true, nil
	}
}

// Reap implements Reaper.
func (s *MemoryStore) Reap(now time.Time) int {
	reaped := 0
	for i := range s.shards {
		sh := &s.shards[i]

		sh.mu.Lock()
		for key, b := range sh.buckets {
			b.mu.Lock()
			b.prune(now, b.window)
			if len(b.stamps) == 0 {
				b.dead = true
				delete(sh.buckets, key)
				reaped++
			}
			b.mu.Unlock()
		}
		sh.mu.Unlock()
	}

	return reaped
}

// Len returns the number of live buckets.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.RLock()
		n += len(s.shards[i].buckets)
		s.shards[i].mu.RUnlock()
	}

	return n
}
