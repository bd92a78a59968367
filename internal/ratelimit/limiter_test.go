package ratelimit_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"exposureshield/internal/ratelimit"
	"exposureshield/pkg/logger"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)
	m.Run()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Unix(1_700_000_000, 0)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiter_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Options{Now: c.Now})

	var got []bool
	for range 4 {
		got = append(got, l.Allow(ctx, "203.0.113.7", "feedback", 3, time.Minute))
		c.Advance(time.Second)
	}
	require.Equal(t, []bool{true, true, true, false}, got)

	c.Advance(time.Minute)
	require.True(t, l.Allow(ctx, "203.0.113.7", "feedback", 3, time.Minute))
}

func TestLimiter_RejectionIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Options{Now: c.Now})

	require.True(t, l.Allow(ctx, "a", "scan", 1, 10*time.Second))
	for range 5 {
		c.Advance(time.Second)
		require.False(t, l.Allow(ctx, "a", "scan", 1, 10*time.Second))
	}

	// only the first admitted request counts, so the window frees at t0+10s
	c.Advance(5 * time.Second)
	require.True(t, l.Allow(ctx, "a", "scan", 1, 10*time.Second))
}

func TestLimiter_WindowBoundaryIsInclusive(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Options{Now: c.Now})

	require.True(t, l.Allow(ctx, "a", "scan", 1, time.Minute))
	c.Advance(time.Minute)
	require.False(t, l.Allow(ctx, "a", "scan", 1, time.Minute), "a timestamp at exactly now-window is still inside")
	c.Advance(time.Nanosecond)
	require.True(t, l.Allow(ctx, "a", "scan", 1, time.Minute))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Options{})

	require.True(t, l.Allow(ctx, "a", "scan", 1, time.Minute))
	require.False(t, l.Allow(ctx, "a", "scan", 1, time.Minute))
	require.True(t, l.Allow(ctx, "b", "scan", 1, time.Minute))
	require.True(t, l.Allow(ctx, "a", "feedback", 1, time.Minute))
	require.True(t, l.Allow(ctx, "", "scan", 1, time.Minute))
	require.True(t, l.Allow(ctx, "unknown", "scan", 1, time.Minute))
	require.False(t, l.Allow(ctx, "unknown", "scan", 1, time.Minute))
}

func TestLimiter_AllowAction(t *testing.T) {
	ctx := context.Background()
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Options{
		Rules: map[string]ratelimit.Rule{ratelimit.ActionFeedback: {Limit: 2, Window: time.Minute}},
	})

	require.True(t, l.AllowAction(ctx, "a", ratelimit.ActionFeedback))
	require.True(t, l.AllowAction(ctx, "a", ratelimit.ActionFeedback))
	require.False(t, l.AllowAction(ctx, "a", ratelimit.ActionFeedback))

	for range 10 {
		require.True(t, l.AllowAction(ctx, "a", "unconfigured"))
	}

	rule, ok := l.Rule(ratelimit.ActionFeedback)
	require.True(t, ok)
	require.Equal(t, time.Minute, rule.Window)
}

func TestLimiter_Concurrent(t *testing.T) {
	ctx := context.Background()
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Options{})

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(ctx, "shared", "scan", 10, time.Hour) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(10), admitted.Load())
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, int, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestLimiter_FailsOpen(t *testing.T) {
	l := ratelimit.New(failingStore{}, ratelimit.Options{})
	require.True(t, l.Allow(context.Background(), "a", "scan", 1, time.Minute))
}

func TestMemoryStore_Reap(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	store := ratelimit.NewMemoryStore()
	l := ratelimit.New(store, ratelimit.Options{Now: c.Now})

	for i := range 20 {
		require.True(t, l.Allow(ctx, fmt.Sprintf("client-%d", i), "scan", 3, time.Minute))
	}
	require.True(t, l.Allow(ctx, "late", "scan", 3, 5*time.Minute))
	require.Equal(t, 21, store.Len())

	c.Advance(2 * time.Minute)
	require.Equal(t, 20, store.Reap(c.Now()))
	require.Equal(t, 1, store.Len())

	// a reaped key starts over with an empty bucket
	require.True(t, l.Allow(ctx, "client-0", "scan", 1, time.Minute))
}

func TestMemoryStore_ReapRacesWithHit(t *testing.T) {
	ctx := context.Background()
	store := ratelimit.NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				store.Reap(now.Add(time.Hour))
			}
		}
	}()

	for i := range 1000 {
		ok, err := store.Hit(ctx, fmt.Sprintf("k%d", i%7), now, 1_000_000, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	close(stop)
	wg.Wait()
}

func TestLimiter_RunReaperStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Options{})

	done := make(chan struct{})
	go func() {
		l.RunReaper(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
