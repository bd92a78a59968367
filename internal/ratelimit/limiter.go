// Package ratelimit bounds how often a client may perform an action using a
// sliding window: a request is admitted when fewer than limit requests from
// the same client for the same action happened in the trailing window.
//
// Buckets live in an injected Store. The memory store keeps them in process
// and the redis store shares them between instances.
package ratelimit

import (
	"context"
	"time"

	"exposureshield/internal/config"
	"exposureshield/pkg/logger"
	"exposureshield/pkg/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Action names used by the HTTP layer.
const (
	ActionScan      = "scan"
	ActionFeedback  = "feedback"
	ActionChallenge = "challenge"
)

// Store keeps one ordered timestamp sequence per key.
type Store interface {
	// Hit drops every timestamp of key older than now-window. If limit or more
	// remain it returns false without recording; otherwise it records now and
	// returns true. Calls for the same key are serialized.
	Hit(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (bool, error)
}

// Reaper is implemented by stores that need idle buckets removed explicitly.
type Reaper interface {
	// Reap deletes every bucket without a timestamp inside its window and
	// returns how many were deleted.
	Reap(now time.Time) int
}

// Rule is a limit per window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Options configure a Limiter.
type Options struct {
	// Rules maps an action name to its limit. Actions without a rule are
	// always allowed by AllowAction.
	Rules map[string]Rule
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewOptions builds Options from the application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Rules: map[string]Rule{
			ActionScan:      {Limit: cfg.RateLimit.Scan.Limit, Window: cfg.RateLimit.Scan.Window},
			ActionFeedback:  {Limit: cfg.RateLimit.Feedback.Limit, Window: cfg.RateLimit.Feedback.Window},
			ActionChallenge: {Limit: cfg.RateLimit.Challenge.Limit, Window: cfg.RateLimit.Challenge.Window},
		},
	}
}

// Limiter admits or rejects requests per (client, action).
type Limiter struct {
	store    Store
	rules    map[string]Rule
	now      func() time.Time
	rejected metric.Int64Counter
}

// New returns a Limiter over store.
func New(store Store, opts Options) *Limiter {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	rejected, err := metrics.Meter().Int64Counter("ratelimit.rejected",
		metric.WithDescription("Requests rejected by the sliding window rate limiter"))
	if err != nil {
		logger.Warn(context.Background(), "could not create rate limit counter", zap.Error(err))
	}

	return &Limiter{
		store:    store,
		rules:    opts.Rules,
		now:      opts.Now,
		rejected: rejected,
	}
}

// Allow reports whether clientID may perform action now, given at most limit
// admitted requests per window. An empty or "unknown" clientID is a valid key.
//
// When the store fails the request is admitted and the failure logged, so an
// unreachable store cannot take the service down.
func (l *Limiter) Allow(ctx context.Context, clientID, action string, limit int, window time.Duration) bool {
	if limit <= 0 || window <= 0 {
		return true
	}

	ok, err := l.store.Hit(ctx, Key(clientID, action), l.now(), limit, window)
	if err != nil {
		logger.Warn(ctx, "rate limit store failed, allowing request",
			zap.String("action", action),
			zap.Error(err))

		return true
	}

	if !ok && l.rejected != nil {
		l.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	}

	return ok
}

// AllowAction is Allow with the limit configured for action.
func (l *Limiter) AllowAction(ctx context.Context, clientID, action string) bool {
	rule, ok := l.rules[action]
	if !ok {
		return true
	}

	return l.Allow(ctx, clientID, action, rule.Limit, rule.Window)
}

// Rule returns the configured rule of action.
func (l *Limiter) Rule(action string) (Rule, bool) {
	rule, ok := l.rules[action]

	return rule, ok
}

// RunReaper deletes idle buckets every interval until ctx is done. It returns
// immediately when the store expires buckets on its own.
func (l *Limiter) RunReaper(ctx context.Context, interval time.Duration) {
	reaper, ok := l.store.(Reaper)
	if !ok || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reaper.Reap(l.now()); n > 0 {
				logger.Debug(ctx, "reaped idle rate limit buckets", zap.Int("count", n))
			}
		}
	}
}

// Key returns the bucket key of (clientID, action).
func Key(clientID, action string) string {
	return action + ":" + clientID
}
