// Package hibp implements breach.EmailSource over the Have I Been Pwned
// breachedaccount API.
package hibp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"exposureshield/pkg/breach"
	"exposureshield/pkg/cache"
	"exposureshield/pkg/domain"
	"exposureshield/pkg/logger"
	"exposureshield/pkg/serrors"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// RetryPolicy bounds the retries made when the API answers 429.
type RetryPolicy struct {
	// MaxAttempts is the total number of requests, including the first one.
	MaxAttempts int
	// DefaultRetryAfter is the wait used when the API sent no usable hint.
	DefaultRetryAfter time.Duration
	// MaxBackoff caps every wait, whatever the API asked for.
	MaxBackoff time.Duration
}

// backoff returns a go-retry Backoff that waits for the latest hint stored in
// hint, falling back to DefaultRetryAfter.
func (p RetryPolicy) backoff(hint *retryHint) retry.Backoff {
	var b retry.Backoff = retry.BackoffFunc(func() (time.Duration, bool) {
		if d := hint.get(); d > 0 {
			return d, false
		}

		return p.DefaultRetryAfter, false
	})
	if p.MaxBackoff > 0 {
		b = retry.WithCappedDuration(p.MaxBackoff, b)
	}

	return retry.WithMaxRetries(uint64(max(p.MaxAttempts, 1)-1), b) //nolint: gosec
}

type retryHint struct {
	mu sync.Mutex
	d  time.Duration
}

func (h *retryHint) get() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.d
}

func (h *retryHint) set(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.d = d
}

// Options configure a Client.
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Retry     RetryPolicy
	// CacheTTL is how long a successful answer is reused. Zero disables caching.
	CacheTTL time.Duration
	// Now is used to interpret HTTP-date Retry-After values. Defaults to time.Now.
	Now func() time.Time
}

// Client queries the breachedaccount endpoint.
type Client struct {
	httpClient *http.Client
	cache      cache.Store
	options    Options
}

var _ breach.EmailSource = (*Client)(nil)

// New returns a Client. store may be nil to disable caching.
func New(httpClient *http.Client, store cache.Store, options Options) *Client {
	options.BaseURL = strings.TrimRight(options.BaseURL, "/")
	if options.Now == nil {
		options.Now = time.Now
	}

	return &Client{
		httpClient: httpClient,
		cache:      store,
		options:    options,
	}
}

type breachModel struct {
	Name        string   `json:"Name"`
	Title       string   `json:"Title"`
	Domain      string   `json:"Domain"`
	BreachDate  string   `json:"BreachDate"`
	DataClasses []string `json:"DataClasses"`
}

func (m breachModel) toDomain() domain.EmailExposureRecord {
	rec := domain.EmailExposureRecord{
		SourceName:  m.Title,
		Domain:      m.Domain,
		DataClasses: m.DataClasses,
	}
	if rec.SourceName == "" {
		rec.SourceName = m.Name
	}
	if rec.DataClasses == nil {
		rec.DataClasses = []string{}
	}
	if t, err := time.Parse(dateLayout, m.BreachDate); err == nil {
		rec.BreachDate = &t
	}

	return rec
}

// Lookup implements breach.EmailSource.
//
// A 404 is an empty result. A 429 is retried under the configured policy and,
// once attempts run out, returned as serrors.ErrRateLimited wrapping a
// *breach.RateLimitError. 401 and 403 are serrors.ErrMisconfigured.
func (c *Client) Lookup(ctx context.Context, email string) ([]domain.EmailExposureRecord, error) {
	if c.options.APIKey == "" {
		return nil, serrors.With(serrors.ErrMisconfigured, "breach directory api key is not configured")
	}

	email = breach.NormalizeEmail(email)
	key := cacheKey(email)

	if records, ok := c.cached(ctx, key); ok {
		return records, nil
	}

	hint := &retryHint{}
	var records []domain.EmailExposureRecord
	err := retry.Do(ctx, c.options.Retry.backoff(hint), func(ctx context.Context) error {
		var err error
		records, err = c.fetch(ctx, email)

		var rl *breach.RateLimitError
		if errors.As(err, &rl) {
			hint.set(rl.RetryAfter)
			logger.Debug(ctx, "breach directory rate limited", zap.Duration("retryAfter", rl.RetryAfter))

			return retry.RetryableError(err)
		}

		return err
	})
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, records)

	return records, nil
}

func (c *Client) fetch(ctx context.Context, email string) ([]domain.EmailExposureRecord, error) {
	// https://haveibeenpwned.com/API/v3#BreachesForAccount
	endpoint := c.options.BaseURL + "/breachedaccount/" + url.PathEscape(email) + "?truncateResponse=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("hibp-api-key", c.options.APIKey)
	req.Header.Set("User-Agent", c.options.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("breach directory request: %w", ctx.Err())
		}

		return nil, serrors.Wrap(serrors.ErrUnavailable, err, "could not reach breach directory")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return []domain.EmailExposureRecord{}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := ParseRetryAfter(resp.Header.Get("Retry-After"), c.options.Now())

		return nil, serrors.Wrap(serrors.ErrRateLimited, &breach.RateLimitError{RetryAfter: wait}, "breach directory")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, serrors.With(serrors.ErrMisconfigured, "breach directory rejected the api key (status %d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, serrors.With(serrors.ErrUnavailable, "breach directory returned %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrUnavailable, err, "could not read breach directory response")
	}

	var models []breachModel
	if err := json.Unmarshal(b, &models); err != nil {
		return nil, serrors.Wrap(serrors.ErrUnavailable, err, "could not decode breach directory response")
	}

	records := make([]domain.EmailExposureRecord, 0, len(models))
	for _, m := range models {
		records = append(records, m.toDomain())
	}

	return records, nil
}

func (c *Client) cached(ctx context.Context, key string) ([]domain.EmailExposureRecord, bool) {
	if c.cache == nil || c.options.CacheTTL <= 0 {
		return nil, false
	}

	b, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "could not read breach directory cache", zap.Error(err))

		return nil, false
	}
	if !ok {
		return nil, false
	}

	var records []domain.EmailExposureRecord
	if err := json.Unmarshal(b, &records); err != nil {
		logger.Warn(ctx, "ignoring corrupt breach directory cache entry", zap.Error(err))

		return nil, false
	}

	return records, true
}

func (c *Client) store(ctx context.Context, key string, records []domain.EmailExposureRecord) {
	if c.cache == nil || c.options.CacheTTL <= 0 {
		return
	}

	b, err := json.Marshal(records)
	if err != nil {
		logger.Warn(ctx, "could not encode breach directory cache entry", zap.Error(err))

		return
	}
	if err := c.cache.Set(ctx, key, b, c.options.CacheTTL); err != nil {
		logger.Warn(ctx, "could not write breach directory cache", zap.Error(err))
	}
}

// cacheKey keeps addresses out of the cache keyspace.
func cacheKey(email string) string {
	sum := sha256.Sum256([]byte(email))

	return "hibp:account:" + hex.EncodeToString(sum[:])
}

// MaxRetryAfter caps any Retry-After hint.
const MaxRetryAfter = time.Hour

// ParseRetryAfter accepts both delay-seconds (digits only) and HTTP-date
// forms, capped at MaxRetryAfter. Unusable values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseUint(v, 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
		if err != nil || secs > uint64(MaxRetryAfter/time.Second) {
			return MaxRetryAfter
		}

		return time.Duration(secs) * time.Second //nolint: gosec
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return min(d, MaxRetryAfter)
		}
	}

	return 0
}
