// Package pwnedpasswords provides a breach.PasswordChecker backed by the Pwned
// Passwords range API. Only the first five hex characters of the password's
// SHA-1 digest leave the process.
package pwnedpasswords

import (
	"bufio"
	"context"
	"crypto/sha1" //nolint: gosec
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"exposureshield/pkg/breach"
	"exposureshield/pkg/cache"
	"exposureshield/pkg/domain"
	"exposureshield/pkg/logger"
	"exposureshield/pkg/serrors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PrefixLength is the number of hex digits sent to the API.
const PrefixLength = 5

// Options configure a Client.
type Options struct {
	// BaseURL is the API root, e.g. https://api.pwnedpasswords.com.
	BaseURL string
	// CacheTTL is how long a range body is reused. Zero disables caching.
	CacheTTL time.Duration
	// UserAgent is sent with every request.
	UserAgent string
}

// Client queries the range API. It is safe for concurrent use; concurrent
// lookups of the same prefix share a single request, which is cancelled once
// every caller waiting for it has gone.
type Client struct {
	httpClient *http.Client
	cache      cache.Store
	options    Options
	inflight   singleflight.Group

	mu     sync.Mutex
	shared map[string]*sharedRequest
}

// sharedRequest is the context of the request in flight for a prefix and the
// number of callers waiting for it.
type sharedRequest struct {
	ctx     context.Context //nolint: containedctx
	cancel  context.CancelFunc
	waiters int
}

var _ breach.PasswordChecker = (*Client)(nil)

// New returns a Client. store may be nil to disable caching.
func New(httpClient *http.Client, store cache.Store, options Options) *Client {
	options.BaseURL = strings.TrimRight(options.BaseURL, "/")

	return &Client{
		httpClient: httpClient,
		cache:      store,
		options:    options,
		shared:     make(map[string]*sharedRequest),
	}
}

// HashPrefix returns the upper-case SHA-1 hex digest of password split into
// the prefix sent to the API and the suffix matched locally.
func HashPrefix(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password)) //nolint: gosec
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))

	return digest[:PrefixLength], digest[PrefixLength:]
}

// CheckPassword implements breach.PasswordChecker.
func (c *Client) CheckPassword(ctx context.Context, password string) (domain.PasswordExposure, error) {
	prefix, suffix := HashPrefix(password)

	body, err := c.Range(ctx, prefix)
	if err != nil {
		return domain.PasswordExposure{}, err
	}

	return domain.PasswordExposure{OccurrenceCount: MatchSuffix(body, suffix)}, nil
}

// Range returns the body listing every suffix sharing prefix, from the cache
// when possible.
func (c *Client) Range(ctx context.Context, prefix string) (string, error) {
	key := "pwned:range:" + prefix

	if c.cache != nil && c.options.CacheTTL > 0 {
		body, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			logger.Warn(ctx, "could not read password range cache", zap.Error(err))
		}
		if ok {
			return string(body), nil
		}
	}

	sharedCtx := c.join(ctx, prefix)
	defer c.leave(prefix)

	ch := c.inflight.DoChan(prefix, func() (any, error) {
		body, err := c.fetch(sharedCtx, prefix)
		if err != nil {
			return "", err
		}

		if c.cache != nil && c.options.CacheTTL > 0 {
			if err := c.cache.Set(sharedCtx, key, []byte(body), c.options.CacheTTL); err != nil {
				logger.Warn(ctx, "could not write password range cache", zap.Error(err))
			}
		}

		return body, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("password range lookup: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		return res.Val.(string), nil //nolint: forcetypeassert
	}
}

// join registers a caller waiting for prefix and returns the context of the
// shared request. It outlives the caller's cancellation but not its values.
func (c *Client) join(ctx context.Context, prefix string) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.shared[prefix]
	if !ok {
		sharedCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		req = &sharedRequest{ctx: sharedCtx, cancel: cancel}
		c.shared[prefix] = req
	}
	req.waiters++

	return req.ctx
}

// leave unregisters a caller. The last one out cancels the shared request and
// makes singleflight forget it, so a later caller starts a fresh request
// instead of joining a cancelled one.
func (c *Client) leave(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.shared[prefix]
	if !ok {
		return
	}

	req.waiters--
	if req.waiters > 0 {
		return
	}

	req.cancel()
	c.inflight.Forget(prefix)
	delete(c.shared, prefix)
}

func (c *Client) fetch(ctx context.Context, prefix string) (string, error) {
	// https://haveibeenpwned.com/API/v3#SearchingPwnedPasswordsByRange
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.options.BaseURL+"/range/"+prefix, nil)
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Add-Padding", "true")
	if c.options.UserAgent != "" {
		req.Header.Set("User-Agent", c.options.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", serrors.Wrap(serrors.ErrUnavailable, err, "could not reach password range api")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", serrors.Wrap(serrors.ErrUnavailable, err, "could not read password range response")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", serrors.Wrap(serrors.ErrRateLimited, &breach.RateLimitError{}, "password range api")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", serrors.With(serrors.ErrUnavailable, "password range api returned %d", resp.StatusCode)
	}

	return string(b), nil
}

// MatchSuffix scans a range body of "SUFFIX:COUNT" lines and returns the count
// of suffix, or zero. Padding lines carry a zero count and never match a real
// digest.
func MatchSuffix(body, suffix string) uint {
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		candidate, count, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok || !strings.EqualFold(candidate, suffix) {
			continue
		}

		n, err := strconv.ParseUint(strings.TrimSpace(count), 10, 64)
		if err != nil {
			return 0
		}

		return uint(n)
	}

	return 0
}
