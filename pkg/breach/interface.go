// Package breach defines the evidence sources an exposure evaluation asks:
// a password corpus queried by hash prefix and email sources returning
// breach records. Implementations live in sub-packages.
//
//go:generate mockgen -package mockbreach -source=interface.go -destination=mock/mockbreach.go *
package breach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"exposureshield/pkg/domain"
)

// PasswordChecker reports how often a password appears in a breach corpus.
type PasswordChecker interface {
	// CheckPassword returns the occurrence count of password. Absence is a
	// zero count, not an error; errors mean the corpus could not be asked.
	CheckPassword(ctx context.Context, password string) (domain.PasswordExposure, error)
}

// EmailSource returns the breaches an email address appears in.
type EmailSource interface {
	// Lookup returns the records of email. No records is an empty slice and
	// a nil error.
	Lookup(ctx context.Context, email string) ([]domain.EmailExposureRecord, error)
}

// RateLimitError is the cause attached to serrors.ErrRateLimited when an
// upstream refused a request because of its own rate limit.
type RateLimitError struct {
	// RetryAfter is the wait the upstream asked for; zero when unknown.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}

	return "rate limited"
}

// NormalizeEmail trims and lower-cases an address for matching and keying.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
