package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeToken is a signed arithmetic puzzle. The signature covers
// OperandA, OperandB and IssuedAt only; Options is a presentation hint.
type ChallengeToken struct {
	OperandA  int
	OperandB  int
	IssuedAt  int64 // unix seconds
	Signature string
	Options   []int
}

// FeedbackID identifies a stored feedback message.
type FeedbackID uuid.UUID

// String returns the canonical uuid form.
func (id FeedbackID) String() string { return uuid.UUID(id).String() }

// MarshalText implements encoding.TextMarshaler.
func (id FeedbackID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText() //nolint: wrapcheck
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *FeedbackID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b) //nolint: wrapcheck
}

// ParseFeedbackID parses the canonical uuid form.
func ParseFeedbackID(s string) (FeedbackID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return FeedbackID{}, err //nolint: wrapcheck
	}

	return FeedbackID(id), nil
}

// Verification names how a feedback submitter proved they are not a bot.
type Verification string

const (
	// VerificationChallenge is the signed arithmetic challenge.
	VerificationChallenge Verification = "challenge"
	// VerificationTurnstile is the third-party CAPTCHA.
	VerificationTurnstile Verification = "turnstile"
)

// Feedback is a message left by a visitor.
type Feedback struct {
	ID         FeedbackID   `json:"id"`
	Email      string       `json:"email"`
	Message    string       `json:"message"`
	ClientIP   string       `json:"clientIp"`
	VerifiedBy Verification `json:"verifiedBy"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// ScanLog records that an evaluation happened. The address is kept only as a
// keyed hash so the log cannot be turned back into a mailing list.
type ScanLog struct {
	ID        int64         `json:"id"`
	EmailHash string        `json:"emailHash"`
	Status    VerdictStatus `json:"status"`
	ClientIP  string        `json:"clientIp"`
	CreatedAt time.Time     `json:"createdAt"`
}
