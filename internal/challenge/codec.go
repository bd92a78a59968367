// Package challenge issues and verifies signed arithmetic challenges.
//
// A challenge is self-contained: the server keeps no record of it and any
// instance sharing the secret can verify it. Within its TTL a solved token can
// be submitted again unless the optional replay guard is configured, which
// remembers verified signatures in a cache.Store until they expire.
package challenge

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"exposureshield/internal/config"
	"exposureshield/pkg/cache"
	"exposureshield/pkg/domain"
	"exposureshield/pkg/logger"

	"go.uber.org/zap"
)

const optionCount = 3

// ErrNoSecret is returned by New when the signing secret is empty.
var ErrNoSecret = errors.New("challenge secret is not configured")

// Outcome is the detailed result of checking a submitted answer.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeMalformed    Outcome = "malformed"
	OutcomeBadSignature Outcome = "bad_signature"
	OutcomeExpired      Outcome = "expired"
	OutcomeWrongAnswer  Outcome = "wrong_answer"
	OutcomeReplayed     Outcome = "replayed"

	// OutcomeBusy means the replay guard has no room left to remember the
	// token, which is then refused.
	OutcomeBusy Outcome = "busy"
)

// Message returns a caller-facing explanation of o.
func (o Outcome) Message() string {
	switch o {
	case OutcomeOK:
		return "challenge solved"
	case OutcomeExpired:
		return "challenge expired, please request a new one"
	case OutcomeWrongAnswer:
		return "wrong answer to the challenge"
	case OutcomeReplayed:
		return "challenge was already used, please request a new one"
	case OutcomeBusy:
		return "too many submissions right now, please try again shortly"
	default:
		return "invalid challenge"
	}
}

// Options configure a Codec.
type Options struct {
	// Secret is the HMAC-SHA256 key.
	Secret []byte
	// TTL is how long a token stays valid after it was issued.
	TTL time.Duration
	// MinOperand and MaxOperand bound both operands, inclusive.
	MinOperand int
	MaxOperand int
	// Replay, when set, makes each token single-use.
	Replay cache.Store
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewOptions builds Options from the application config. The replay store is
// left for the caller to inject.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Secret:     []byte(cfg.Challenge.Secret),
		TTL:        cfg.Challenge.TTL,
		MinOperand: cfg.Challenge.MinOperand,
		MaxOperand: cfg.Challenge.MaxOperand,
	}
}

// Codec issues and verifies tokens. It is safe for concurrent use.
type Codec struct {
	secret   []byte
	ttl      time.Duration
	min, max int
	replay   cache.Store
	now      func() time.Time
}

// New returns a Codec. It fails when no secret is configured so a missing key
// is caught at startup rather than reported as a failed challenge.
func New(opts Options) (*Codec, error) {
	if len(opts.Secret) == 0 {
		return nil, ErrNoSecret
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.MaxOperand < opts.MinOperand || opts.MaxOperand == 0 {
		opts.MinOperand, opts.MaxOperand = 2, 9
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Codec{
		secret: opts.Secret,
		ttl:    opts.TTL,
		min:    opts.MinOperand,
		max:    opts.MaxOperand,
		replay: opts.Replay,
		now:    opts.Now,
	}, nil
}

// TTL returns how long issued tokens stay valid.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue returns a fresh token stamped with the current time.
func (c *Codec) Issue() domain.ChallengeToken {
	a := c.min + rand.IntN(c.max-c.min+1) //nolint: gosec
	b := c.min + rand.IntN(c.max-c.min+1) //nolint: gosec
	ts := c.now().Unix()

	return domain.ChallengeToken{
		OperandA:  a,
		OperandB:  b,
		IssuedAt:  ts,
		Signature: c.sign(a, b, ts),
		Options:   options(a + b),
	}
}

// Verify reports whether answer solves token and token is authentic and
// fresh. Malformed input yields false.
func (c *Codec) Verify(ctx context.Context, token domain.ChallengeToken, answer int) bool {
	return c.Inspect(ctx, token, answer) == OutcomeOK
}

// Inspect is Verify with the reason of a rejection.
func (c *Codec) Inspect(ctx context.Context, token domain.ChallengeToken, answer int) Outcome {
	got, err := hex.DecodeString(token.Signature)
	if err != nil || len(got) != sha256.Size {
		return OutcomeMalformed
	}

	want, _ := hex.DecodeString(c.sign(token.OperandA, token.OperandB, token.IssuedAt))
	if !hmac.Equal(got, want) {
		return OutcomeBadSignature
	}

	age := c.now().Sub(time.Unix(token.IssuedAt, 0))
	if age > c.ttl || age < -c.ttl {
		return OutcomeExpired
	}

	if answer != token.OperandA+token.OperandB {
		return OutcomeWrongAnswer
	}

	if c.replay != nil {
		// hex decoding ignores letter case, so the key uses the canonical form
		fresh, err := c.replay.SetNX(ctx, "challenge:"+hex.EncodeToString(got), []byte{1}, c.ttl)
		switch {
		case errors.Is(err, cache.ErrFull):
			logger.Warn(ctx, "challenge replay guard is full, refusing token")

			return OutcomeBusy
		case err != nil:
			logger.Warn(ctx, "challenge replay guard unavailable, accepting token", zap.Error(err))

			return OutcomeOK
		}
		if !fresh {
			return OutcomeReplayed
		}
	}

	return OutcomeOK
}

func (c *Codec) sign(a, b int, ts int64) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(strconv.Itoa(a) + ":" + strconv.Itoa(b) + ":" + strconv.FormatInt(ts, 10)))

	return hex.EncodeToString(mac.Sum(nil))
}

// options returns optionCount distinct positive candidates, one of them
// answer, in random order.
func options(answer int) []int {
	out := []int{answer}
	seen := map[int]bool{answer: true}
	for _, d := range rand.Perm(6) { //nolint: gosec
		offset := d/2 + 1
		if d%2 == 1 {
			offset = -offset
		}

		candidate := answer + offset
		if candidate <= 0 || seen[candidate] {
			continue
		}

		seen[candidate] = true
		out = append(out, candidate)
		if len(out) == optionCount {
			break
		}
	}

	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] }) //nolint: gosec

	return out
}
