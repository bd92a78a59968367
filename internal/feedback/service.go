package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"exposureshield/internal/challenge"
	"exposureshield/internal/config"
	"exposureshield/pkg/domain"
	"exposureshield/pkg/logger"
	"exposureshield/pkg/serrors"
	"exposureshield/pkg/storage"
	"exposureshield/pkg/turnstile"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Options configure how feedback is verified and whether notifications are queued.
type Options struct {
	// Notify queues a notification job for every stored message.
	Notify bool
	// MaxAttempts is the maximum number of attempts of a notification job.
	MaxAttempts int
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Notify:      cfg.Notify.Enabled,
		MaxAttempts: cfg.Notify.MaxAttempts,
	}
}

// SubmitRequest is a feedback message together with the proof that a human
// sent it: either a solved challenge or a Turnstile token.
type SubmitRequest struct {
	Email    string `validate:"required,email,max=254"`
	Message  string `validate:"required,max=4000"`
	ClientIP string

	Challenge domain.ChallengeToken
	Answer    int
	// TurnstileToken is tried first when a verifier is configured. The
	// challenge is the fallback when it is empty or rejected.
	TurnstileToken string
}

type service struct {
	options   Options
	storage   storage.Storage
	codec     *challenge.Codec
	turnstile turnstile.Verifier
	validate  *validator.Validate
}

// New creates a feedback Service. verifier may be nil, in which case only the
// challenge is accepted.
func New(storage storage.Storage, codec *challenge.Codec, verifier turnstile.Verifier, options Options) Service {
	return &service{
		options:   options,
		storage:   storage,
		codec:     codec,
		turnstile: verifier,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *service) Challenge() domain.ChallengeToken {
	return s.codec.Issue()
}

func (s *service) Submit(ctx context.Context, req SubmitRequest) (*domain.Feedback, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validate.Struct(req); err != nil {
		return nil, serrors.Wrap(serrors.ErrBadRequest, err, "%s", invalidField(err))
	}

	verifiedBy, err := s.verify(ctx, req)
	if err != nil {
		return nil, err
	}

	var stored *domain.Feedback
	if err := s.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		stored, err = tx.StoreFeedback(ctx, domain.Feedback{
			Email:      req.Email,
			Message:    req.Message,
			ClientIP:   req.ClientIP,
			VerifiedBy: verifiedBy,
		})
		if err != nil {
			return fmt.Errorf("could not store feedback: %w", err)
		}

		if !s.options.Notify {
			return nil
		}

		if _, err := tx.AddJob(ctx, JobArgs{
			FeedbackID:  stored.ID,
			maxAttempts: s.options.MaxAttempts,
		}, nil); err != nil {
			return fmt.Errorf("could not add job: %w", err)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("could not submit feedback: %w", err)
	}

	logger.Info(ctx, "feedback stored",
		zap.Stringer("feedbackID", stored.ID),
		zap.String("verifiedBy", string(verifiedBy)),
		zap.Int("length", len(stored.Message)))

	return stored, nil
}

// verify returns how the submitter proved they are human. A Turnstile outage
// is not fatal as long as the challenge was solved.
func (s *service) verify(ctx context.Context, req SubmitRequest) (domain.Verification, error) {
	if s.turnstile != nil && req.TurnstileToken != "" {
		ok, err := s.turnstile.Verify(ctx, req.TurnstileToken, req.ClientIP)
		switch {
		case errors.Is(err, serrors.ErrMisconfigured):
			return "", err
		case err != nil:
			logger.Warn(ctx, "turnstile verification failed, falling back to challenge", zap.Error(err))
		case ok:
			return domain.VerificationTurnstile, nil
		}
	}

	if outcome := s.codec.Inspect(ctx, req.Challenge, req.Answer); outcome != challenge.OutcomeOK {
		logger.Debug(ctx, "challenge rejected", zap.String("outcome", string(outcome)))
		if outcome == challenge.OutcomeBusy {
			return "", serrors.With(serrors.ErrRateLimited, "%s", outcome.Message())
		}

		return "", serrors.With(serrors.ErrBadRequest, "%s", outcome.Message())
	}

	return domain.VerificationChallenge, nil
}

func invalidField(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid feedback"
	}

	switch field := verrs[0]; {
	case field.Tag() == "required":
		return strings.ToLower(field.Field()) + " is required"
	case field.Field() == "Email":
		return "email is not a valid address"
	default:
		return strings.ToLower(field.Field()) + " is too long"
	}
}
