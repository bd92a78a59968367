package feedback

import (
	"context"

	"exposureshield/pkg/domain"
)

//go:generate mockgen -package mockfeedback -source=interface.go -destination=mock/mockfeedback.go *
type Service interface {
	// Challenge issues a fresh arithmetic challenge for the feedback form.
	Challenge() domain.ChallengeToken
	// Submit verifies that req was sent by a human, stores it and queues the
	// notification. Failed verification is reported as serrors.ErrBadRequest.
	Submit(ctx context.Context, req SubmitRequest) (*domain.Feedback, error)
}
