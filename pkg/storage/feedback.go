package storage

import (
	"context"

	"exposureshield/pkg/domain"
)

// FeedbackStorage persists feedback messages left by visitors.
type FeedbackStorage interface {
	// StoreFeedback inserts feedback and returns the stored row with its
	// generated ID and CreatedAt.
	StoreFeedback(ctx context.Context, feedback domain.Feedback) (*domain.Feedback, error)
	// FeedbackByID returns the feedback with the given ID, or nil when it
	// does not exist.
	FeedbackByID(ctx context.Context, ID domain.FeedbackID) (*domain.Feedback, error)
}

// ScanLogStorage records that evaluations happened. Entries never contain a
// plaintext address or password.
type ScanLogStorage interface {
	StoreScanLog(ctx context.Context, log domain.ScanLog) error
}
