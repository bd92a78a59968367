package postgres

import (
	"context"
	"fmt"

	"exposureshield/pkg/domain"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
)

const (
	feedbackTable = "feedback"
)

func (s *Store) StoreFeedback(ctx context.Context, feedback domain.Feedback) (*domain.Feedback, error) {
	var row PgFeedback
	row.FromDomain(feedback)

	var stored PgFeedback
	if _, err := s.Builder.Insert(feedbackTable).
		Rows(row).
		Returning(&PgFeedback{}).
		Executor().ScanStructContext(ctx, &stored); err != nil {
		return nil, fmt.Errorf("could not store feedback into pg: %w", err)
	}

	return stored.ToDomain(), nil
}

// FeedbackByID returns nil when no row matches.
func (s *Store) FeedbackByID(ctx context.Context, id domain.FeedbackID) (*domain.Feedback, error) {
	var row PgFeedback
	found, err := s.Builder.From(feedbackTable).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not get feedback from pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain(), nil
}
