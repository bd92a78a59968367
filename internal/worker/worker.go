// Package worker runs the River job workers of the service.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"exposureshield/internal/config"
	"exposureshield/pkg/logger"
	"exposureshield/pkg/notify"
	"exposureshield/pkg/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap/exp/zapslog"
)

// Options configure the job workers.
type Options struct {
	// MaxWorkers is the concurrency of the default queue.
	MaxWorkers int
	// From and To address every notification.
	From string
	To   string
	// Timeout bounds a single notification attempt.
	Timeout time.Duration
	// RateLimitSnooze is how long a job waits after the mail API rate limited us.
	RateLimitSnooze time.Duration
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		MaxWorkers:      cfg.Notify.MaxWorkers,
		From:            cfg.Notify.From,
		To:              cfg.Notify.To,
		Timeout:         cfg.Notify.Timeout,
		RateLimitSnooze: time.Minute,
	}
}

// Start registers the workers and starts a River client processing the
// default queue. The caller stops it with Client.Stop.
func Start(
	ctx context.Context,
	dbPool *pgxpool.Pool,
	storage storage.Storage,
	sender notify.Sender,
	options Options,
) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewNotifyWorker(storage, sender, options))

	maxWorkers := options.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	riverClient, err := river.NewClient(riverpgxv5.New(dbPool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
		Logger:  slog.New(zapslog.NewHandler(logger.Get(ctx).Core())),
	})
	if err != nil {
		return nil, fmt.Errorf("could not create river queue client: %w", err)
	}

	if err := riverClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("could not start river queue client: %w", err)
	}

	return riverClient, nil
}
