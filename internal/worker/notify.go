package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exposureshield/internal/feedback"
	"exposureshield/pkg/logger"
	"exposureshield/pkg/notify"
	"exposureshield/pkg/serrors"
	"exposureshield/pkg/storage"

	"github.com/riverqueue/river"
	"go.uber.org/zap"
)

// NotifyWorker is a River worker that emails every stored feedback message to
// the operator.
//
// Error handling: a message that no longer exists or that the mail API
// refuses as invalid cancels the job. When the mail API rate limits us the job
// is snoozed, which does not consume an attempt. Any other error is returned
// so River retries with its default backoff until the job's MaxAttempts.
type NotifyWorker struct {
	river.WorkerDefaults[feedback.JobArgs]

	storage storage.Storage
	sender  notify.Sender
	options Options
}

// NewNotifyWorker constructs a NotifyWorker.
func NewNotifyWorker(storage storage.Storage, sender notify.Sender, options Options) *NotifyWorker {
	return &NotifyWorker{
		storage: storage,
		sender:  sender,
		options: options,
	}
}

// Timeout bounds a single attempt. Zero keeps River's default.
func (w *NotifyWorker) Timeout(*river.Job[feedback.JobArgs]) time.Duration {
	return w.options.Timeout
}

// Work loads the feedback named by the job and sends it.
func (w *NotifyWorker) Work(ctx context.Context, job *river.Job[feedback.JobArgs]) error {
	ctx = logger.WithFields(ctx, zap.Int64("jobID", job.ID), zap.Stringer("feedbackID", job.Args.FeedbackID))

	fb, err := w.storage.FeedbackByID(ctx, job.Args.FeedbackID)
	if err != nil {
		return fmt.Errorf("could not load feedback: %w", err)
	}
	if fb == nil {
		logger.Warn(ctx, "feedback to notify about does not exist")

		return river.JobCancel(serrors.With(serrors.ErrNotFound, "feedback not found")) //nolint: wrapcheck
	}

	err = w.sender.Send(ctx, notify.Message{
		To:      w.options.To,
		From:    w.options.From,
		ReplyTo: fb.Email,
		Subject: "ExposureShield feedback from " + fb.Email,
		Body:    body(fb.Message, fb.ClientIP, fb.CreatedAt),
	})
	if err != nil {
		logger.Error(ctx, "error in sending feedback notification", zap.Error(err))

		switch {
		case errors.Is(err, serrors.ErrBadRequest):
			return river.JobCancel(err) //nolint: wrapcheck
		case errors.Is(err, serrors.ErrRateLimited):
			return river.JobSnooze(w.options.RateLimitSnooze) //nolint: wrapcheck
		}

		return fmt.Errorf("could not send notification: %w", err)
	}

	logger.Info(ctx, "feedback notification sent")

	return nil
}

func body(message, clientIP string, createdAt time.Time) string {
	return fmt.Sprintf("%s\n\n--\nreceived %s from %s", message, createdAt.UTC().Format(time.RFC3339), clientIP)
}
