package feedback

import (
	"exposureshield/pkg/domain"

	"github.com/riverqueue/river"
)

// JobArgs contains the arguments of a feedback notification job submitted to
// River. Only the ID travels through the queue; the worker loads the message
// itself so the queue table never holds message bodies.
type JobArgs struct {
	FeedbackID domain.FeedbackID `json:"feedbackId"`

	// maxAttempts configures the maximum number of times River should retry the job.
	maxAttempts int
}

// Kind returns the River job kind used to register and dispatch the notification worker.
func (args JobArgs) Kind() string { return "FeedbackNotifyJob" }

// InsertOpts returns the River options that control how the job is enqueued.
func (args JobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: args.maxAttempts,
	}
}
