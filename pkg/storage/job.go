package storage

import (
	"context"

	"github.com/riverqueue/river"
)

// JobStorage queues background work. On a transaction handle the job only
// becomes visible to workers once the transaction commits.
type JobStorage interface {
	// AddJob reports whether a job was queued: false means River skipped a
	// duplicate unique job, or the backend has no queue at all.
	AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error)
}
