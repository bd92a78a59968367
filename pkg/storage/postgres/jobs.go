package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// AddJob implements storage.JobStorage. On a transaction handle the job row is
// written with InsertTx, so a notification is only queued when the feedback it
// refers to is committed. It reports false when River skipped the job as a
// duplicate of a unique job.
func (s *Store) AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error) {
	if s.jobs == nil {
		return false, errors.New("job queue is not configured")
	}

	var (
		res *rivertype.JobInsertResult
		err error
	)
	if tx, ok := s.DB.(*sql.Tx); ok {
		res, err = s.jobs.InsertTx(ctx, tx, args, opts)
	} else {
		res, err = s.jobs.Insert(ctx, args, opts)
	}
	if err != nil {
		return false, fmt.Errorf("could not insert %s job: %w", args.Kind(), err)
	}

	return !res.UniqueSkippedAsDuplicate, nil
}
