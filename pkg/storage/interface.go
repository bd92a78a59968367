// Package storage holds the persistence contracts of the service: feedback
// messages, scan logs and queued jobs, with optional transactions. The
// postgres and file packages implement them.
//
//go:generate mockgen -package mockstorage -source=interface.go -destination=mock/mockstorage.go *
package storage

import "context"

// AllStorage is everything a caller may do, in or out of a transaction.
type AllStorage interface {
	FeedbackStorage
	ScanLogStorage
	JobStorage
}

// TxStorage is a transaction handle. After Commit or Rollback every further
// Commit or Rollback returns ErrNotInTx.
type TxStorage interface {
	AllStorage

	Commit() error
	Rollback() error
}

// Storage is the root handle opened at startup.
type Storage interface {
	AllStorage

	// Close releases connections or files. The handle is unusable afterwards.
	Close() error
	// Begin opens a transaction. Calling it on a transaction handle returns
	// ErrAlreadyInTx.
	Begin(ctx context.Context) (TxStorage, error)
	// WithTx runs cb in a transaction that is committed when cb returns nil
	// and rolled back otherwise.
	WithTx(ctx context.Context, cb func(storage AllStorage) error) error
}
