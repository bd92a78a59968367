package storage

import "errors"

// Transaction state errors shared by every backend.
var (
	// ErrAlreadyInTx is returned by Begin on a handle that is already a
	// transaction. Transactions do not nest.
	ErrAlreadyInTx = errors.New("storage: transaction already open")
	// ErrNotInTx is returned by Commit and Rollback on a handle that is not an
	// open transaction, including one that was already committed or rolled back.
	ErrNotInTx = errors.New("storage: no open transaction")
)
