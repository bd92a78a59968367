// Package file implements storage.Storage over append-only NDJSON files. It
// serves single-instance deployments without a database: feedback and scan
// logs are appended to one file each and jobs are not supported.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"exposureshield/pkg/domain"
	"exposureshield/pkg/logger"
	"exposureshield/pkg/storage"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"go.uber.org/zap"
)

const (
	feedbackFile = "feedback.ndjson"
	scanLogsFile = "scan_logs.ndjson"
)

type pendingLine struct {
	file string
	line []byte
}

// Store appends records to files under a directory. A Store returned by Begin
// buffers its writes until Commit.
type Store struct {
	dir string
	// mu serializes appends across the root store and its transactions.
	mu  *sync.Mutex
	now func() time.Time

	inTx    bool
	done    bool
	pending []pendingLine
}

var _ storage.Storage = (*Store)(nil)

// New creates dir when needed and returns a Store writing into it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("could not create storage dir: %w", err)
	}

	return &Store{
		dir: dir,
		mu:  &sync.Mutex{},
		now: time.Now,
	}, nil
}

// Close implements storage.Storage. Files are opened per write, so there is
// nothing to release.
func (s *Store) Close() error { return nil }

// Begin implements storage.Storage.
func (s *Store) Begin(_ context.Context) (storage.TxStorage, error) {
	if s.inTx {
		return nil, storage.ErrAlreadyInTx
	}

	return &Store{
		dir:  s.dir,
		mu:   s.mu,
		now:  s.now,
		inTx: true,
	}, nil
}

// Commit writes every buffered line.
func (s *Store) Commit() error {
	if !s.inTx || s.done {
		return storage.ErrNotInTx
	}
	s.done = true

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pending {
		if err := s.appendLocked(p.file, p.line); err != nil {
			return err
		}
	}
	s.pending = nil

	return nil
}

// Rollback discards every buffered line.
func (s *Store) Rollback() error {
	if !s.inTx || s.done {
		return storage.ErrNotInTx
	}
	s.done = true
	s.pending = nil

	return nil
}

// WithTx implements storage.Storage.
func (s *Store) WithTx(ctx context.Context, cb func(storage storage.AllStorage) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	if err := cb(tx); err != nil {
		_ = tx.Rollback()

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit tx: %w", err)
	}

	return nil
}

// StoreFeedback assigns an ID and CreatedAt and appends feedback.
func (s *Store) StoreFeedback(_ context.Context, feedback domain.Feedback) (*domain.Feedback, error) {
	feedback.ID = domain.FeedbackID(uuid.New())
	feedback.CreatedAt = s.now().UTC()

	if err := s.write(feedbackFile, feedback); err != nil {
		return nil, err
	}

	return &feedback, nil
}

// FeedbackByID scans the feedback file, including lines buffered by the
// current transaction.
func (s *Store) FeedbackByID(_ context.Context, id domain.FeedbackID) (*domain.Feedback, error) {
	for _, p := range s.pending {
		if p.file != feedbackFile {
			continue
		}
		if f, ok := matchFeedback(p.line, id); ok {
			return f, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fh, err := os.Open(filepath.Join(s.dir, feedbackFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not open feedback file: %w", err)
	}
	defer func() {
		_ = fh.Close()
	}()

	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if f, ok := matchFeedback(sc.Bytes(), id); ok {
			return f, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("could not read feedback file: %w", err)
	}

	return nil, nil
}

func matchFeedback(line []byte, id domain.FeedbackID) (*domain.Feedback, bool) {
	var f domain.Feedback
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, false
	}

	return &f, f.ID == id
}

// StoreScanLog appends log with CreatedAt set. File rows have no sequence, so
// ID stays zero.
func (s *Store) StoreScanLog(_ context.Context, log domain.ScanLog) error {
	log.CreatedAt = s.now().UTC()

	return s.write(scanLogsFile, log)
}

// AddJob implements storage.JobStorage. The file backend has no queue: the
// job is dropped and false is returned.
func (s *Store) AddJob(ctx context.Context, args river.JobArgs, _ *river.InsertOpts) (bool, error) {
	logger.Warn(ctx, "file storage cannot queue jobs, dropping job", zap.String("kind", args.Kind()))

	return false, nil
}

func (s *Store) write(file string, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not marshal record: %w", err)
	}

	if s.inTx {
		if s.done {
			return storage.ErrNotInTx
		}
		s.pending = append(s.pending, pendingLine{file: file, line: line})

		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendLocked(file, line)
}

func (s *Store) appendLocked(file string, line []byte) error {
	fh, err := os.OpenFile(filepath.Join(s.dir, file), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", file, err)
	}

	if _, err := fh.Write(append(line, '\n')); err != nil {
		_ = fh.Close()

		return fmt.Errorf("could not append to %s: %w", file, err)
	}

	if err := fh.Close(); err != nil {
		return fmt.Errorf("could not close %s: %w", file, err)
	}

	return nil
}
