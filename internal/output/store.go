package output

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jakobytes/elias-1848/internal/models"
	"github.com/jakobytes/elias-1848/internal/storage"
)

// DefaultBatchSize is the number of pairs inserted per transaction.
const DefaultBatchSize = 1000

// StorageSink records a run and its pairs in a Storage. Each unordered pair
// is stored once; storage queries return it from either side.
type StorageSink struct {
	store      storage.Storage
	run        *models.Run
	batch      []*models.PairRecord
	batchSize  int
	written    int64
	unscorable int64
	failure    error
}

// NewStorageSink creates the run record. A run without an ID gets a new UUID.
func NewStorageSink(ctx context.Context, store storage.Storage, run *models.Run, batchSize int) (*StorageSink, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if err := store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return &StorageSink{store: store, run: run, batchSize: batchSize}, nil
}

// RunID returns the ID of the recorded run.
func (s *StorageSink) RunID() string {
	return s.run.ID
}

// SetUnscorable records the number of unscorable pairs, stored on Close.
func (s *StorageSink) SetUnscorable(n int) {
	s.unscorable = int64(n)
}

// Write buffers p and flushes full batches.
func (s *StorageSink) Write(ctx context.Context, p *models.PairRecord) error {
	s.batch = append(s.batch, p)
	if len(s.batch) >= s.batchSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *StorageSink) flush(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}
	if err := s.store.BatchCreatePairs(ctx, s.run.ID, s.batch); err != nil {
		return fmt.Errorf("failed to store pairs: %w", err)
	}
	s.written += int64(len(s.batch))
	s.batch = s.batch[:0]
	return nil
}

// Abort marks the run as failed with err. Close then records the failure
// instead of finishing the run.
func (s *StorageSink) Abort(err error) {
	if err == nil {
		err = errors.New("run aborted")
	}
	s.failure = err
}

// Close flushes the last batch, records the run as finished or failed, and
// closes the storage.
func (s *StorageSink) Close() error {
	ctx := context.Background()
	var errs []error
	if err := s.flush(ctx); err != nil {
		errs = append(errs, err)
		if s.failure == nil {
			s.failure = err
		}
	}
	if s.failure != nil {
		if err := s.store.FailRun(ctx, s.run.ID, s.written, s.unscorable, s.failure.Error()); err != nil {
			errs = append(errs, err)
		}
	} else if err := s.store.FinishRun(ctx, s.run.ID, s.written, s.unscorable); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
