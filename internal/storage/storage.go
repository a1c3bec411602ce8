// Package storage defines the persistence interface for similarity runs and their results.
package storage

import (
	"context"

	"github.com/jakobytes/elias-1848/internal/models"
)

// Storage defines run and result persistence operations.
type Storage interface {
	// Run operations
	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, id string, pairs, unscorable int64) error
	FailRun(ctx context.Context, id string, pairs, unscorable int64, reason string) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, offset, limit int) ([]*models.Run, error)

	// Batch operations
	BatchCreatePairs(ctx context.Context, runID string, pairs []*models.PairRecord) error

	// Queries
	GetSimilar(ctx context.Context, runID, poemID string) ([]*models.PairRecord, error)

	// Stats
	CountPairs(ctx context.Context, runID string) (int64, error)
	CountAlignments(ctx context.Context, runID string) (int64, error)

	Close() error
}
