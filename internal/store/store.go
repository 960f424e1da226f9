// Package store persists batch runs and their per-item results.
package store

import (
	"context"

	"github.com/prodocs/harvest-cli/internal/model"
)

// BatchFilter narrows ListBatches results.
type BatchFilter struct {
	Status model.BatchStatus
	Limit  int
}

// Store persists batches and item results.
type Store interface {
	// Migrate creates or upgrades the schema.
	Migrate(ctx context.Context) error

	// CreateBatch records a new running batch.
	CreateBatch(ctx context.Context, inputPath string, total int) (*model.Batch, error)

	// RecordItem persists one item's terminal result under its batch,
	// keyed by input position.
	RecordItem(ctx context.Context, batchID string, index int, result *model.PipelineResult) error

	// CompleteBatch marks the batch complete and stores its summary.
	CompleteBatch(ctx context.Context, batchID string, summary model.BatchSummary) error

	// GetBatch returns one batch by id.
	GetBatch(ctx context.Context, batchID string) (*model.Batch, error)

	// ListBatches returns batches newest first.
	ListBatches(ctx context.Context, filter BatchFilter) ([]model.Batch, error)

	// ListItems returns a batch's item results in input order.
	ListItems(ctx context.Context, batchID string) ([]*model.PipelineResult, error)

	Close() error
}
