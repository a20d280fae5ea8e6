package driving

import (
	"context"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// DocumentProcessor runs the enrichment state machine on one document.
type DocumentProcessor interface {
	// Process splits, summarises and tags a document, then marks it processed.
	// It returns domain.ErrNotFoundOrProcessed when there is nothing to do and a
	// *domain.StageFailure when a stage fails.
	Process(ctx context.Context, documentID int64, opts domain.ProcessingOptions) (*domain.ProcessResult, error)
}

// Sweeper re-runs enrichment over every eligible document of a tenant.
type Sweeper interface {
	// Sweep processes unprocessed documents, or all documents when any force
	// flag is set, in fixed-size batches.
	Sweep(ctx context.Context, appID string, opts domain.ProcessingOptions) (*domain.SweepResult, error)
}

// EmbeddingBackfiller fills in missing chunk embeddings.
type EmbeddingBackfiller interface {
	// Backfill embeds up to limit chunks without an embedding. Zero means all.
	Backfill(ctx context.Context, limit int) (*domain.BackfillResult, error)
}
