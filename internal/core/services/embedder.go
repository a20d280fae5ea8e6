package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
	"github.com/custodia-labs/threadline/internal/logger"
)

// Ensure Embedder implements the interface.
var _ driving.EmbeddingBackfiller = (*Embedder)(nil)

// Embedder fills in embeddings for chunks stored without one.
type Embedder struct {
	chunks     driven.ChunkStore
	embeddings driven.EmbeddingService
	batchSize  int
}

// NewEmbedder creates an embedding backfiller.
// embeddings is optional; without it Backfill returns domain.ErrEmbeddingUnavailable.
func NewEmbedder(chunks driven.ChunkStore, embeddings driven.EmbeddingService, policy domain.PipelinePolicy) *Embedder {
	return &Embedder{
		chunks:     chunks,
		embeddings: embeddings,
		batchSize:  policy.WithDefaults().EmbedBatchSize,
	}
}

// Backfill embeds up to limit chunks in batches of EmbedBatchSize. Zero means
// every chunk without an embedding. A failed batch ends the pass, since its
// chunks would otherwise be listed again.
func (e *Embedder) Backfill(ctx context.Context, limit int) (*domain.BackfillResult, error) {
	if e.embeddings == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	result := &domain.BackfillResult{}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		want := e.batchSize
		if limit > 0 {
			remaining := limit - result.Embedded - result.Failed
			if remaining <= 0 {
				break
			}
			want = min(want, remaining)
		}

		chunks, err := e.chunks.ListChunksWithoutEmbedding(ctx, want)
		if err != nil {
			return result, fmt.Errorf("list chunks without embedding: %w", err)
		}
		if len(chunks) == 0 {
			break
		}

		if err := e.embedBatch(ctx, chunks, result); err != nil {
			logger.Errorw("embedding batch failed", "chunks", len(chunks), "error", err)
			return result, err
		}
		logger.Debug("Embedded %d chunks (%d total)", len(chunks), result.Embedded)
	}

	logger.Infow("embedding backfill complete",
		"model", e.embeddings.ModelName(), "embedded", result.Embedded, "failed", result.Failed)
	return result, nil
}

func (e *Embedder) embedBatch(ctx context.Context, chunks []domain.Chunk, result *domain.BackfillResult) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := e.embeddings.EmbedBatch(ctx, texts)
	if err != nil {
		result.Failed += len(chunks)
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(chunks) {
		result.Failed += len(chunks)
		return fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	var errs []error
	for i, c := range chunks {
		if err := e.chunks.SetEmbedding(ctx, c.ID, vectors[i]); err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("chunk %d: %w", c.ID, err))
			continue
		}
		result.Embedded++
	}
	return errors.Join(errs...)
}
