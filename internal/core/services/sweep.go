package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
	"github.com/custodia-labs/threadline/internal/logger"
)

// Ensure Sweeper implements the interface.
var _ driving.Sweeper = (*Sweeper)(nil)

// Sweeper runs the processor over a tenant's documents in fixed-size batches.
type Sweeper struct {
	docs      driven.DocumentStore
	processor driving.DocumentProcessor
	policy    domain.PipelinePolicy
	pacer     Pacer
}

// NewSweeper creates a sweeper. A nil pacer waits with a timer.
func NewSweeper(
	docs driven.DocumentStore,
	processor driving.DocumentProcessor,
	policy domain.PipelinePolicy,
	pacer Pacer,
) *Sweeper {
	if pacer == nil {
		pacer = SleepPacer{}
	}
	return &Sweeper{
		docs:      docs,
		processor: processor,
		policy:    policy.WithDefaults(),
		pacer:     pacer,
	}
}

// Sweep processes unprocessed documents of a tenant, or every document when
// a force flag is set. Each batch runs concurrently and batches are separated
// by SweepDelay. Documents are paged by ID, so a failing document is visited
// once per sweep.
func (s *Sweeper) Sweep(ctx context.Context, appID string, opts domain.ProcessingOptions) (*domain.SweepResult, error) {
	if appID == "" {
		return nil, fmt.Errorf("app is required: %w", domain.ErrInvalidInput)
	}

	pool, err := newPool(s.policy.SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	result := &domain.SweepResult{}
	var mu sync.Mutex
	filter := driven.DocumentFilter{
		AppID:           appID,
		OnlyUnprocessed: !opts.Any(),
		Limit:           s.policy.SweepBatchSize,
	}

	logger.Section("Sweep " + appID)

	for batch := 0; ; batch++ {
		if batch > 0 {
			if err := s.pacer.Wait(ctx, s.policy.SweepDelay); err != nil {
				return result, err
			}
		}

		docs, err := s.docs.ListDocuments(ctx, filter)
		if err != nil {
			return result, fmt.Errorf("list documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}
		result.Eligible += len(docs)
		filter.AfterID = docs[len(docs)-1].ID

		err = runInBatches(ctx, pool, s.pacer, len(docs), len(docs), 0, func(idx int) {
			_, err := s.processor.Process(ctx, docs[idx].ID, opts)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Processed++
			case errors.Is(err, domain.ErrNotFoundOrProcessed):
				// Processed by someone else since it was listed.
			default:
				result.Failed++
			}
		})
		if err != nil {
			return result, err
		}

		logger.Info("Sweep batch %d: %d documents (%d processed, %d failed so far)",
			batch+1, len(docs), result.Processed, result.Failed)

		if len(docs) < s.policy.SweepBatchSize {
			break
		}
	}

	logger.Infow("sweep complete", "app", appID,
		"eligible", result.Eligible, "processed", result.Processed, "failed", result.Failed)
	return result, nil
}
