package services

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/threadline/internal/logger"
)

// Pacer waits between batches. Tests replace it to run without real delays.
type Pacer interface {
	// Wait blocks for d or until ctx is done. A non-positive d returns at once.
	Wait(ctx context.Context, d time.Duration) error
}

// SleepPacer waits with a timer.
type SleepPacer struct{}

// Wait implements Pacer.
func (SleepPacer) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// runInBatches calls fn for indexes 0..total-1 in groups of size, running each
// group concurrently on pool and waiting delay between groups. It stops early
// with ctx's error when ctx is done between groups.
func runInBatches(
	ctx context.Context,
	pool *ants.Pool,
	pacer Pacer,
	total, size int,
	delay time.Duration,
	fn func(idx int),
) error {
	if size <= 0 {
		size = 1
	}
	for start := 0; start < total; start += size {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+size, total)
		var wg sync.WaitGroup
		for idx := start; idx < end; idx++ {
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				fn(idx)
			})
			if submitErr != nil {
				// Pool released or overloaded: run inline so no item is lost.
				wg.Done()
				fn(idx)
			}
		}
		wg.Wait()

		if end < total {
			if err := pacer.Wait(ctx, delay); err != nil {
				return err
			}
		}
	}
	return nil
}

// newPool creates a blocking pool with size workers.
func newPool(size int) (*ants.Pool, error) {
	if size <= 0 {
		size = 1
	}
	return ants.NewPool(size,
		ants.WithExpiryDuration(time.Minute),
		ants.WithPanicHandler(func(p any) {
			logger.Error("pipeline worker panic: %v", p)
		}),
	)
}
