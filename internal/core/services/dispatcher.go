package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
	"github.com/custodia-labs/threadline/internal/logger"
)

// dequeueRetryDelay is the pause after a failed Dequeue before the next attempt.
const dequeueRetryDelay = time.Second

// Dispatcher runs queued pipeline jobs. Every job is a fresh invocation: an
// import continuation picks up from its checkpoint and runs one bounded batch.
type Dispatcher struct {
	queue     driven.JobQueue
	importer  driving.ConversationImporter
	processor driving.DocumentProcessor
	workers   int
	pacer     Pacer
}

// NewDispatcher creates a dispatcher with the given number of workers.
func NewDispatcher(
	queue driven.JobQueue,
	importer driving.ConversationImporter,
	processor driving.DocumentProcessor,
	workers int,
) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		queue:     queue,
		importer:  importer,
		processor: processor,
		workers:   workers,
		pacer:     SleepPacer{},
	}
}

// SetPacer replaces the timer used to back off after queue errors.
func (d *Dispatcher) SetPacer(p Pacer) {
	if p != nil {
		d.pacer = p
	}
}

// Run consumes jobs until ctx is done or the queue is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for w := 0; w < d.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx, w)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	logger.Debug("Dispatcher worker %d started", id)
	for {
		job, err := d.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrQueueClosed) && ctx.Err() == nil {
				logger.Errorw("dequeue failed", "worker", id, "error", err, "retry_in", dequeueRetryDelay)
				if d.pacer.Wait(ctx, dequeueRetryDelay) == nil {
					continue
				}
			}
			logger.Debug("Dispatcher worker %d stopped", id)
			return
		}
		d.Handle(ctx, job)
	}
}

// Handle runs a single job. Failures are logged; the job is not retried.
func (d *Dispatcher) Handle(ctx context.Context, job driven.Job) {
	switch job.Kind {
	case driven.JobContinueImport:
		result, err := d.importer.Continue(ctx, job.ImportJobID)
		switch {
		case errors.Is(err, domain.ErrJobFinished):
			logger.Debug("Import job %s already finished", job.ImportJobID)
		case err != nil:
			logger.Errorw("import continuation failed", "job", job.ImportJobID, "error", err)
		default:
			logger.Infow("import continuation ran", "job", job.ImportJobID, "status", result.Status,
				"processed", result.Processed, "skipped", result.Skipped, "failed", result.Failed)
		}

	case driven.JobProcessDocument:
		_, err := d.processor.Process(ctx, job.DocumentID, job.Options)
		switch {
		case errors.Is(err, domain.ErrNotFoundOrProcessed):
			logger.Debug("Document %d not found or already processed", job.DocumentID)
		case err != nil:
			// The cause was logged by the processor.
			logger.Warn("Document %d: %v", job.DocumentID, err)
		}

	default:
		logger.Warnw("unknown job kind", "kind", job.Kind)
	}
}
