// Package memory provides an in-process implementation of driven.JobQueue.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// Ensure Queue implements the interface.
var _ driven.JobQueue = (*Queue)(nil)

// Queue is an unbounded FIFO job queue. It is safe for concurrent use by
// multiple producers and consumers.
type Queue struct {
	mu     sync.Mutex
	jobs   []driven.Job
	closed bool

	// notify has capacity one; a consumer that takes the signal passes it on
	// while jobs remain.
	notify chan struct{}
	done   chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue adds a job.
func (q *Queue) Enqueue(_ context.Context, job driven.Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.ErrQueueClosed
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Dequeue blocks until a job is available, the queue is closed and drained,
// or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (driven.Job, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs[0] = driven.Job{}
			q.jobs = q.jobs[1:]
			remaining := len(q.jobs)
			q.mu.Unlock()
			if remaining > 0 {
				q.signal()
			}
			return job, nil
		}
		if q.closed {
			q.mu.Unlock()
			return driven.Job{}, domain.ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return driven.Job{}, ctx.Err()
		case <-q.notify:
		case <-q.done:
		}
	}
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops accepting jobs. Queued jobs can still be dequeued.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
