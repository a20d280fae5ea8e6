package driven

import (
	"context"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// JobKind identifies what a queued job asks the dispatcher to do.
type JobKind string

// Job kinds.
const (
	// JobContinueImport resumes a paused import job.
	JobContinueImport JobKind = "continue_import"

	// JobProcessDocument runs the document processor on one document.
	JobProcessDocument JobKind = "process_document"
)

// Job is a unit of deferred pipeline work.
type Job struct {
	Kind JobKind `json:"kind"`

	// ImportJobID is set for JobContinueImport.
	ImportJobID string `json:"import_job_id,omitempty"`

	// DocumentID is set for JobProcessDocument.
	DocumentID int64 `json:"document_id,omitempty"`

	// Options carries force flags for JobProcessDocument.
	Options domain.ProcessingOptions `json:"options"`
}

// JobQueue hands deferred work to a fresh invocation.
type JobQueue interface {
	// Enqueue adds a job.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue blocks until a job is available or ctx is done.
	// Returns domain.ErrQueueClosed once the queue is closed and drained.
	Dequeue(ctx context.Context) (Job, error)

	// Close stops accepting jobs.
	Close() error
}
