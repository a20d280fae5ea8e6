package domain

import (
	"fmt"
	"strconv"
	"time"
)

// JobStatus is the lifecycle state of an import job.
type JobStatus string

// Import job states.
const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"

	// JobPaused means the batch ceiling was reached and a continuation is due.
	JobPaused JobStatus = "paused"

	JobDone   JobStatus = "done"
	JobFailed JobStatus = "failed"
)

// IsTerminal returns true if the job will not run again.
func (s JobStatus) IsTerminal() bool {
	return s == JobDone || s == JobFailed
}

// ImportJob is a resumable import run. Each invocation processes a bounded
// number of pages, checkpoints Cursor and hands continuation to a fresh invocation.
type ImportJob struct {
	ID     string
	AppID  string
	UserID string

	// Cursor is the checkpointed provider cursor for the next page.
	Cursor string

	// CreatedAfter filters conversations server-side. Nil means no filter.
	CreatedAfter *time.Time

	// Limit stops the job once this many conversations have been examined.
	// It is checked after each page. Zero is unlimited.
	Limit int

	// Progress counters across all invocations.
	Processed int
	Skipped   int
	Failed    int

	Status JobStatus

	// Error is the run-level failure, if any.
	Error string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Examined is the number of conversations the job has looked at so far.
func (j *ImportJob) Examined() int {
	return j.Processed + j.Skipped + j.Failed
}

// LimitReached reports whether the job has examined as many conversations as requested.
func (j *ImportJob) LimitReached() bool {
	return j.Limit > 0 && j.Examined() >= j.Limit
}

// ImportRequest starts a new import for a tenant.
type ImportRequest struct {
	AppID  string
	UserID string

	// Limit bounds the number of conversations examined (test runs). Zero is unlimited.
	Limit int

	// CreatedAfter restricts the import to newer conversations.
	CreatedAfter *time.Time

	// Resume starts from the tenant's saved ImportCursor instead of the beginning.
	Resume bool
}

// ImportResult reports the outcome of one importer invocation.
type ImportResult struct {
	JobID  string
	Status JobStatus

	// Counters for this invocation only.
	Processed int
	Skipped   int
	Failed    int
	Pages     int

	// NextCursor is the checkpoint a continuation starts from. Empty when done.
	NextCursor string
}

// Done reports whether the job finished in this invocation.
func (r *ImportResult) Done() bool {
	return r.Status == JobDone
}

// ParseTime reads a CreatedAfter bound given as RFC 3339, a plain date
// (midnight UTC) or unix seconds.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339, YYYY-MM-DD or unix seconds: %w", s, ErrInvalidInput)
}
