package driven

import (
	"context"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// ImportCursorStore persists the per-tenant resume point of imports.
type ImportCursorStore interface {
	// Save stores or updates the cursor.
	Save(ctx context.Context, cursor domain.ImportCursor) error

	// Get retrieves the cursor for a tenant user.
	// Returns domain.ErrNotFound if none is saved.
	Get(ctx context.Context, appID, userID string) (*domain.ImportCursor, error)

	// Delete removes the cursor for a tenant user.
	Delete(ctx context.Context, appID, userID string) error
}

// ImportJobStore persists import jobs and their checkpoints.
type ImportJobStore interface {
	// SaveJob stores or updates a job.
	SaveJob(ctx context.Context, job *domain.ImportJob) error

	// GetJob retrieves a job by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetJob(ctx context.Context, id string) (*domain.ImportJob, error)

	// ListJobs returns the most recent jobs of a tenant, newest first.
	ListJobs(ctx context.Context, appID string, limit int) ([]domain.ImportJob, error)
}
