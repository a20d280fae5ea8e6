package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// ==================== Import Cursor Store ====================

// importCursorStore implements driven.ImportCursorStore.
type importCursorStore struct {
	store *Store
}

var _ driven.ImportCursorStore = (*importCursorStore)(nil)

// Save stores or updates the cursor.
func (s *importCursorStore) Save(ctx context.Context, cursor domain.ImportCursor) error {
	if cursor.UpdatedAt.IsZero() {
		cursor.UpdatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO import_cursors (app_id, user_id, cursor, processed, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(app_id, user_id) DO UPDATE SET
			cursor = excluded.cursor,
			processed = excluded.processed,
			updated_at = excluded.updated_at
	`, cursor.AppID, cursor.UserID, cursor.Cursor, cursor.Processed, cursor.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving import cursor: %w", err)
	}
	return nil
}

// Get retrieves the cursor for a tenant user.
func (s *importCursorStore) Get(ctx context.Context, appID, userID string) (*domain.ImportCursor, error) {
	var cursor domain.ImportCursor
	err := s.store.db.QueryRowContext(ctx, `
		SELECT app_id, user_id, cursor, processed, updated_at
		FROM import_cursors WHERE app_id = ? AND user_id = ?
	`, appID, userID).Scan(&cursor.AppID, &cursor.UserID, &cursor.Cursor, &cursor.Processed, &cursor.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting import cursor: %w", err)
	}
	return &cursor, nil
}

// Delete removes the cursor for a tenant user.
func (s *importCursorStore) Delete(ctx context.Context, appID, userID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM import_cursors WHERE app_id = ? AND user_id = ?", appID, userID)
	if err != nil {
		return fmt.Errorf("deleting import cursor: %w", err)
	}
	return nil
}

// ==================== Import Job Store ====================

// importJobStore implements driven.ImportJobStore.
type importJobStore struct {
	store *Store
}

var _ driven.ImportJobStore = (*importJobStore)(nil)

const importJobColumns = `id, app_id, user_id, cursor, created_after, limit_count,
	processed, skipped, failed, status, error, created_at, updated_at`

// SaveJob stores or updates a job.
func (s *importJobStore) SaveJob(ctx context.Context, job *domain.ImportJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("saving import job: %w", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO import_jobs (`+importJobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cursor = excluded.cursor,
			created_after = excluded.created_after,
			limit_count = excluded.limit_count,
			processed = excluded.processed,
			skipped = excluded.skipped,
			failed = excluded.failed,
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, job.ID, job.AppID, job.UserID, job.Cursor, nullTime(job.CreatedAfter), job.Limit,
		job.Processed, job.Skipped, job.Failed, string(job.Status), job.Error,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving import job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *importJobStore) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+importJobColumns+` FROM import_jobs WHERE id = ?`, id)

	job, err := scanImportJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning import job: %w", err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs of a tenant, newest first.
func (s *importJobStore) ListJobs(ctx context.Context, appID string, limit int) ([]domain.ImportJob, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+importJobColumns+` FROM import_jobs
		WHERE app_id = ? ORDER BY created_at DESC, id LIMIT ?
	`, appID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.ImportJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanImportJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning import job: %w", err)
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating import jobs: %w", err)
	}
	return jobs, nil
}

func scanImportJob(r rowScanner) (*domain.ImportJob, error) {
	var job domain.ImportJob
	var createdAfter sql.NullTime
	var status string

	if err := r.Scan(&job.ID, &job.AppID, &job.UserID, &job.Cursor, &createdAfter, &job.Limit,
		&job.Processed, &job.Skipped, &job.Failed, &status, &job.Error,
		&job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(status)
	if createdAfter.Valid {
		t := createdAfter.Time.UTC()
		job.CreatedAfter = &t
	}
	return &job, nil
}
