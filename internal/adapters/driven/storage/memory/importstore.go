package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// Ensure ImportStore implements the interfaces.
var (
	_ driven.ImportCursorStore = (*ImportStore)(nil)
	_ driven.ImportJobStore    = (*ImportStore)(nil)
)

// ImportStore is an in-memory implementation of driven.ImportCursorStore and
// driven.ImportJobStore.
type ImportStore struct {
	mu      sync.RWMutex
	cursors map[string]domain.ImportCursor
	jobs    map[string]domain.ImportJob
}

// NewImportStore creates a new in-memory import store.
func NewImportStore() *ImportStore {
	return &ImportStore{
		cursors: make(map[string]domain.ImportCursor),
		jobs:    make(map[string]domain.ImportJob),
	}
}

func cursorKey(appID, userID string) string {
	return appID + "\x00" + userID
}

// Save stores or updates the cursor.
func (s *ImportStore) Save(_ context.Context, cursor domain.ImportCursor) error {
	if cursor.UpdatedAt.IsZero() {
		cursor.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cursorKey(cursor.AppID, cursor.UserID)] = cursor
	return nil
}

// Get retrieves the cursor for a tenant user.
func (s *ImportStore) Get(_ context.Context, appID, userID string) (*domain.ImportCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cursor, ok := s.cursors[cursorKey(appID, userID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cursor, nil
}

// Delete removes the cursor for a tenant user.
func (s *ImportStore) Delete(_ context.Context, appID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, cursorKey(appID, userID))
	return nil
}

// SaveJob stores or updates a job.
func (s *ImportStore) SaveJob(_ context.Context, job *domain.ImportJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("saving import job: %w", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	stored := *job
	if job.CreatedAfter != nil {
		t := *job.CreatedAfter
		stored.CreatedAfter = &t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = stored
	return nil
}

// GetJob retrieves a job by ID.
func (s *ImportStore) GetJob(_ context.Context, id string) (*domain.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// ListJobs returns the most recent jobs of a tenant, newest first.
func (s *ImportStore) ListJobs(_ context.Context, appID string, limit int) ([]domain.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []domain.ImportJob
	for _, job := range s.jobs {
		if job.AppID == appID {
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}
