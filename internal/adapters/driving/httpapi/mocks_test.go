package httpapi

import (
	"context"
	"sync"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
)

type mockImporter struct {
	mu        sync.Mutex
	jobs      map[string]*domain.ImportJob
	startErr  error
	started   []domain.ImportRequest
	continued []string
	stored    []string
	storedBy  []string
}

func newMockImporter() *mockImporter {
	return &mockImporter{jobs: make(map[string]*domain.ImportJob)}
}

func (m *mockImporter) Start(_ context.Context, req domain.ImportRequest) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, req)
	if m.startErr != nil {
		return nil, m.startErr
	}
	job := &domain.ImportJob{ID: "job-1", AppID: req.AppID, UserID: req.UserID, Status: domain.JobPending}
	m.jobs[job.ID] = job
	return job, nil
}

func (m *mockImporter) Import(ctx context.Context, req domain.ImportRequest) (*domain.ImportResult, error) {
	job, err := m.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.Continue(ctx, job.ID)
}

func (m *mockImporter) Continue(_ context.Context, jobID string) (*domain.ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.continued = append(m.continued, jobID)
	return &domain.ImportResult{JobID: jobID, Status: domain.JobDone}, nil
}

func (m *mockImporter) StoreConversation(_ context.Context, _, userID, conversationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, conversationID)
	m.storedBy = append(m.storedBy, userID)
	return true, nil
}

func (m *mockImporter) Job(_ context.Context, jobID string) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

type mockProcessor struct {
	mu    sync.Mutex
	err   error
	calls []domain.ProcessingOptions
}

func (m *mockProcessor) Process(_ context.Context, id int64, opts domain.ProcessingOptions) (*domain.ProcessResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, opts)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ProcessResult{
		DocumentID: id,
		Split:      domain.OutcomeRan,
		Summarize:  domain.OutcomeRan,
		Tag:        domain.OutcomeRan,
		Processed:  true,
	}, nil
}

type mockSweeper struct {
	mu   sync.Mutex
	apps []string
	opts []domain.ProcessingOptions
}

func (m *mockSweeper) Sweep(_ context.Context, appID string, opts domain.ProcessingOptions) (*domain.SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps = append(m.apps, appID)
	m.opts = append(m.opts, opts)
	return &domain.SweepResult{}, nil
}

type mockBackfiller struct {
	mu     sync.Mutex
	limits []int
	err    error
}

func (m *mockBackfiller) Backfill(_ context.Context, limit int) (*domain.BackfillResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	return &domain.BackfillResult{}, m.err
}

type mockDocuments struct {
	docs map[int64]domain.Document
}

func (m *mockDocuments) List(_ context.Context, appID string, onlyUnprocessed bool, limit int) ([]domain.Document, error) {
	if appID == "" {
		return nil, domain.ErrInvalidInput
	}
	var out []domain.Document
	for id := int64(1); id <= int64(len(m.docs)); id++ {
		d, ok := m.docs[id]
		if !ok || d.AppID != appID || (onlyUnprocessed && d.Processed) {
			continue
		}
		out = append(out, d)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockDocuments) GetDetails(_ context.Context, id int64) (*driving.DocumentDetails, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &driving.DocumentDetails{
		Document:   d,
		ChunkCount: 2,
		Embedded:   1,
		Tags:       []domain.Tag{{ID: 1, Name: "Billing", Slug: "billing"}},
		EndUsers:   []domain.EndUser{{ID: 1, Email: "ana@example.com"}},
	}, nil
}
