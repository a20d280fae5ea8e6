package mcp

import (
	"context"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
)

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	details   map[int64]*driving.DocumentDetails
	err       error

	listApp         string
	listUnprocessed bool
	listLimit       int
}

func (m *mockDocumentService) List(_ context.Context, appID string, onlyUnprocessed bool, limit int) ([]domain.Document, error) {
	m.listApp, m.listUnprocessed, m.listLimit = appID, onlyUnprocessed, limit
	return m.documents, m.err
}

func (m *mockDocumentService) GetDetails(_ context.Context, id int64) (*driving.DocumentDetails, error) {
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.details[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

// mockProcessor is a mock implementation of driving.DocumentProcessor.
type mockProcessor struct {
	result *domain.ProcessResult
	err    error
	opts   domain.ProcessingOptions
}

func (m *mockProcessor) Process(_ context.Context, _ int64, opts domain.ProcessingOptions) (*domain.ProcessResult, error) {
	m.opts = opts
	return m.result, m.err
}

// mockImporter is a mock implementation of driving.ConversationImporter.
type mockImporter struct {
	jobs map[string]*domain.ImportJob
}

func (m *mockImporter) Start(context.Context, domain.ImportRequest) (*domain.ImportJob, error) {
	return nil, domain.ErrInvalidInput
}

func (m *mockImporter) Import(context.Context, domain.ImportRequest) (*domain.ImportResult, error) {
	return nil, domain.ErrInvalidInput
}

func (m *mockImporter) Continue(context.Context, string) (*domain.ImportResult, error) {
	return nil, domain.ErrInvalidInput
}

func (m *mockImporter) StoreConversation(context.Context, string, string, string) (bool, error) {
	return false, domain.ErrInvalidInput
}

func (m *mockImporter) Job(_ context.Context, id string) (*domain.ImportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func sampleDetails() map[int64]*driving.DocumentDetails {
	summary := "Customer could not log in."
	return map[int64]*driving.DocumentDetails{
		7: {
			Document: domain.Document{
				ID: 7, AppID: "app-1", Name: "Login issue", ExternalID: "9001",
				Content: "**User:** I cannot log in", Summary: &summary, Processed: true,
			},
			ChunkCount: 1,
			Embedded:   1,
			Tags:       []domain.Tag{{ID: 1, Name: "Login"}},
			EndUsers:   []domain.EndUser{{ID: 1, Email: "ana@example.com"}},
		},
		8: {
			Document: domain.Document{ID: 8, AppID: "app-2", Name: "Other tenant"},
		},
	}
}
