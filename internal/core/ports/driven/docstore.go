package driven

import (
	"context"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// DocumentFilter selects documents for listing and sweeps.
type DocumentFilter struct {
	// AppID restricts results to one tenant. Empty means all tenants.
	AppID string

	// OnlyUnprocessed restricts results to documents with processed = false.
	OnlyUnprocessed bool

	// AfterID returns documents with an ID greater than this value (keyset paging).
	AfterID int64

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// DocumentStore persists documents.
// The store enforces (app_id, source, external_id) uniqueness as a hard constraint.
type DocumentStore interface {
	// CreateDocument inserts a new document and sets its ID.
	// A uniqueness violation returns *domain.StorageConflictError.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// FindByExternalID returns the document imported for an external identifier.
	// Returns domain.ErrNotFound if none exists.
	FindByExternalID(ctx context.Context, appID string, source domain.Source, externalID string) (*domain.Document, error)

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)

	// GetUnprocessedDocument retrieves a document by ID only if processed = false.
	// Returns domain.ErrNotFound otherwise.
	GetUnprocessedDocument(ctx context.Context, id int64) (*domain.Document, error)

	// ListDocuments returns documents matching the filter ordered by ID.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]domain.Document, error)

	// CountDocuments returns the number of documents matching the filter.
	CountDocuments(ctx context.Context, filter DocumentFilter) (int, error)

	// UpdateSummary stores the summary text for a document.
	UpdateSummary(ctx context.Context, id int64, summary string) error

	// SetProcessed sets the processed flag for a document.
	SetProcessed(ctx context.Context, id int64, processed bool) error
}

// ChunkStore persists document chunks.
type ChunkStore interface {
	// CountChunks returns the number of chunks stored for a document.
	CountChunks(ctx context.Context, documentID int64) (int, error)

	// ReplaceChunks atomically deletes any existing chunks of the document
	// and inserts the given ones.
	ReplaceChunks(ctx context.Context, documentID int64, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document ordered by position.
	GetChunks(ctx context.Context, documentID int64) ([]domain.Chunk, error)

	// ListChunksWithoutEmbedding returns up to limit chunks whose embedding is null.
	ListChunksWithoutEmbedding(ctx context.Context, limit int) ([]domain.Chunk, error)

	// SetEmbedding stores the embedding vector of a chunk.
	SetEmbedding(ctx context.Context, chunkID int64, embedding []float32) error
}
