package driving

import (
	"context"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// DocumentService exposes stored documents for inspection.
type DocumentService interface {
	// List returns documents of a tenant, optionally only unprocessed ones.
	List(ctx context.Context, appID string, onlyUnprocessed bool, limit int) ([]domain.Document, error)

	// GetDetails returns a document with its enrichment output.
	GetDetails(ctx context.Context, documentID int64) (*DocumentDetails, error)
}

// DocumentDetails is a document together with everything the pipeline attached to it.
type DocumentDetails struct {
	Document   domain.Document
	ChunkCount int
	Embedded   int
	Tags       []domain.Tag
	EndUsers   []domain.EndUser
}
