package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService exposes stored documents and their enrichment output.
type DocumentService struct {
	docStore   driven.DocumentStore
	chunkStore driven.ChunkStore
	tagStore   driven.TagStore
	userStore  driven.EndUserStore
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	docStore driven.DocumentStore,
	chunkStore driven.ChunkStore,
	tagStore driven.TagStore,
	userStore driven.EndUserStore,
) *DocumentService {
	return &DocumentService{
		docStore:   docStore,
		chunkStore: chunkStore,
		tagStore:   tagStore,
		userStore:  userStore,
	}
}

// List returns documents of a tenant ordered by ID.
func (s *DocumentService) List(
	ctx context.Context,
	appID string,
	onlyUnprocessed bool,
	limit int,
) ([]domain.Document, error) {
	if appID == "" {
		return nil, fmt.Errorf("app is required: %w", domain.ErrInvalidInput)
	}
	return s.docStore.ListDocuments(ctx, driven.DocumentFilter{
		AppID:           appID,
		OnlyUnprocessed: onlyUnprocessed,
		Limit:           limit,
	})
}

// GetDetails returns a document with its chunk counts, tags and participants.
func (s *DocumentService) GetDetails(ctx context.Context, documentID int64) (*driving.DocumentDetails, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunkStore.GetChunks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	embedded := 0
	for _, c := range chunks {
		if c.Embedding != nil {
			embedded++
		}
	}

	tags, err := s.tagStore.GetDocumentTags(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}

	users, err := s.userStore.ListDocumentEndUsers(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get end users: %w", err)
	}

	return &driving.DocumentDetails{
		Document:   *doc,
		ChunkCount: len(chunks),
		Embedded:   embedded,
		Tags:       tags,
		EndUsers:   users,
	}, nil
}
