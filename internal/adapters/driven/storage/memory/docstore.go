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

// Ensure DocumentStore implements the interfaces.
var (
	_ driven.DocumentStore = (*DocumentStore)(nil)
	_ driven.ChunkStore    = (*DocumentStore)(nil)
)

// DocumentStore is an in-memory implementation of driven.DocumentStore and
// driven.ChunkStore. It enforces the same uniqueness rules as the SQLite store.
type DocumentStore struct {
	mu          sync.RWMutex
	documents   map[int64]domain.Document
	byExternal  map[string]int64
	chunks      map[int64][]domain.Chunk
	nextDocID   int64
	nextChunkID int64
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents:  make(map[int64]domain.Document),
		byExternal: make(map[string]int64),
		chunks:     make(map[int64][]domain.Chunk),
	}
}

func externalKey(appID string, source domain.Source, externalID string) string {
	return appID + "\x00" + string(source) + "\x00" + externalID
}

// CreateDocument inserts a new document and sets its ID.
func (s *DocumentStore) CreateDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.AppID == "" || doc.ExternalID == "" || !doc.Source.IsValid() {
		return fmt.Errorf("creating document: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := externalKey(doc.AppID, doc.Source, doc.ExternalID)
	if _, ok := s.byExternal[key]; ok {
		return &domain.StorageConflictError{
			Entity: "document",
			Key:    fmt.Sprintf("%s/%s/%s", doc.AppID, doc.Source, doc.ExternalID),
		}
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	s.nextDocID++
	doc.ID = s.nextDocID
	s.documents[doc.ID] = copyDocument(*doc)
	s.byExternal[key] = doc.ID
	return nil
}

// FindByExternalID returns the document imported for an external identifier.
func (s *DocumentStore) FindByExternalID(
	_ context.Context, appID string, source domain.Source, externalID string,
) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalKey(appID, source, externalID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := copyDocument(s.documents[id])
	return &doc, nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id int64) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc = copyDocument(doc)
	return &doc, nil
}

// GetUnprocessedDocument retrieves a document only while processed is false.
func (s *DocumentStore) GetUnprocessedDocument(ctx context.Context, id int64) (*domain.Document, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Processed {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

// ListDocuments returns documents matching the filter ordered by ID.
func (s *DocumentStore) ListDocuments(_ context.Context, filter driven.DocumentFilter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.filter(filter)
	if filter.Limit > 0 && len(docs) > filter.Limit {
		docs = docs[:filter.Limit]
	}
	return docs, nil
}

// CountDocuments returns the number of documents matching the filter.
func (s *DocumentStore) CountDocuments(_ context.Context, filter driven.DocumentFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filter(filter)), nil
}

func (s *DocumentStore) filter(filter driven.DocumentFilter) []domain.Document {
	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		if filter.AppID != "" && doc.AppID != filter.AppID {
			continue
		}
		if filter.OnlyUnprocessed && doc.Processed {
			continue
		}
		if doc.ID <= filter.AfterID {
			continue
		}
		docs = append(docs, copyDocument(doc))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

// UpdateSummary stores the summary text for a document.
func (s *DocumentStore) UpdateSummary(_ context.Context, id int64, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Summary = &summary
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return nil
}

// SetProcessed sets the processed flag for a document.
func (s *DocumentStore) SetProcessed(_ context.Context, id int64, processed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Processed = processed
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return nil
}

// CountChunks returns the number of chunks stored for a document.
func (s *DocumentStore) CountChunks(_ context.Context, documentID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[documentID]), nil
}

// ReplaceChunks replaces all chunks of a document.
func (s *DocumentStore) ReplaceChunks(_ context.Context, documentID int64, chunks []domain.Chunk) error {
	seen := make(map[int]bool, len(chunks))
	for _, chunk := range chunks {
		if seen[chunk.Position] {
			return &domain.StorageConflictError{
				Entity: "chunk",
				Key:    fmt.Sprintf("%d/%d", documentID, chunk.Position),
			}
		}
		seen[chunk.Position] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return domain.ErrNotFound
	}

	now := time.Now().UTC()
	stored := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		s.nextChunkID++
		chunk.ID = s.nextChunkID
		chunk.DocumentID = documentID
		chunk.CreatedAt = now
		chunk.Embedding = copyEmbedding(chunk.Embedding)
		stored = append(stored, chunk)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Position < stored[j].Position })

	if len(stored) == 0 {
		delete(s.chunks, documentID)
		return nil
	}
	s.chunks[documentID] = stored
	return nil
}

// GetChunks retrieves all chunks for a document ordered by position.
func (s *DocumentStore) GetChunks(_ context.Context, documentID int64) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks, ok := s.chunks[documentID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Chunk, len(chunks))
	for i, chunk := range chunks {
		chunk.Embedding = copyEmbedding(chunk.Embedding)
		out[i] = chunk
	}
	return out, nil
}

// ListChunksWithoutEmbedding returns up to limit chunks without an embedding, oldest first.
func (s *DocumentStore) ListChunksWithoutEmbedding(_ context.Context, limit int) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Chunk
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if chunk.Embedding == nil {
				out = append(out, chunk)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetEmbedding stores the embedding vector of a chunk.
func (s *DocumentStore) SetEmbedding(_ context.Context, chunkID int64, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("setting embedding: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for docID, chunks := range s.chunks {
		for i := range chunks {
			if chunks[i].ID == chunkID {
				s.chunks[docID][i].Embedding = copyEmbedding(embedding)
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func copyDocument(doc domain.Document) domain.Document {
	if doc.Summary != nil {
		summary := *doc.Summary
		doc.Summary = &summary
	}
	if doc.Metadata != nil {
		meta := make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		doc.Metadata = meta
	}
	return doc
}

func copyEmbedding(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
