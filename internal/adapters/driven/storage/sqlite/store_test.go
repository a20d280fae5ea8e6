package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "threadline-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// createTestDocument inserts a conversation document and returns it.
func createTestDocument(t *testing.T, store *Store, appID, externalID string) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		AppID:      appID,
		CreatedBy:  "user-1",
		Name:       "Conversation " + externalID,
		Content:    "# Conversation " + externalID,
		Source:     domain.SourceIntercom,
		ExternalID: externalID,
		Metadata:   map[string]any{"created_at": float64(1700000000)},
	}
	require.NoError(t, store.DocumentStore().CreateDocument(context.Background(), doc))
	require.NotZero(t, doc.ID)
	return doc
}

// ==================== Store Creation Tests ====================

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "threadline-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	dbPath := filepath.Join(tempDir, DatabaseFile)
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewStore_Migrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	tables := []string{
		"documents",
		"document_chunks",
		"tags",
		"documents_tags",
		"end_users",
		"end_user_documents",
		"import_cursors",
		"import_jobs",
	}

	for _, table := range tables {
		var tableExists int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&tableExists)
		require.NoError(t, err)
		assert.Equal(t, 1, tableExists, "table %s should exist", table)
	}
}

func TestNewStore_ReopenDoesNotReapplyMigrations(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "threadline-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	first, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(tempDir)
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNewStore_ForeignKeysEnabled(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var fkEnabled int
	err := store.db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	require.NoError(t, err)
	assert.Equal(t, 1, fkEnabled, "foreign keys should be enabled")
}

func TestStore_InterfaceGetters(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.NotNil(t, store.DocumentStore())
	assert.NotNil(t, store.ChunkStore())
	assert.NotNil(t, store.TagStore())
	assert.NotNil(t, store.EndUserStore())
	assert.NotNil(t, store.ImportCursorStore())
	assert.NotNil(t, store.ImportJobStore())
}

// ==================== Document Store Tests ====================

func TestDocumentStore_CreateAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	doc := createTestDocument(t, store, "app-1", "c1")

	got, err := store.DocumentStore().GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "app-1", got.AppID)
	assert.Equal(t, "user-1", got.CreatedBy)
	assert.Equal(t, domain.SourceIntercom, got.Source)
	assert.Equal(t, "c1", got.ExternalID)
	assert.False(t, got.Processed)
	assert.Nil(t, got.Summary)
	assert.Equal(t, float64(1700000000), got.Metadata["created_at"])
}

func TestDocumentStore_CreateDuplicate_Conflict(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	createTestDocument(t, store, "app-1", "c1")

	dup := &domain.Document{AppID: "app-1", Name: "again", Source: domain.SourceIntercom, ExternalID: "c1"}
	err := store.DocumentStore().CreateDocument(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))

	var conflict *domain.StorageConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "document", conflict.Entity)

	// Same external ID in another tenant is a different document.
	createTestDocument(t, store, "app-2", "c1")
}

func TestDocumentStore_CreateInvalid(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.DocumentStore().CreateDocument(context.Background(), &domain.Document{AppID: "a", ExternalID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_FindByExternalID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	doc := createTestDocument(t, store, "app-1", "c1")

	found, err := store.DocumentStore().FindByExternalID(ctx, "app-1", domain.SourceIntercom, "c1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	_, err = store.DocumentStore().FindByExternalID(ctx, "app-2", domain.SourceIntercom, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_GetUnprocessedDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	doc := createTestDocument(t, store, "app-1", "c1")

	_, err := docs.GetUnprocessedDocument(ctx, doc.ID)
	require.NoError(t, err)

	require.NoError(t, docs.SetProcessed(ctx, doc.ID, true))
	_, err = docs.GetUnprocessedDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)
}

func TestDocumentStore_UpdateSummary(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	doc := createTestDocument(t, store, "app-1", "c1")
	require.NoError(t, docs.UpdateSummary(ctx, doc.ID, "Billing question"))

	got, err := docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Billing question", got.SummaryText())

	assert.ErrorIs(t, docs.UpdateSummary(ctx, 9999, "x"), domain.ErrNotFound)
	assert.ErrorIs(t, docs.SetProcessed(ctx, 9999, true), domain.ErrNotFound)
}

func TestDocumentStore_ListAndCount(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, createTestDocument(t, store, "app-1", fmt.Sprintf("c%d", i)).ID)
	}
	createTestDocument(t, store, "app-2", "other")
	require.NoError(t, docs.SetProcessed(ctx, ids[1], true))

	all, err := docs.ListDocuments(ctx, driven.DocumentFilter{AppID: "app-1"})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	unprocessed, err := docs.ListDocuments(ctx, driven.DocumentFilter{AppID: "app-1", OnlyUnprocessed: true})
	require.NoError(t, err)
	assert.Len(t, unprocessed, 4)

	page, err := docs.ListDocuments(ctx, driven.DocumentFilter{AppID: "app-1", AfterID: ids[2], Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[3], page[0].ID)

	count, err := docs.CountDocuments(ctx, driven.DocumentFilter{AppID: "app-1", OnlyUnprocessed: true, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	total, err := docs.CountDocuments(ctx, driven.DocumentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

// ==================== Chunk Store Tests ====================

func TestChunkStore_ReplaceAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	chunks := store.ChunkStore()

	doc := createTestDocument(t, store, "app-1", "c1")

	require.NoError(t, chunks.ReplaceChunks(ctx, doc.ID, []domain.Chunk{
		{AppID: "app-1", Content: "first", Position: 0},
		{AppID: "app-1", Content: "second", Position: 1},
		{AppID: "app-1", Content: "third", Position: 2},
	}))

	count, err := chunks.CountChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Replacing drops the previous set.
	require.NoError(t, chunks.ReplaceChunks(ctx, doc.ID, []domain.Chunk{
		{AppID: "app-1", Content: "only", Position: 0},
	}))

	got, err := chunks.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].Content)
	assert.Equal(t, doc.ID, got[0].DocumentID)
	assert.Nil(t, got[0].Embedding)
}

func TestChunkStore_ReplaceIsAtomic(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	chunks := store.ChunkStore()

	doc := createTestDocument(t, store, "app-1", "c1")
	require.NoError(t, chunks.ReplaceChunks(ctx, doc.ID, []domain.Chunk{{AppID: "app-1", Content: "keep", Position: 0}}))

	// Duplicate positions violate the unique constraint mid-transaction.
	err := chunks.ReplaceChunks(ctx, doc.ID, []domain.Chunk{
		{AppID: "app-1", Content: "a", Position: 0},
		{AppID: "app-1", Content: "b", Position: 0},
	})
	require.Error(t, err)

	got, err := chunks.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].Content)
}

func TestChunkStore_Embeddings(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	chunks := store.ChunkStore()

	doc := createTestDocument(t, store, "app-1", "c1")
	require.NoError(t, chunks.ReplaceChunks(ctx, doc.ID, []domain.Chunk{
		{AppID: "app-1", Content: "a", Position: 0},
		{AppID: "app-1", Content: "b", Position: 1},
	}))

	pending, err := chunks.ListChunksWithoutEmbedding(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	vec := []float32{0.25, -1.5, 3}
	require.NoError(t, chunks.SetEmbedding(ctx, pending[0].ID, vec))

	pending, err = chunks.ListChunksWithoutEmbedding(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].Content)

	got, err := chunks.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, vec, got[0].Embedding)

	assert.ErrorIs(t, chunks.SetEmbedding(ctx, 9999, vec), domain.ErrNotFound)
	assert.ErrorIs(t, chunks.SetEmbedding(ctx, got[1].ID, nil), domain.ErrInvalidInput)
}

func TestFloat32BytesRoundTrip(t *testing.T) {
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))

	in := []float32{1, 0, -0.5, 1e-7}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
}

// ==================== Tag Store Tests ====================

func TestTagStore_FindOrCreateBySlug(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	tags := store.TagStore()

	first, err := tags.FindOrCreateTag(ctx, "app-1", "Bug Report")
	require.NoError(t, err)
	assert.Equal(t, "bug-report", first.Slug)
	assert.Equal(t, "Bug Report", first.Name)

	again, err := tags.FindOrCreateTag(ctx, "app-1", "  bug   report ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Bug Report", again.Name, "existing name is kept")

	other, err := tags.FindOrCreateTag(ctx, "app-2", "Bug Report")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	list, err := tags.ListTags(ctx, "app-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = tags.FindOrCreateTag(ctx, "app-1", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTagStore_FindOrCreateConcurrent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	tags := store.TagStore()

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tag, err := tags.FindOrCreateTag(ctx, "app-1", "Feature Request")
			errs[i] = err
			if tag != nil {
				ids[i] = tag.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	list, err := tags.ListTags(ctx, "app-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTagStore_DocumentTags(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	tags := store.TagStore()

	doc := createTestDocument(t, store, "app-1", "c1")
	bug, err := tags.FindOrCreateTag(ctx, "app-1", "Bug")
	require.NoError(t, err)
	billing, err := tags.FindOrCreateTag(ctx, "app-1", "Billing")
	require.NoError(t, err)

	require.NoError(t, tags.AddDocumentTags(ctx, doc.ID, []int64{bug.ID}))
	require.NoError(t, tags.AddDocumentTags(ctx, doc.ID, []int64{bug.ID, billing.ID}))
	require.NoError(t, tags.AddDocumentTags(ctx, doc.ID, nil))

	got, err := tags.GetDocumentTags(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Billing", got[0].Name)
	assert.Equal(t, "Bug", got[1].Name)
}

// ==================== End User Store Tests ====================

func TestEndUserStore_FindOrCreateDedupesByEmail(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	users := store.EndUserStore()

	alice, err := users.FindOrCreateEndUser(ctx, domain.EndUser{
		AppID: "app-1", Email: "Alice@Example.com", FirstName: "Alice", LastName: "Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", alice.Email)
	assert.Equal(t, domain.EndUserTypeUser, alice.Type)

	again, err := users.FindOrCreateEndUser(ctx, domain.EndUser{
		AppID: "app-1", Email: "alice@example.com", FirstName: "Changed", Type: domain.EndUserTypeTeammate,
	})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, again.ID)
	assert.Equal(t, "Alice", again.FirstName)

	_, err = users.FindOrCreateEndUser(ctx, domain.EndUser{AppID: "app-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEndUserStore_LinkDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	users := store.EndUserStore()

	doc := createTestDocument(t, store, "app-1", "c1")
	alice, err := users.FindOrCreateEndUser(ctx, domain.EndUser{AppID: "app-1", Email: "alice@example.com"})
	require.NoError(t, err)
	bob, err := users.FindOrCreateEndUser(ctx, domain.EndUser{
		AppID: "app-1", Email: "bob@example.com", Type: domain.EndUserTypeTeammate,
	})
	require.NoError(t, err)

	require.NoError(t, users.LinkDocument(ctx, alice.ID, doc.ID))
	require.NoError(t, users.LinkDocument(ctx, alice.ID, doc.ID))
	require.NoError(t, users.LinkDocument(ctx, bob.ID, doc.ID))

	linked, err := users.ListDocumentEndUsers(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, domain.EndUserTypeTeammate, linked[1].Type)
}

// ==================== Import Store Tests ====================

func TestImportCursorStore(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	cursors := store.ImportCursorStore()

	_, err := cursors.Get(ctx, "app-1", "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, cursors.Save(ctx, domain.ImportCursor{AppID: "app-1", UserID: "user-1", Cursor: "p2", Processed: 25}))
	require.NoError(t, cursors.Save(ctx, domain.ImportCursor{AppID: "app-1", UserID: "user-1", Cursor: "p3", Processed: 50}))

	got, err := cursors.Get(ctx, "app-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "p3", got.Cursor)
	assert.Equal(t, 50, got.Processed)
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, cursors.Delete(ctx, "app-1", "user-1"))
	_, err = cursors.Get(ctx, "app-1", "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestImportJobStore(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	jobs := store.ImportJobStore()

	after := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	job := &domain.ImportJob{
		ID: "job-1", AppID: "app-1", UserID: "user-1",
		CreatedAfter: &after, Limit: 10, Status: domain.JobRunning,
	}
	require.NoError(t, jobs.SaveJob(ctx, job))

	job.Cursor = "p2"
	job.Processed = 4
	job.Skipped = 1
	job.Status = domain.JobPaused
	require.NoError(t, jobs.SaveJob(ctx, job))

	got, err := jobs.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "p2", got.Cursor)
	assert.Equal(t, 4, got.Processed)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, domain.JobPaused, got.Status)
	assert.Equal(t, 10, got.Limit)
	require.NotNil(t, got.CreatedAfter)
	assert.True(t, after.Equal(*got.CreatedAfter))

	require.NoError(t, jobs.SaveJob(ctx, &domain.ImportJob{ID: "job-2", AppID: "app-1", Status: domain.JobPending}))
	require.NoError(t, jobs.SaveJob(ctx, &domain.ImportJob{ID: "job-3", AppID: "app-2", Status: domain.JobPending}))

	list, err := jobs.ListJobs(ctx, "app-1", 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = jobs.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, jobs.SaveJob(ctx, &domain.ImportJob{}), domain.ErrInvalidInput)
}
