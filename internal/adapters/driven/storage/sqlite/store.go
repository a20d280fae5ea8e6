package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite" // SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/custodia-labs/threadline/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "threadline.db"

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.threadline/data/threadline.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".threadline", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// WAL for concurrent readers; foreign keys are per connection so they go in the DSN.
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ChunkStore returns a ChunkStore interface backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// TagStore returns a TagStore interface backed by this store.
func (s *Store) TagStore() driven.TagStore {
	return &tagStore{store: s}
}

// EndUserStore returns an EndUserStore interface backed by this store.
func (s *Store) EndUserStore() driven.EndUserStore {
	return &endUserStore{store: s}
}

// ImportCursorStore returns an ImportCursorStore interface backed by this store.
func (s *Store) ImportCursorStore() driven.ImportCursorStore {
	return &importCursorStore{store: s}
}

// ImportJobStore returns an ImportJobStore interface backed by this store.
func (s *Store) ImportJobStore() driven.ImportJobStore {
	return &importJobStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("getting schema version: %w", err)
	}
	return version, nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, app_id, created_by, name, content, source, external_id,
	summary, processed, metadata, created_at, updated_at`

// CreateDocument inserts a new document and sets its ID.
func (s *documentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.AppID == "" || doc.ExternalID == "" || !doc.Source.IsValid() {
		return fmt.Errorf("creating document: %w", domain.ErrInvalidInput)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (app_id, created_by, name, content, source, external_id,
			summary, processed, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.AppID, doc.CreatedBy, doc.Name, doc.Content, string(doc.Source), doc.ExternalID,
		nullString(doc.Summary), doc.Processed, string(metadataJSON), doc.CreatedAt, doc.UpdatedAt)
	if isUniqueViolation(err) {
		return &domain.StorageConflictError{
			Entity: "document",
			Key:    fmt.Sprintf("%s/%s/%s", doc.AppID, doc.Source, doc.ExternalID),
		}
	}
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading document id: %w", err)
	}
	doc.ID = id
	return nil
}

// FindByExternalID returns the document imported for an external identifier.
func (s *documentStore) FindByExternalID(
	ctx context.Context, appID string, source domain.Source, externalID string,
) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE app_id = ? AND source = ? AND external_id = ?
	`, appID, string(source), externalID)

	return scanDocument(row)
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE id = ?
	`, id)

	return scanDocument(row)
}

// GetUnprocessedDocument retrieves a document only while processed is false.
func (s *documentStore) GetUnprocessedDocument(ctx context.Context, id int64) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE id = ? AND processed = 0
	`, id)

	return scanDocument(row)
}

// ListDocuments returns documents matching the filter ordered by ID.
func (s *documentStore) ListDocuments(ctx context.Context, filter driven.DocumentFilter) ([]domain.Document, error) {
	where, args := documentWhere(filter)
	query := `SELECT ` + documentColumns + ` FROM documents` + where + ` ORDER BY id`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// CountDocuments returns the number of documents matching the filter.
// Limit is ignored.
func (s *documentStore) CountDocuments(ctx context.Context, filter driven.DocumentFilter) (int, error) {
	where, args := documentWhere(filter)

	var count int
	if err := s.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// UpdateSummary stores the summary text for a document.
func (s *documentStore) UpdateSummary(ctx context.Context, id int64, summary string) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE documents SET summary = ?, updated_at = ? WHERE id = ?",
		summary, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating summary: %w", err)
	}
	return requireAffected(res)
}

// SetProcessed sets the processed flag for a document.
func (s *documentStore) SetProcessed(ctx context.Context, id int64, processed bool) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE documents SET processed = ?, updated_at = ? WHERE id = ?",
		processed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating processed flag: %w", err)
	}
	return requireAffected(res)
}

func documentWhere(filter driven.DocumentFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.AppID != "" {
		clauses = append(clauses, "app_id = ?")
		args = append(args, filter.AppID)
	}
	if filter.OnlyUnprocessed {
		clauses = append(clauses, "processed = 0")
	}
	if filter.AfterID > 0 {
		clauses = append(clauses, "id > ?")
		args = append(args, filter.AfterID)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ==================== Chunk Store ====================

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// CountChunks returns the number of chunks stored for a document.
func (s *chunkStore) CountChunks(ctx context.Context, documentID int64) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM document_chunks WHERE document_id = ?", documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// ReplaceChunks atomically replaces all chunks of a document.
func (s *chunkStore) ReplaceChunks(ctx context.Context, documentID int64, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (document_id, app_id, content, position, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, documentID, chunk.AppID, chunk.Content,
			chunk.Position, float32SliceToBytes(chunk.Embedding), now); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document.
func (s *chunkStore) GetChunks(ctx context.Context, documentID int64) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, app_id, content, position, embedding, created_at
		FROM document_chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// ListChunksWithoutEmbedding returns up to limit chunks that have no embedding.
func (s *chunkStore) ListChunksWithoutEmbedding(ctx context.Context, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, app_id, content, position, embedding, created_at
		FROM document_chunks WHERE embedding IS NULL
		ORDER BY id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying chunks without embedding: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SetEmbedding stores the embedding vector of a chunk.
func (s *chunkStore) SetEmbedding(ctx context.Context, chunkID int64, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("setting embedding: %w", domain.ErrInvalidInput)
	}
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE document_chunks SET embedding = ? WHERE id = ?",
		float32SliceToBytes(embedding), chunkID)
	if err != nil {
		return fmt.Errorf("setting embedding: %w", err)
	}
	return requireAffected(res)
}

// ==================== Helper Functions ====================

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// requireAffected maps an update that touched no rows to domain.ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocumentInto(r rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var source string
	var summary sql.NullString
	var metadataJSON string

	if err := r.Scan(&doc.ID, &doc.AppID, &doc.CreatedBy, &doc.Name, &doc.Content, &source,
		&doc.ExternalID, &summary, &doc.Processed, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}

	doc.Source = domain.Source(source)
	if summary.Valid {
		doc.Summary = &summary.String
	}

	if metadataJSON != "" && metadataJSON != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return &doc, nil
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	doc, err := scanDocumentInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	doc, err := scanDocumentInto(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

// scanChunks scans chunk rows.
func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingBlob []byte

		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.AppID, &chunk.Content,
			&chunk.Position, &embeddingBlob, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}
