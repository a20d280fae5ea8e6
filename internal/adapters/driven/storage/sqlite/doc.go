// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentStore: imported documents, unique on (app_id, source, external_id)
//   - ChunkStore: document chunks and their embeddings
//   - TagStore: tenant tags, unique on (app_id, slug), and document tags
//   - EndUserStore: participants, unique on (app_id, email), and their document links
//   - ImportCursorStore and ImportJobStore: import checkpoints
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Uniqueness invariants are UNIQUE constraints, so concurrent writers racing on
// the same key cannot both succeed; the loser gets *domain.StorageConflictError
// or, for find-or-create operations, the row the winner inserted.
//
// # Data Location
//
// By default, the database is stored at ~/.threadline/data/threadline.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
