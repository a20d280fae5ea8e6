package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// ==================== Tag Store ====================

// tagStore implements driven.TagStore.
type tagStore struct {
	store *Store
}

var _ driven.TagStore = (*tagStore)(nil)

// ListTags returns the tag vocabulary of a tenant ordered by name.
func (s *tagStore) ListTags(ctx context.Context, appID string) ([]domain.Tag, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, app_id, name, slug FROM tags
		WHERE app_id = ? ORDER BY name, id
	`, appID)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	return scanTags(rows)
}

// FindOrCreateTag returns the tenant tag for Slugify(name), creating it when absent.
// The insert ignores slug conflicts so concurrent callers read back the same row.
func (s *tagStore) FindOrCreateTag(ctx context.Context, appID, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	slug := domain.Slugify(name)
	if appID == "" || slug == "" {
		return nil, fmt.Errorf("creating tag: %w", domain.ErrInvalidInput)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO tags (app_id, name, slug, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(app_id, slug) DO NOTHING
	`, appID, name, slug, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("inserting tag: %w", err)
	}

	var tag domain.Tag
	err = s.store.db.QueryRowContext(ctx, `
		SELECT id, app_id, name, slug FROM tags WHERE app_id = ? AND slug = ?
	`, appID, slug).Scan(&tag.ID, &tag.AppID, &tag.Name, &tag.Slug)
	if err != nil {
		return nil, fmt.Errorf("reading tag %q: %w", slug, err)
	}
	return &tag, nil
}

// GetDocumentTags returns the tags associated with a document.
func (s *tagStore) GetDocumentTags(ctx context.Context, documentID int64) ([]domain.Tag, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT t.id, t.app_id, t.name, t.slug
		FROM tags t
		JOIN documents_tags dt ON dt.tag_id = t.id
		WHERE dt.document_id = ?
		ORDER BY t.name, t.id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying document tags: %w", err)
	}
	defer rows.Close()

	return scanTags(rows)
}

// AddDocumentTags associates tags with a document. Existing pairs are ignored.
func (s *tagStore) AddDocumentTags(ctx context.Context, documentID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents_tags (document_id, tag_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(document_id, tag_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, tagID := range tagIDs {
		if _, err := stmt.ExecContext(ctx, documentID, tagID, now); err != nil {
			return fmt.Errorf("associating tag %d: %w", tagID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func scanTags(rows *sql.Rows) ([]domain.Tag, error) {
	var tags []domain.Tag //nolint:prealloc // size unknown from query
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.AppID, &tag.Name, &tag.Slug); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}
	return tags, nil
}

// ==================== End User Store ====================

// endUserStore implements driven.EndUserStore.
type endUserStore struct {
	store *Store
}

var _ driven.EndUserStore = (*endUserStore)(nil)

// FindOrCreateEndUser returns the end user with the same (AppID, Email),
// creating it from user when absent. An existing record is never overwritten.
func (s *endUserStore) FindOrCreateEndUser(ctx context.Context, user domain.EndUser) (*domain.EndUser, error) {
	email := domain.NormaliseEmail(user.Email)
	if user.AppID == "" || email == "" {
		return nil, fmt.Errorf("creating end user: %w", domain.ErrInvalidInput)
	}
	if user.Type == "" {
		user.Type = domain.EndUserTypeUser
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO end_users (app_id, email, first_name, last_name, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(app_id, email) DO NOTHING
	`, user.AppID, email, user.FirstName, user.LastName, string(user.Type), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("inserting end user: %w", err)
	}

	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, app_id, email, first_name, last_name, type
		FROM end_users WHERE app_id = ? AND email = ?
	`, user.AppID, email)

	found, err := scanEndUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading end user: %w", err)
	}
	return found, nil
}

// LinkDocument associates an end user with a document. Existing links are ignored.
func (s *endUserStore) LinkDocument(ctx context.Context, endUserID, documentID int64) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO end_user_documents (end_user_id, document_id)
		VALUES (?, ?)
		ON CONFLICT(end_user_id, document_id) DO NOTHING
	`, endUserID, documentID)
	if err != nil {
		return fmt.Errorf("linking end user %d: %w", endUserID, err)
	}
	return nil
}

// ListDocumentEndUsers returns the end users linked to a document.
func (s *endUserStore) ListDocumentEndUsers(ctx context.Context, documentID int64) ([]domain.EndUser, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT u.id, u.app_id, u.email, u.first_name, u.last_name, u.type
		FROM end_users u
		JOIN end_user_documents l ON l.end_user_id = u.id
		WHERE l.document_id = ?
		ORDER BY u.id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying document end users: %w", err)
	}
	defer rows.Close()

	var users []domain.EndUser //nolint:prealloc // size unknown from query
	for rows.Next() {
		user, err := scanEndUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning end user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating end users: %w", err)
	}
	return users, nil
}

func scanEndUser(r rowScanner) (*domain.EndUser, error) {
	var user domain.EndUser
	var userType string
	if err := r.Scan(&user.ID, &user.AppID, &user.Email, &user.FirstName, &user.LastName, &userType); err != nil {
		return nil, err
	}
	user.Type = domain.EndUserType(userType)
	return &user, nil
}
