package driven

import (
	"context"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// TagStore persists tenant tags and document-tag associations.
// The store enforces (app_id, slug) uniqueness.
type TagStore interface {
	// ListTags returns the tag vocabulary of a tenant ordered by name.
	ListTags(ctx context.Context, appID string) ([]domain.Tag, error)

	// FindOrCreateTag returns the tag with Slugify(name) in the tenant,
	// creating it when absent. Concurrent callers converge on a single row.
	FindOrCreateTag(ctx context.Context, appID, name string) (*domain.Tag, error)

	// GetDocumentTags returns the tags associated with a document.
	GetDocumentTags(ctx context.Context, documentID int64) ([]domain.Tag, error)

	// AddDocumentTags associates tags with a document. Existing pairs are ignored.
	AddDocumentTags(ctx context.Context, documentID int64, tagIDs []int64) error
}

// EndUserStore persists conversation participants.
// The store enforces (app_id, email) uniqueness.
type EndUserStore interface {
	// FindOrCreateEndUser returns the end user with the same (AppID, Email),
	// creating it from the given record when absent.
	FindOrCreateEndUser(ctx context.Context, user domain.EndUser) (*domain.EndUser, error)

	// LinkDocument associates an end user with a document. Existing links are ignored.
	LinkDocument(ctx context.Context, endUserID, documentID int64) error

	// ListDocumentEndUsers returns the end users linked to a document.
	ListDocumentEndUsers(ctx context.Context, documentID int64) ([]domain.EndUser, error)
}
