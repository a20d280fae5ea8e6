package domain

import (
	"strings"
	"time"
)

// Document represents one imported conversation (or other content) stored as markdown.
// It is the unit the enrichment pipeline operates on.
type Document struct {
	// ID is assigned by the store on insert.
	ID int64

	// AppID is the owning tenant.
	AppID string

	// CreatedBy is the user who triggered the import.
	CreatedBy string

	// Name is the human-readable title.
	Name string

	// Content is the markdown body.
	Content string

	// Source identifies the provider that produced the document.
	Source Source

	// ExternalID is the provider-assigned identifier.
	// (AppID, Source, ExternalID) is unique.
	ExternalID string

	// Summary is populated by the summarize stage. Nil until then.
	Summary *string

	// Processed is true once every enrichment stage has completed.
	Processed bool

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is the provider creation time when known, otherwise the insert time.
	CreatedAt time.Time

	// UpdatedAt is when the document was last modified.
	UpdatedAt time.Time
}

// HasSummary reports whether a non-empty summary is stored.
func (d *Document) HasSummary() bool {
	return d.Summary != nil && *d.Summary != ""
}

// SummaryText returns the summary or an empty string.
func (d *Document) SummaryText() string {
	if d.Summary == nil {
		return ""
	}
	return *d.Summary
}

// Chunk represents an overlapping slice of a document's content.
// Chunks are immutable once created; a forced re-split replaces them.
type Chunk struct {
	// ID is assigned by the store.
	ID int64

	// DocumentID links to the parent Document.
	DocumentID int64

	// AppID is the tenant of the parent document.
	AppID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation. Nil until backfilled.
	Embedding []float32

	// CreatedAt is when the chunk was stored.
	CreatedAt time.Time
}

// Tag is a tenant-scoped classification label.
type Tag struct {
	ID    int64
	AppID string
	Name  string

	// Slug is Slugify(Name) and is unique within a tenant.
	Slug string
}

// Slugify normalises a tag name: trimmed, lowercased, runs of whitespace
// replaced with one hyphen (" Bug  Report " becomes "bug-report").
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(s), "-")
}
