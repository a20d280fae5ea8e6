package domain

import "time"

// Source identifies the provider a document was imported from.
type Source string

// Known document sources.
const (
	// SourceIntercom is the Intercom conversations API.
	SourceIntercom Source = "intercom"
)

// IsValid returns true if the source is recognised.
func (s Source) IsValid() bool {
	return s == SourceIntercom
}

// String returns the string representation.
func (s Source) String() string {
	return string(s)
}

// ImportCursor records the last checkpointed pagination cursor for a tenant user,
// so a fresh import can resume instead of restarting from the beginning.
type ImportCursor struct {
	// AppID is the tenant.
	AppID string

	// UserID is the user the import runs as.
	UserID string

	// Cursor is an opaque provider token. Empty means start from the beginning.
	Cursor string

	// Processed is the number of conversations imported up to this cursor.
	Processed int

	// UpdatedAt is when the cursor was last saved.
	UpdatedAt time.Time
}
