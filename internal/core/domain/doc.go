// Package domain defines the core business entities for Threadline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An imported conversation rendered as markdown
//   - Chunk: An overlapping slice of a document used for embedding
//   - Tag: A tenant-scoped classification label
//   - EndUser: A conversation participant resolved by email
//   - ImportJob: A resumable, checkpointed import run
//   - Conversation: A provider thread validated at the connector boundary
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
