// Package mcp provides an MCP (Model Context Protocol) server adapter for threadline.
// It lets AI assistants inspect a tenant's imported conversations and trigger enrichment.
package mcp

import "errors"

// ErrMissingDocumentService is returned when the document service is not provided.
var ErrMissingDocumentService = errors.New("mcp: document service is required")

// ErrMissingApp is returned when the server is not bound to a tenant.
var ErrMissingApp = errors.New("mcp: app is required")
