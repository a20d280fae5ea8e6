package mcp

import (
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Documents exposes stored documents. Required.
	Documents driving.DocumentService

	// Processor runs enrichment. Optional; without it process_document is not offered.
	Processor driving.DocumentProcessor

	// Importer reports import job state. Optional; without it import_status is not offered.
	Importer driving.ConversationImporter
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Documents == nil {
		return ErrMissingDocumentService
	}
	return nil
}
