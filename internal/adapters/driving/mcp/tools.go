package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// defaultListLimit applies when list_documents is called without a limit.
const defaultListLimit = 20

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct {
	Unprocessed bool `json:"unprocessed,omitempty" jsonschema:"only return documents that still need enrichment"`
	Limit       int  `json:"limit,omitempty" jsonschema:"maximum number of documents to return (default 20)"`
}

// DocumentSummary is one entry of list_documents.
type DocumentSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
	Summary    string `json:"summary,omitempty"`
	Processed  bool   `json:"processed"`
}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentSummary `json:"documents"`
	Count     int               `json:"count"`
}

// DocumentInput identifies a document.
type DocumentInput struct {
	ID int64 `json:"id" jsonschema:"the document id"`
}

// DocumentOutput is the output schema for the get_document tool.
type DocumentOutput struct {
	Document       DocumentSummary `json:"document"`
	Content        string          `json:"content"`
	Chunks         int             `json:"chunks"`
	EmbeddedChunks int             `json:"embedded_chunks"`
	Tags           []string        `json:"tags"`
	Participants   []string        `json:"participants"`
}

// ProcessDocumentInput is the input schema for the process_document tool.
type ProcessDocumentInput struct {
	ID             int64 `json:"id" jsonschema:"the document id"`
	ForceSplit     bool  `json:"force_split,omitempty" jsonschema:"re-split even if chunks exist"`
	ForceSummarize bool  `json:"force_summarize,omitempty" jsonschema:"rewrite the summary even if one exists"`
	ForceTag       bool  `json:"force_tag,omitempty" jsonschema:"re-tag even if tags exist"`
}

// ProcessDocumentOutput reports per-stage outcomes.
type ProcessDocumentOutput struct {
	Split     string `json:"split"`
	Summarize string `json:"summarize"`
	Tag       string `json:"tag"`
	Processed bool   `json:"processed"`
}

// ImportStatusInput is the input schema for the import_status tool.
type ImportStatusInput struct {
	JobID string `json:"job_id" jsonschema:"the import job id"`
}

// ImportStatusOutput is the state of an import job.
type ImportStatusOutput struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List imported support conversations",
	}, s.handleListDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document",
		Description: "Get a conversation with its summary, tags and participants",
	}, s.handleGetDocument)

	if s.ports.Processor != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "process_document",
			Description: "Split, summarise and tag a conversation",
		}, s.handleProcessDocument)
	}

	if s.ports.Importer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "import_status",
			Description: "Show the progress of an import job",
		}, s.handleImportStatus)
	}
}

func summarise(d *domain.Document) DocumentSummary {
	return DocumentSummary{
		ID:         d.ID,
		Name:       d.Name,
		ExternalID: d.ExternalID,
		Summary:    d.SummaryText(),
		Processed:  d.Processed,
	}
}

func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	docs, err := s.ports.Documents.List(ctx, s.appID, input.Unprocessed, limit)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentSummary, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = summarise(&docs[i])
	}
	return nil, output, nil
}

func (s *Server) handleGetDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	details, err := s.ports.Documents.GetDetails(ctx, input.ID)
	if err == nil && details.Document.AppID != s.appID {
		err = domain.ErrNotFound
	}
	if err != nil {
		return nil, DocumentOutput{}, fmt.Errorf("document %d: %w", input.ID, err)
	}

	output := DocumentOutput{
		Document:       summarise(&details.Document),
		Content:        details.Document.Content,
		Chunks:         details.ChunkCount,
		EmbeddedChunks: details.Embedded,
		Tags:           make([]string, len(details.Tags)),
		Participants:   make([]string, len(details.EndUsers)),
	}
	for i, t := range details.Tags {
		output.Tags[i] = t.Name
	}
	for i, u := range details.EndUsers {
		output.Participants[i] = u.Email
	}
	return nil, output, nil
}

func (s *Server) handleProcessDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProcessDocumentInput,
) (*mcp.CallToolResult, ProcessDocumentOutput, error) {
	if _, _, err := s.handleGetDocument(ctx, nil, DocumentInput{ID: input.ID}); err != nil {
		return nil, ProcessDocumentOutput{}, err
	}

	result, err := s.ports.Processor.Process(ctx, input.ID, domain.ProcessingOptions{
		ForceSplit:     input.ForceSplit,
		ForceSummarize: input.ForceSummarize,
		ForceTag:       input.ForceTag,
	})
	if errors.Is(err, domain.ErrNotFoundOrProcessed) {
		return nil, ProcessDocumentOutput{}, errors.New("document not found or already processed")
	}
	if err != nil {
		// Stage causes stay in the server log.
		return nil, ProcessDocumentOutput{}, domain.ErrProcessingFailed
	}

	return nil, ProcessDocumentOutput{
		Split:     string(result.Split),
		Summarize: string(result.Summarize),
		Tag:       string(result.Tag),
		Processed: result.Processed,
	}, nil
}

func (s *Server) handleImportStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ImportStatusInput,
) (*mcp.CallToolResult, ImportStatusOutput, error) {
	job, err := s.ports.Importer.Job(ctx, input.JobID)
	if err == nil && job.AppID != s.appID {
		err = domain.ErrNotFound
	}
	if err != nil {
		return nil, ImportStatusOutput{}, fmt.Errorf("import job %s: %w", input.JobID, err)
	}

	return nil, ImportStatusOutput{
		JobID:     job.ID,
		Status:    string(job.Status),
		Processed: job.Processed,
		Skipped:   job.Skipped,
		Failed:    job.Failed,
		Error:     job.Error,
	}, nil
}
