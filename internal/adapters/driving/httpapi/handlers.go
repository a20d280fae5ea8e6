package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/logger"
)

type importRequest struct {
	Limit        int    `json:"limit" validate:"gte=0"`
	CreatedAfter string `json:"createdAfter"`
	Resume       bool   `json:"resume"`
}

type processRequest struct {
	ForceIdentifyTags   bool `json:"forceIdentifyTags"`
	ForceCreateSummary  bool `json:"forceCreateSummary"`
	ForceSplitDocuments bool `json:"forceSplitDocuments"`
}

func (p processRequest) options() domain.ProcessingOptions {
	return domain.ProcessingOptions{
		ForceSplit:     p.ForceSplitDocuments,
		ForceSummarize: p.ForceCreateSummary,
		ForceTag:       p.ForceIdentifyTags,
	}
}

type backfillRequest struct {
	Limit int `json:"limit" validate:"gte=0"`
}

type acceptedResponse struct {
	JobID   string `json:"jobId,omitempty"`
	Success bool   `json:"success"`
}

type jobResponse struct {
	ID           string     `json:"jobId"`
	Status       string     `json:"status"`
	Cursor       string     `json:"cursor,omitempty"`
	CreatedAfter *time.Time `json:"createdAfter,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Processed    int        `json:"processed"`
	Skipped      int        `json:"skipped"`
	Failed       int        `json:"failed"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func newJobResponse(j *domain.ImportJob) jobResponse {
	return jobResponse{
		ID:           j.ID,
		Status:       string(j.Status),
		Cursor:       j.Cursor,
		CreatedAfter: j.CreatedAfter,
		Limit:        j.Limit,
		Processed:    j.Processed,
		Skipped:      j.Skipped,
		Failed:       j.Failed,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

type documentResponse struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	ExternalID string         `json:"externalId"`
	Source     string         `json:"source"`
	Summary    *string        `json:"summary"`
	Processed  bool           `json:"processed"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func newDocumentResponse(d *domain.Document) documentResponse {
	return documentResponse{
		ID:         d.ID,
		Name:       d.Name,
		ExternalID: d.ExternalID,
		Source:     d.Source.String(),
		Summary:    d.Summary,
		Processed:  d.Processed,
		Metadata:   d.Metadata,
		CreatedAt:  d.CreatedAt,
	}
}

type documentDetailsResponse struct {
	documentResponse
	Content    string   `json:"content"`
	ChunkCount int      `json:"chunkCount"`
	Embedded   int      `json:"embeddedChunks"`
	Tags       []string `json:"tags"`
	EndUsers   []string `json:"endUsers"`
}

// handleImport creates a job synchronously, so configuration problems are
// reported to the caller, and runs it in the background.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	tenant, _ := TenantFromContext(r.Context())

	var req importRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := domain.ImportRequest{
		AppID:  tenant.AppID,
		UserID: tenant.UserID,
		Limit:  req.Limit,
		Resume: req.Resume,
	}
	if req.CreatedAfter != "" {
		t, err := domain.ParseTime(req.CreatedAfter)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		start.CreatedAfter = &t
	}

	job, err := s.services.Importer.Start(r.Context(), start)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.runImport(job.ID)
	writeJSON(w, http.StatusAccepted, acceptedResponse{JobID: job.ID, Success: true})
}

func (s *Server) runImport(jobID string) {
	s.background("import "+jobID, func(ctx context.Context) error {
		result, err := s.services.Importer.Continue(ctx, jobID)
		if err != nil {
			return err
		}
		logger.Infow("import invocation finished", "job", jobID, "status", result.Status,
			"processed", result.Processed, "skipped", result.Skipped, "failed", result.Failed)
		return nil
	})
}

// tenantJob loads a job and hides jobs owned by other tenants.
func (s *Server) tenantJob(r *http.Request) (*domain.ImportJob, error) {
	tenant, _ := TenantFromContext(r.Context())
	job, err := s.services.Importer.Job(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		return nil, err
	}
	if job.AppID != tenant.AppID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.tenantJob(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(job))
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	job, err := s.tenantJob(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if job.Status.IsTerminal() {
		writeServiceError(w, domain.ErrJobFinished)
		return
	}

	s.runImport(job.ID)
	writeJSON(w, http.StatusAccepted, acceptedResponse{JobID: job.ID, Success: true})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	tenant, _ := TenantFromContext(r.Context())

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	onlyUnprocessed := r.URL.Query().Get("unprocessed") == "true"

	docs, err := s.services.Documents.List(r.Context(), tenant.AppID, onlyUnprocessed, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]documentResponse, len(docs))
	for i := range docs {
		out[i] = newDocumentResponse(&docs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	tenant, _ := TenantFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "documentID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	details, err := s.services.Documents.GetDetails(r.Context(), id)
	if err == nil && details.Document.AppID != tenant.AppID {
		err = domain.ErrNotFound
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := documentDetailsResponse{
		documentResponse: newDocumentResponse(&details.Document),
		Content:          details.Document.Content,
		ChunkCount:       details.ChunkCount,
		Embedded:         details.Embedded,
		Tags:             make([]string, len(details.Tags)),
		EndUsers:         make([]string, len(details.EndUsers)),
	}
	for i, t := range details.Tags {
		resp.Tags[i] = t.Name
	}
	for i, u := range details.EndUsers {
		resp.EndUsers[i] = u.Email
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	tenant, _ := TenantFromContext(r.Context())

	var req processRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := req.options()
	s.background("sweep "+tenant.AppID, func(ctx context.Context) error {
		_, err := s.services.Sweeper.Sweep(ctx, tenant.AppID, opts)
		return err
	})
	writeJSON(w, http.StatusAccepted, acceptedResponse{Success: true})
}

// handleProcess runs the processor synchronously on a document of the caller's tenant.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	tenant, _ := TenantFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "documentID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	var req processRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	details, err := s.services.Documents.GetDetails(r.Context(), id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeServiceError(w, err)
		return
	}
	if err != nil || details.Document.AppID != tenant.AppID {
		writeError(w, http.StatusNotFound, "Document not found or already processed")
		return
	}

	result, err := s.services.Processor.Process(r.Context(), id, req.options())
	switch {
	case errors.Is(err, domain.ErrNotFoundOrProcessed):
		writeError(w, http.StatusNotFound, "Document not found or already processed")
	case domain.IsStageFailure(err):
		writeError(w, http.StatusInternalServerError, "Processing failed")
	case err != nil:
		writeServiceError(w, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"split":     result.Split,
			"summarize": result.Summarize,
			"tag":       result.Tag,
			"processed": result.Processed,
		})
	}
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.background("embedding backfill", func(ctx context.Context) error {
		_, err := s.services.Backfiller.Backfill(ctx, req.Limit)
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			logger.Warn("Embedding backfill requested but no embedding provider is configured")
			return nil
		}
		return err
	})
	writeJSON(w, http.StatusAccepted, acceptedResponse{Success: true})
}
