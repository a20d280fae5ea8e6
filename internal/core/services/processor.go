package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
	"github.com/custodia-labs/threadline/internal/logger"
)

// Ensure Processor implements the interface.
var _ driving.DocumentProcessor = (*Processor)(nil)

// Processor runs split, summarize and tag on one document and marks it
// processed. Each stage skips work that already exists unless forced, so a
// document left unprocessed by a failure can be retried safely.
type Processor struct {
	docs       driven.DocumentStore
	chunks     driven.ChunkStore
	tags       driven.TagStore
	splitter   driven.PostProcessor
	summarizer driven.Summarizer
	classifier driven.TagClassifier
	tracer     trace.Tracer
}

// NewProcessor creates a document processor.
func NewProcessor(
	docs driven.DocumentStore,
	chunks driven.ChunkStore,
	tags driven.TagStore,
	splitter driven.PostProcessor,
	summarizer driven.Summarizer,
	classifier driven.TagClassifier,
) *Processor {
	return &Processor{
		docs:       docs,
		chunks:     chunks,
		tags:       tags,
		splitter:   splitter,
		summarizer: summarizer,
		classifier: classifier,
		tracer:     otel.Tracer(tracerName),
	}
}

// Process runs the enrichment stages in order. Any stage error leaves the
// document unprocessed and is returned as a *domain.StageFailure.
func (p *Processor) Process(
	ctx context.Context,
	documentID int64,
	opts domain.ProcessingOptions,
) (*domain.ProcessResult, error) {
	ctx, span := p.tracer.Start(ctx, "process.document", trace.WithAttributes(
		attribute.Int64("document.id", documentID),
		attribute.Bool("process.force_split", opts.ForceSplit),
		attribute.Bool("process.force_summarize", opts.ForceSummarize),
		attribute.Bool("process.force_tag", opts.ForceTag),
	))
	defer span.End()

	doc, err := p.selectDocument(ctx, documentID, opts)
	if err != nil {
		return nil, err
	}

	result := &domain.ProcessResult{DocumentID: doc.ID}
	stages := []struct {
		stage domain.Stage
		run   func(context.Context, *domain.Document, domain.ProcessingOptions, *domain.ProcessResult) error
	}{
		{domain.StageSplit, p.split},
		{domain.StageSummarize, p.summarize},
		{domain.StageTag, p.tag},
	}

	for _, s := range stages {
		stageCtx, stageSpan := p.tracer.Start(ctx, "process."+string(s.stage))
		err := s.run(stageCtx, doc, opts, result)
		if err != nil {
			stageSpan.RecordError(err)
			stageSpan.SetStatus(codes.Error, string(s.stage)+" failed")
		}
		stageSpan.End()

		if err != nil {
			failure := &domain.StageFailure{Stage: s.stage, DocumentID: doc.ID, Err: err}
			p.revert(ctx, doc.ID)
			span.SetStatus(codes.Error, "processing failed")
			logger.Errorw("document processing failed", "document", doc.ID, "stage", s.stage, "cause", failure.Cause())
			return result, failure
		}
	}

	if err := p.docs.SetProcessed(ctx, doc.ID, true); err != nil {
		failure := &domain.StageFailure{Stage: domain.StageTag, DocumentID: doc.ID, Err: fmt.Errorf("mark processed: %w", err)}
		logger.Errorw("document processing failed", "document", doc.ID, "cause", failure.Cause())
		return result, failure
	}
	result.Processed = true

	logger.Debug("Document %d processed: split=%s summarize=%s tag=%s",
		doc.ID, result.Split, result.Summarize, result.Tag)
	return result, nil
}

// selectDocument loads the target. Without force flags only unprocessed
// documents qualify.
func (p *Processor) selectDocument(ctx context.Context, id int64, opts domain.ProcessingOptions) (*domain.Document, error) {
	var (
		doc *domain.Document
		err error
	)
	if opts.Any() {
		doc, err = p.docs.GetDocument(ctx, id)
	} else {
		doc, err = p.docs.GetUnprocessedDocument(ctx, id)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFoundOrProcessed
	}
	if err != nil {
		return nil, fmt.Errorf("load document %d: %w", id, err)
	}
	return doc, nil
}

func (p *Processor) split(
	ctx context.Context,
	doc *domain.Document,
	opts domain.ProcessingOptions,
	result *domain.ProcessResult,
) error {
	existing, err := p.chunks.CountChunks(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	if existing > 0 && !opts.ForceSplit {
		result.Split = domain.OutcomeSkipped
		return nil
	}

	chunks, err := p.splitter.Process(ctx, doc, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", p.splitter.Name(), err)
	}
	if err := p.chunks.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}

	result.Split = domain.OutcomeRan
	result.Chunks = len(chunks)
	return nil
}

func (p *Processor) summarize(
	ctx context.Context,
	doc *domain.Document,
	opts domain.ProcessingOptions,
	result *domain.ProcessResult,
) error {
	if doc.HasSummary() && !opts.ForceSummarize {
		result.Summarize = domain.OutcomeSkipped
		return nil
	}
	if p.summarizer == nil {
		return domain.ErrLLMUnavailable
	}

	summary, err := p.summarizer.Summarize(ctx, driven.SummaryInput{
		SourceType: doc.Source.String(),
		Content:    doc.Content,
	})
	if domain.IsModelOutputError(err) {
		logger.Warnw("summary not produced", "document", doc.ID, "error", err)
		result.Summarize = domain.OutcomeNoOutput
		return nil
	}
	if err != nil {
		return err
	}

	if err := p.docs.UpdateSummary(ctx, doc.ID, summary); err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	doc.Summary = &summary
	result.Summarize = domain.OutcomeRan
	return nil
}

func (p *Processor) tag(
	ctx context.Context,
	doc *domain.Document,
	opts domain.ProcessingOptions,
	result *domain.ProcessResult,
) error {
	current, err := p.tags.GetDocumentTags(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("get document tags: %w", err)
	}
	if len(current) > 0 && !opts.ForceTag {
		result.Tag = domain.OutcomeSkipped
		return nil
	}
	if p.classifier == nil {
		return domain.ErrLLMUnavailable
	}

	vocabulary, err := p.tags.ListTags(ctx, doc.AppID)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	names := make([]string, len(vocabulary))
	for i, t := range vocabulary {
		names[i] = t.Name
	}

	suggestion, err := p.classifier.Classify(ctx, driven.TagInput{
		SourceType:   doc.Source.String(),
		Summary:      doc.SummaryText(),
		Content:      doc.Content,
		ExistingTags: names,
	})
	if domain.IsModelOutputError(err) {
		logger.Warnw("tags not produced", "document", doc.ID, "error", err)
		result.Tag = domain.OutcomeNoOutput
		return nil
	}
	if err != nil {
		return err
	}

	ids, err := p.resolveTags(ctx, doc.AppID, suggestion)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		result.Tag = domain.OutcomeNoOutput
		return nil
	}
	if err := p.tags.AddDocumentTags(ctx, doc.ID, ids); err != nil {
		return fmt.Errorf("add document tags: %w", err)
	}

	result.Tag = domain.OutcomeRan
	result.Tags = len(ids)
	return nil
}

// resolveTags finds or creates every suggested tag by slug and returns the
// distinct IDs.
func (p *Processor) resolveTags(ctx context.Context, appID string, s *driven.TagSuggestion) ([]int64, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, name := range append(append([]string{}, s.Existing...), s.New...) {
		if domain.Slugify(name) == "" {
			continue
		}
		t, err := p.tags.FindOrCreateTag(ctx, appID, name)
		if err != nil {
			return nil, fmt.Errorf("find or create tag %q: %w", name, err)
		}
		if !seen[t.ID] {
			seen[t.ID] = true
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

// revert leaves the document eligible for the next unforced run.
func (p *Processor) revert(ctx context.Context, id int64) {
	if err := p.docs.SetProcessed(context.WithoutCancel(ctx), id, false); err != nil {
		logger.Errorw("document not reverted to unprocessed", "document", id, "error", err)
	}
}
