package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/threadline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/postprocessors/chunker"
)

type processorFixture struct {
	docs       *memory.DocumentStore
	tags       *memory.TagStore
	splitter   *mockSplitter
	summarizer *mockSummarizer
	classifier *mockClassifier
	processor  *Processor
}

func newProcessorFixture() *processorFixture {
	f := &processorFixture{
		docs:       memory.NewDocumentStore(),
		tags:       memory.NewTagStore(),
		splitter:   &mockSplitter{},
		summarizer: &mockSummarizer{summary: "Customer asked about refunds."},
		classifier: &mockClassifier{suggestion: &driven.TagSuggestion{New: []string{"Refund"}}},
	}
	f.processor = NewProcessor(f.docs, f.docs, f.tags, f.splitter, f.summarizer, f.classifier)
	return f
}

func (f *processorFixture) addDocument(t *testing.T, externalID, content string) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		AppID:      "app-1",
		Name:       "Conversation " + externalID,
		Content:    content,
		Source:     domain.SourceIntercom,
		ExternalID: externalID,
	}
	require.NoError(t, f.docs.CreateDocument(context.Background(), doc))
	return doc
}

func (f *processorFixture) reload(t *testing.T, id int64) *domain.Document {
	t.Helper()
	doc, err := f.docs.GetDocument(context.Background(), id)
	require.NoError(t, err)
	return doc
}

func TestProcessor_RunsEveryStage(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()
	_, err := f.tags.FindOrCreateTag(ctx, "app-1", "Billing")
	require.NoError(t, err)
	f.classifier.suggestion = &driven.TagSuggestion{Existing: []string{"billing"}, New: []string{"Feature request"}}
	doc := f.addDocument(t, "1", "first line\nsecond line")

	result, err := f.processor.Process(ctx, doc.ID, domain.ProcessingOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRan, result.Split)
	assert.Equal(t, domain.OutcomeRan, result.Summarize)
	assert.Equal(t, domain.OutcomeRan, result.Tag)
	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, 2, result.Tags)
	assert.True(t, result.Processed)

	stored := f.reload(t, doc.ID)
	assert.True(t, stored.Processed)
	assert.Equal(t, "Customer asked about refunds.", stored.SummaryText())

	chunks, err := f.docs.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first line", chunks[0].Content)

	docTags, err := f.tags.GetDocumentTags(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, docTags, 2)
	vocabulary, err := f.tags.ListTags(ctx, "app-1")
	require.NoError(t, err)
	assert.Len(t, vocabulary, 2, "existing tag reused, new tag created")

	require.Len(t, f.classifier.inputs, 1)
	assert.Equal(t, []string{"Billing"}, f.classifier.inputs[0].ExistingTags)
	assert.Equal(t, "Customer asked about refunds.", f.classifier.inputs[0].Summary)
	assert.Equal(t, "intercom", f.summarizer.inputs[0].SourceType)
}

func TestProcessor_ProcessedDocumentIsNotSelected(t *testing.T) {
	f := newProcessorFixture()
	doc := f.addDocument(t, "1", "text")
	ctx := context.Background()

	_, err := f.processor.Process(ctx, doc.ID, domain.ProcessingOptions{})
	require.NoError(t, err)

	_, err = f.processor.Process(ctx, doc.ID, domain.ProcessingOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFoundOrProcessed)

	_, err = f.processor.Process(ctx, 999, domain.ProcessingOptions{ForceTag: true})
	assert.ErrorIs(t, err, domain.ErrNotFoundOrProcessed)
}

func TestProcessor_SkipsExistingWork(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()
	doc := f.addDocument(t, "1", "a\nb\nc")
	require.NoError(t, f.docs.ReplaceChunks(ctx, doc.ID, []domain.Chunk{{AppID: "app-1", Content: "abc"}}))
	require.NoError(t, f.docs.UpdateSummary(ctx, doc.ID, "earlier summary"))
	tag, err := f.tags.FindOrCreateTag(ctx, "app-1", "Question")
	require.NoError(t, err)
	require.NoError(t, f.tags.AddDocumentTags(ctx, doc.ID, []int64{tag.ID}))

	result, err := f.processor.Process(ctx, doc.ID, domain.ProcessingOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, result.Split)
	assert.Equal(t, domain.OutcomeSkipped, result.Summarize)
	assert.Equal(t, domain.OutcomeSkipped, result.Tag)
	assert.True(t, result.Processed)
	assert.Zero(t, f.splitter.calls)
	assert.Zero(t, f.summarizer.calls)
	assert.Zero(t, f.classifier.calls)
	assert.Equal(t, "earlier summary", f.reload(t, doc.ID).SummaryText())
}

func TestProcessor_ForceFlagsRerunOnlyTheirStage(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()
	doc := f.addDocument(t, "1", "one\ntwo\nthree")

	_, err := f.processor.Process(ctx, doc.ID, domain.ProcessingOptions{})
	require.NoError(t, err)
	before, err := f.docs.GetChunks(ctx, doc.ID)
	require.NoError(t, err)

	result, err := f.processor.Process(ctx, doc.ID, domain.ProcessingOptions{ForceSplit: true})

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRan, result.Split)
	assert.Equal(t, domain.OutcomeSkipped, result.Summarize)
	assert.Equal(t, domain.OutcomeSkipped, result.Tag)

	after, err := f.docs.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	assert.NotEqual(t, before[0].ID, after[0].ID, "chunks replaced")
	assert.Equal(t, 1, f.summarizer.calls)

	f.summarizer.summary = "Second take."
	result, err = f.processor.Process(ctx, doc.ID, domain.ProcessingOptions{ForceSummarize: true, ForceTag: true})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, result.Split)
	assert.Equal(t, domain.OutcomeRan, result.Summarize)
	assert.Equal(t, domain.OutcomeRan, result.Tag)
	assert.Equal(t, "Second take.", f.reload(t, doc.ID).SummaryText())
}

func TestProcessor_StageFailureRevertsProcessed(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()
	doc := f.addDocument(t, "1", "body")
	require.NoError(t, f.docs.SetProcessed(ctx, doc.ID, true))
	f.summarizer.err = errors.New("upstream 500")

	result, err := f.processor.Process(ctx, doc.ID, domain.ProcessingOptions{ForceSummarize: true})

	require.Error(t, err)
	assert.Equal(t, "processing failed", err.Error())
	assert.ErrorIs(t, err, domain.ErrProcessingFailed)
	var failure *domain.StageFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, domain.StageSummarize, failure.Stage)
	assert.Contains(t, failure.Cause(), "upstream 500")

	assert.False(t, result.Processed)
	assert.False(t, f.reload(t, doc.ID).Processed)
	assert.Zero(t, f.classifier.calls, "later stages do not run")
}

func TestProcessor_SplitFailure(t *testing.T) {
	f := newProcessorFixture()
	f.splitter.err = errors.New("bad input")
	doc := f.addDocument(t, "1", "body")

	_, err := f.processor.Process(context.Background(), doc.ID, domain.ProcessingOptions{})

	var failure *domain.StageFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, domain.StageSplit, failure.Stage)
	assert.Zero(t, f.summarizer.calls)
}

func TestProcessor_UnusableModelOutputIsNoOp(t *testing.T) {
	f := newProcessorFixture()
	f.summarizer.err = &domain.ModelOutputError{Stage: domain.StageSummarize, Reason: "empty summary"}
	f.classifier.err = &domain.ModelOutputError{Stage: domain.StageTag, Reason: "not json"}
	doc := f.addDocument(t, "1", "body")

	result, err := f.processor.Process(context.Background(), doc.ID, domain.ProcessingOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoOutput, result.Summarize)
	assert.Equal(t, domain.OutcomeNoOutput, result.Tag)
	assert.True(t, result.Processed)

	stored := f.reload(t, doc.ID)
	assert.Nil(t, stored.Summary)
	assert.Equal(t, "", f.classifier.inputs[0].Summary)
}

func TestProcessor_WithoutLanguageModel(t *testing.T) {
	docs := memory.NewDocumentStore()
	processor := NewProcessor(docs, docs, memory.NewTagStore(), &mockSplitter{}, nil, nil)
	doc := &domain.Document{AppID: "app-1", Source: domain.SourceIntercom, ExternalID: "1", Content: "x"}
	require.NoError(t, docs.CreateDocument(context.Background(), doc))

	_, err := processor.Process(context.Background(), doc.ID, domain.ProcessingOptions{})

	assert.ErrorIs(t, err, domain.ErrProcessingFailed)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestProcessor_TagSlugsStayUnique(t *testing.T) {
	f := newProcessorFixture()
	f.classifier.suggestion = &driven.TagSuggestion{New: []string{"Bug Report", "bug report", " BUG  report "}}
	var ids []int64
	for _, ext := range []string{"1", "2", "3", "4"} {
		ids = append(ids, f.addDocument(t, ext, "content "+ext).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.processor.Process(context.Background(), id, domain.ProcessingOptions{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	vocabulary, err := f.tags.ListTags(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, vocabulary, 1)
	assert.Equal(t, "bug-report", vocabulary[0].Slug)
	for _, id := range ids {
		docTags, err := f.tags.GetDocumentTags(context.Background(), id)
		require.NoError(t, err)
		assert.Len(t, docTags, 1)
	}
}

func TestProcessor_WithChunker(t *testing.T) {
	docs := memory.NewDocumentStore()
	processor := NewProcessor(docs, docs, memory.NewTagStore(), chunker.New(),
		&mockSummarizer{summary: "s"}, &mockClassifier{})
	content := make([]byte, 2500)
	for i := range content {
		content[i] = 'a' + byte(i%26)
	}
	doc := &domain.Document{AppID: "app-1", Source: domain.SourceIntercom, ExternalID: "big", Content: string(content)}
	require.NoError(t, docs.CreateDocument(context.Background(), doc))

	result, err := processor.Process(context.Background(), doc.ID, domain.ProcessingOptions{})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, domain.OutcomeNoOutput, result.Tag)
}
