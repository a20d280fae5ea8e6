package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// fakeProvider serves pages keyed by cursor and conversations keyed by ID.
type fakeProvider struct {
	mu sync.Mutex

	pages   map[string]*domain.ConversationPage
	pageErr map[string]error

	conversations map[string]*domain.Conversation
	detailErr     map[string]error
	// hang lists conversations whose detail fetch blocks until the context ends.
	hang map[string]bool

	// hangPage and hangParticipant do the same for page cursors and participant IDs.
	hangPage        map[string]bool
	hangParticipant map[string]bool

	participants   map[domain.ParticipantRef]*domain.Participant
	participantErr map[string]error

	listCalls        []driven.ListConversationsRequest
	detailCalls      map[string]int
	participantCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		pages:           make(map[string]*domain.ConversationPage),
		pageErr:         make(map[string]error),
		conversations:   make(map[string]*domain.Conversation),
		detailErr:       make(map[string]error),
		hang:            make(map[string]bool),
		hangPage:        make(map[string]bool),
		hangParticipant: make(map[string]bool),
		participants:    make(map[domain.ParticipantRef]*domain.Participant),
		participantErr:  make(map[string]error),
		detailCalls:     make(map[string]int),
	}
}

// addPages lays out conversations over consecutive pages with cursors c1, c2, ...
func (p *fakeProvider) addPages(pages ...[]string) {
	total := 0
	for _, ids := range pages {
		total += len(ids)
	}
	for n, ids := range pages {
		cursor := ""
		if n > 0 {
			cursor = fmt.Sprintf("c%d", n)
		}
		next := ""
		if n < len(pages)-1 {
			next = fmt.Sprintf("c%d", n+1)
		}
		page := &domain.ConversationPage{NextCursor: next, TotalCount: total}
		for _, id := range ids {
			page.Items = append(page.Items, domain.ConversationSummary{ID: id})
			if _, ok := p.conversations[id]; !ok {
				p.conversations[id] = testConversation(id)
			}
		}
		p.pages[cursor] = page
	}
}

func (p *fakeProvider) addContact(conversationID, contactID, name, email string) {
	ref := domain.ParticipantRef{ID: contactID, Kind: domain.ParticipantContact}
	conv := p.conversations[conversationID]
	conv.Participants = append(conv.Participants, ref)
	p.participants[ref] = &domain.Participant{ID: contactID, Kind: domain.ParticipantContact, Name: name, Email: email}
}

func (p *fakeProvider) ListConversations(
	ctx context.Context,
	req driven.ListConversationsRequest,
) (*domain.ConversationPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls = append(p.listCalls, req)
	if p.hangPage[req.Cursor] {
		p.mu.Unlock()
		<-ctx.Done()
		p.mu.Lock()
		return nil, ctx.Err()
	}
	if err := p.pageErr[req.Cursor]; err != nil {
		return nil, err
	}
	page, ok := p.pages[req.Cursor]
	if !ok {
		return &domain.ConversationPage{}, nil
	}
	cp := *page
	return &cp, nil
}

func (p *fakeProvider) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	p.mu.Lock()
	p.detailCalls[id]++
	hang := p.hang[id]
	err := p.detailErr[id]
	conv := p.conversations[id]
	p.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, &domain.ProviderError{StatusCode: 404, Message: "not found"}
	}
	return conv, nil
}

func (p *fakeProvider) GetParticipant(ctx context.Context, ref domain.ParticipantRef) (*domain.Participant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.participantCalls++
	if p.hangParticipant[ref.ID] {
		p.mu.Unlock()
		<-ctx.Done()
		p.mu.Lock()
		return nil, ctx.Err()
	}
	if err := p.participantErr[ref.ID]; err != nil {
		return nil, err
	}
	participant, ok := p.participants[ref]
	if !ok {
		return nil, &domain.ProviderError{StatusCode: 404, Message: "not found"}
	}
	return participant, nil
}

func (p *fakeProvider) listCursors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	cursors := make([]string, len(p.listCalls))
	for i, call := range p.listCalls {
		cursors[i] = call.Cursor
	}
	return cursors
}

func testConversation(id string) *domain.Conversation {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Conversation{
		ID:        id,
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
		Messages: []domain.Message{{
			ID:        id + "-m1",
			Author:    domain.Author{Name: "Ann", Type: "user"},
			CreatedAt: created,
			Body:      "<p>Hello from " + id + "</p>",
		}},
	}
}

// fakeFactory hands out a single provider, or err for every tenant.
type fakeFactory struct {
	provider *fakeProvider
	err      error
	calls    int
	mu       sync.Mutex
}

func (f *fakeFactory) ForTenant(_ context.Context, _ string) (driven.ConversationProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.provider, nil
}

// recordingPacer returns immediately and records requested delays.
type recordingPacer struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (p *recordingPacer) Wait(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.waits = append(p.waits, d)
	p.mu.Unlock()
	return ctx.Err()
}

func (p *recordingPacer) count(d time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, w := range p.waits {
		if w == d {
			n++
		}
	}
	return n
}

// mockSummarizer returns a fixed summary or error.
type mockSummarizer struct {
	mu      sync.Mutex
	summary string
	err     error
	calls   int
	inputs  []driven.SummaryInput
}

func (m *mockSummarizer) Summarize(_ context.Context, in driven.SummaryInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.inputs = append(m.inputs, in)
	return m.summary, m.err
}

// mockClassifier returns a fixed suggestion or error.
type mockClassifier struct {
	mu         sync.Mutex
	suggestion *driven.TagSuggestion
	err        error
	calls      int
	inputs     []driven.TagInput
}

func (m *mockClassifier) Classify(_ context.Context, in driven.TagInput) (*driven.TagSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	if m.suggestion == nil {
		return &driven.TagSuggestion{}, nil
	}
	s := *m.suggestion
	return &s, nil
}

// mockSplitter returns one chunk per non-empty line, or err.
type mockSplitter struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *mockSplitter) Name() string { return "mock-splitter" }

func (m *mockSplitter) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var chunks []domain.Chunk
	start := 0
	for i := 0; i <= len(doc.Content); i++ {
		if i == len(doc.Content) || doc.Content[i] == '\n' {
			if i > start {
				chunks = append(chunks, domain.Chunk{
					DocumentID: doc.ID,
					AppID:      doc.AppID,
					Content:    doc.Content[start:i],
					Position:   len(chunks),
				})
			}
			start = i + 1
		}
	}
	return chunks, nil
}

// mockEmbeddingService returns a vector of the text length for each input.
type mockEmbeddingService struct {
	mu       sync.Mutex
	err      error
	batches  [][]string
	dims     int
	shortBy1 bool
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, texts)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, []float32{float32(len(text)), 1})
	}
	if m.shortBy1 && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims == 0 {
		return 2
	}
	return m.dims
}

func (m *mockEmbeddingService) ModelName() string            { return "mock-embedding" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockProcessor marks documents processed unless listed in fail.
type mockProcessor struct {
	mu    sync.Mutex
	docs  driven.DocumentStore
	fail  map[int64]bool
	calls []int64
	opts  []domain.ProcessingOptions
}

func (m *mockProcessor) Process(
	ctx context.Context,
	id int64,
	opts domain.ProcessingOptions,
) (*domain.ProcessResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, id)
	m.opts = append(m.opts, opts)
	fail := m.fail[id]
	m.mu.Unlock()

	if fail {
		return nil, &domain.StageFailure{Stage: domain.StageSummarize, DocumentID: id, Err: errors.New("model down")}
	}
	if m.docs != nil {
		if err := m.docs.SetProcessed(ctx, id, true); err != nil {
			return nil, err
		}
	}
	return &domain.ProcessResult{DocumentID: id, Processed: true}, nil
}

func (m *mockProcessor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockImporter records continuation requests.
type mockImporter struct {
	mu        sync.Mutex
	continued []string
	err       error
}

func (m *mockImporter) Start(context.Context, domain.ImportRequest) (*domain.ImportJob, error) {
	return nil, errors.New("not used")
}

func (m *mockImporter) Import(context.Context, domain.ImportRequest) (*domain.ImportResult, error) {
	return nil, errors.New("not used")
}

func (m *mockImporter) Continue(_ context.Context, jobID string) (*domain.ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.continued = append(m.continued, jobID)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ImportResult{JobID: jobID, Status: domain.JobDone}, nil
}

func (m *mockImporter) StoreConversation(context.Context, string, string, string) (bool, error) {
	return false, errors.New("not used")
}

func (m *mockImporter) Job(context.Context, string) (*domain.ImportJob, error) {
	return nil, domain.ErrNotFound
}

// mockSweeper records swept tenants.
type mockSweeper struct {
	mu   sync.Mutex
	apps []string
	err  error
}

func (m *mockSweeper) Sweep(_ context.Context, appID string, _ domain.ProcessingOptions) (*domain.SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps = append(m.apps, appID)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.SweepResult{Eligible: 1, Processed: 1}, nil
}

func (m *mockSweeper) swept() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.apps...)
}

// mockBackfiller returns a fixed result.
type mockBackfiller struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockBackfiller) Backfill(context.Context, int) (*domain.BackfillResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &domain.BackfillResult{Embedded: 3}, nil
}

func (m *mockBackfiller) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
