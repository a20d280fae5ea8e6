package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	queuememory "github.com/custodia-labs/threadline/internal/adapters/driven/queue/memory"
	"github.com/custodia-labs/threadline/internal/config"
	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
	"github.com/custodia-labs/threadline/internal/core/services"
)

type mockImporter struct {
	mu        sync.Mutex
	requests  []domain.ImportRequest
	results   []*domain.ImportResult
	continued []string
	jobs      map[string]*domain.ImportJob
	err       error
}

func (m *mockImporter) next() *domain.ImportResult {
	r := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	return r
}

func (m *mockImporter) Start(_ context.Context, req domain.ImportRequest) (*domain.ImportJob, error) {
	return &domain.ImportJob{ID: "job-1", AppID: req.AppID, Status: domain.JobPending}, m.err
}

func (m *mockImporter) Import(_ context.Context, req domain.ImportRequest) (*domain.ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.next(), nil
}

func (m *mockImporter) Continue(_ context.Context, jobID string) (*domain.ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.continued = append(m.continued, jobID)
	if m.err != nil {
		return nil, m.err
	}
	return m.next(), nil
}

func (m *mockImporter) StoreConversation(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func (m *mockImporter) Job(_ context.Context, jobID string) (*domain.ImportJob, error) {
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

type mockProcessor struct {
	result *domain.ProcessResult
	err    error
	id     int64
	opts   domain.ProcessingOptions
}

func (m *mockProcessor) Process(_ context.Context, id int64, opts domain.ProcessingOptions) (*domain.ProcessResult, error) {
	m.id, m.opts = id, opts
	return m.result, m.err
}

type mockSweeper struct {
	result *domain.SweepResult
	app    string
	opts   domain.ProcessingOptions
}

func (m *mockSweeper) Sweep(_ context.Context, appID string, opts domain.ProcessingOptions) (*domain.SweepResult, error) {
	m.app, m.opts = appID, opts
	return m.result, nil
}

type mockBackfiller struct {
	result *domain.BackfillResult
	err    error
	limit  int
}

func (m *mockBackfiller) Backfill(_ context.Context, limit int) (*domain.BackfillResult, error) {
	m.limit = limit
	return m.result, m.err
}

type mockDocuments struct {
	docs    []domain.Document
	details map[int64]*driving.DocumentDetails

	app         string
	unprocessed bool
	limit       int
}

func (m *mockDocuments) List(_ context.Context, appID string, onlyUnprocessed bool, limit int) ([]domain.Document, error) {
	m.app, m.unprocessed, m.limit = appID, onlyUnprocessed, limit
	return m.docs, nil
}

func (m *mockDocuments) GetDetails(_ context.Context, id int64) (*driving.DocumentDetails, error) {
	d, ok := m.details[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

type mockSettings struct {
	apps      map[string]*domain.ProviderSettings
	verifyErr error
	savedKey  string
}

func (m *mockSettings) Get(_ context.Context, appID string) (*domain.ProviderSettings, error) {
	s, ok := m.apps[appID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	masked := *s
	masked.APIKey = services.MaskSecret(s.APIKey)
	return &masked, nil
}

func (m *mockSettings) List(ctx context.Context) ([]domain.ProviderSettings, error) {
	var out []domain.ProviderSettings
	for _, id := range []string{"app-1", "app-2"} {
		if s, err := m.Get(ctx, id); err == nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockSettings) SetAPIKey(_ context.Context, appID, apiKey string) error {
	m.savedKey = apiKey
	m.apps[appID] = &domain.ProviderSettings{AppID: appID, APIKey: apiKey, Enabled: true}
	return nil
}

func (m *mockSettings) SetEnabled(_ context.Context, appID string, enabled bool) error {
	s, ok := m.apps[appID]
	if !ok {
		return domain.ErrNotFound
	}
	s.Enabled = enabled
	return nil
}

func (m *mockSettings) Verify(_ context.Context, appID string) error {
	if _, ok := m.apps[appID]; !ok {
		return &domain.ConfigurationError{AppID: appID}
	}
	return m.verifyErr
}

// testServices are the fakes handed to the commands by the test bootstrap.
type testServices struct {
	importer   *mockImporter
	processor  *mockProcessor
	sweeper    *mockSweeper
	backfiller *mockBackfiller
	documents  *mockDocuments
	settings   *mockSettings

	// queued gives one-shot commands a shared queue, as with Redis.
	queued   bool
	watchers []func(context.Context) error

	host bool
	cfg  *config.Config
}

// setupTestServices replaces bootstrap with one returning fakes.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	ts := &testServices{
		importer:   &mockImporter{jobs: map[string]*domain.ImportJob{}},
		processor:  &mockProcessor{},
		sweeper:    &mockSweeper{result: &domain.SweepResult{}},
		backfiller: &mockBackfiller{result: &domain.BackfillResult{}},
		documents:  &mockDocuments{details: map[int64]*driving.DocumentDetails{}},
		settings:   &mockSettings{apps: map[string]*domain.ProviderSettings{}},
	}

	original := bootstrap
	bootstrap = func(_ context.Context, cfg *config.Config, host bool) (*App, error) {
		ts.host, ts.cfg = host, cfg
		app := &App{
			Config:     cfg,
			Importer:   ts.importer,
			Processor:  ts.processor,
			Sweeper:    ts.sweeper,
			Backfiller: ts.backfiller,
			Documents:  ts.documents,
			Settings:   ts.settings,
			Watchers:   ts.watchers,
		}
		if ts.queued || host {
			app.Queue = queuememory.NewQueue()
		}
		if host {
			app.Dispatcher = services.NewDispatcher(app.Queue, ts.importer, ts.processor, 1)
		}
		return app, nil
	}

	t.Cleanup(func() {
		bootstrap = original
		runCleanups()
		useApp(&App{})
	})
	return ts
}

// execute runs the root command with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer resetCommands(rootCmd)

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetCommands restores flag defaults and contexts so commands can run again.
func resetCommands(cmd *cobra.Command) {
	cmd.SetArgs(nil)
	cmd.SetContext(nil) //nolint:staticcheck // nil lets cobra pass the parent context down on the next run
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetCommands(c)
	}
}
