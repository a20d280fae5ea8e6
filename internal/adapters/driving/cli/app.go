package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/threadline/internal/adapters/driven/ai"
	"github.com/custodia-labs/threadline/internal/adapters/driven/config/file"
	queuememory "github.com/custodia-labs/threadline/internal/adapters/driven/queue/memory"
	queueredis "github.com/custodia-labs/threadline/internal/adapters/driven/queue/redis"
	"github.com/custodia-labs/threadline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/threadline/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/threadline/internal/config"
	"github.com/custodia-labs/threadline/internal/connectors/intercom"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
	"github.com/custodia-labs/threadline/internal/core/services"
	"github.com/custodia-labs/threadline/internal/enrichment/summarizer"
	"github.com/custodia-labs/threadline/internal/enrichment/tagger"
	"github.com/custodia-labs/threadline/internal/logger"
	"github.com/custodia-labs/threadline/internal/normalisers/conversation"
	"github.com/custodia-labs/threadline/internal/postprocessors/chunker"
)

// promptDir is the prompt directory inside the data directory.
const promptDir = "prompts"

// App holds the wired services for one process.
type App struct {
	Config *config.Config

	Importer   driving.ConversationImporter
	Processor  driving.DocumentProcessor
	Sweeper    driving.Sweeper
	Backfiller driving.EmbeddingBackfiller
	Documents  driving.DocumentService
	Settings   driving.SettingsService

	// Queue, Dispatcher and Scheduler are only set for host commands.
	Queue      driven.JobQueue
	Dispatcher *services.Dispatcher
	Scheduler  *services.Scheduler

	// Watchers reload file-backed configuration until their context is done.
	Watchers []func(ctx context.Context) error

	closers []func() error
}

// Close releases every resource opened by NewApp, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

type stores struct {
	docs    driven.DocumentStore
	chunks  driven.ChunkStore
	tags    driven.TagStore
	users   driven.EndUserStore
	cursors driven.ImportCursorStore
	jobs    driven.ImportJobStore
}

// NewApp wires the services from cfg. host is true for commands that run the
// dispatcher in-process; other commands only get a job queue when it is
// shared with a host through Redis.
func NewApp(ctx context.Context, cfg *config.Config, host bool) (app *App, err error) {
	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	st, err := app.openStores(cfg)
	if err != nil {
		return nil, err
	}

	tenants, err := file.NewSettingsStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open tenant settings: %w", err)
	}
	prompts, err := file.NewPromptStore(filepath.Join(cfg.DataDir, promptDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open prompts: %w", err)
	}
	app.Watchers = append(app.Watchers, tenants.Watch, prompts.Watch)

	queue, err := app.openQueue(ctx, cfg, host)
	if err != nil {
		return nil, err
	}

	providers := intercom.NewFactory(tenants,
		intercom.WithBaseURL(cfg.Intercom.BaseURL),
		intercom.WithRequestsPerSecond(cfg.Intercom.RequestsPerSecond, cfg.Intercom.Burst),
	)

	aiServices := ai.Initialise(cfg.LLMSettings(), cfg.EmbeddingSettings(), false)
	for _, w := range aiServices.Warnings {
		logger.Warn("%s", w)
	}
	app.closers = append(app.closers, func() error {
		aiServices.Close()
		return nil
	})

	var (
		summary driven.Summarizer
		tags    driven.TagClassifier
	)
	if aiServices.LLMService != nil {
		s := summarizer.New(aiServices.LLMService)
		s.SetPromptStore(prompts)
		t := tagger.New(aiServices.LLMService)
		t.SetPromptStore(prompts)
		summary, tags = s, t
	}

	policy := cfg.Policy()
	opts := []services.ImporterOption{services.WithPolicy(policy)}
	if queue != nil {
		opts = append(opts, services.WithJobQueue(queue))
	}

	importer := services.NewImporter(providers, conversation.New(),
		st.docs, st.users, st.cursors, st.jobs, opts...)
	processor := services.NewProcessor(st.docs, st.chunks, st.tags, chunker.New(), summary, tags)
	sweeper := services.NewSweeper(st.docs, processor, policy, nil)
	backfiller := services.NewEmbedder(st.chunks, aiServices.EmbeddingService, policy)

	app.Importer = importer
	app.Processor = processor
	app.Sweeper = sweeper
	app.Backfiller = backfiller
	app.Documents = services.NewDocumentService(st.docs, st.chunks, st.tags, st.users)
	app.Settings = services.NewSettingsService(tenants, providers)

	if host {
		app.Dispatcher = services.NewDispatcher(queue, importer, processor, cfg.Queue.Workers)
		app.Scheduler = services.NewScheduler(services.SchedulerConfig{
			SweepInterval:    cfg.Scheduler.SweepInterval,
			BackfillInterval: cfg.Scheduler.BackfillInterval,
		}, tenants, sweeper, backfiller)
	}

	return app, nil
}

func (a *App) openStores(cfg *config.Config) (*stores, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn("Using in-memory storage; documents are lost on exit")
		docs := memory.NewDocumentStore()
		imports := memory.NewImportStore()
		return &stores{
			docs:    docs,
			chunks:  docs,
			tags:    memory.NewTagStore(),
			users:   memory.NewEndUserStore(),
			cursors: imports,
			jobs:    imports,
		}, nil
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	logger.Debug("Opened database %s", store.Path())

	return &stores{
		docs:    store.DocumentStore(),
		chunks:  store.ChunkStore(),
		tags:    store.TagStore(),
		users:   store.EndUserStore(),
		cursors: store.ImportCursorStore(),
		jobs:    store.ImportJobStore(),
	}, nil
}

func (a *App) openQueue(ctx context.Context, cfg *config.Config, host bool) (driven.JobQueue, error) {
	var queue driven.JobQueue
	switch {
	case cfg.Queue.Driver == config.DriverRedis:
		q, err := queueredis.NewQueue(ctx, queueredis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
			Key:      cfg.Queue.RedisKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect job queue: %w", err)
		}
		queue = q
	case host:
		queue = queuememory.NewQueue()
	default:
		return nil, nil
	}

	a.Queue = queue
	a.closers = append(a.closers, queue.Close)
	return queue, nil
}
