package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
	"github.com/custodia-labs/threadline/internal/logger"
)

// Ensure Importer implements the interface.
var _ driving.ConversationImporter = (*Importer)(nil)

const tracerName = "github.com/custodia-labs/threadline/internal/core/services"

// itemOutcome is what happened to one conversation.
type itemOutcome int

const (
	itemStored itemOutcome = iota
	itemSkipped
	itemFailed
)

// Importer imports provider conversations as documents.
//
// Each invocation of Continue fetches at most PipelinePolicy.MaxPagesPerRun pages.
// The cursor is checkpointed after every page, so an invocation that stops early
// (page ceiling, cancellation, page-fetch failure) loses no more than the page in
// flight, and conversations already stored are skipped on the next pass.
type Importer struct {
	providers driven.ProviderFactory
	renderer  driven.ConversationRenderer
	docs      driven.DocumentStore
	users     driven.EndUserStore
	cursors   driven.ImportCursorStore
	jobs      driven.ImportJobStore
	queue     driven.JobQueue

	policy domain.PipelinePolicy
	pacer  Pacer
	tracer trace.Tracer
	now    func() time.Time
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithPolicy sets the rate and batching policy. Zero fields take defaults.
func WithPolicy(p domain.PipelinePolicy) ImporterOption {
	return func(i *Importer) {
		i.policy = p.WithDefaults()
	}
}

// WithPacer replaces the timer-based pacer.
func WithPacer(p Pacer) ImporterOption {
	return func(i *Importer) {
		i.pacer = p
	}
}

// WithJobQueue sets the queue continuation jobs are handed to when a run
// reaches the page ceiling. Without a queue paused jobs wait for an explicit
// Continue call.
func WithJobQueue(q driven.JobQueue) ImporterOption {
	return func(i *Importer) {
		i.queue = q
	}
}

// WithClock sets the time source for job timestamps.
func WithClock(now func() time.Time) ImporterOption {
	return func(i *Importer) {
		i.now = now
	}
}

// NewImporter creates an importer.
func NewImporter(
	providers driven.ProviderFactory,
	renderer driven.ConversationRenderer,
	docs driven.DocumentStore,
	users driven.EndUserStore,
	cursors driven.ImportCursorStore,
	jobs driven.ImportJobStore,
	opts ...ImporterOption,
) *Importer {
	i := &Importer{
		providers: providers,
		renderer:  renderer,
		docs:      docs,
		users:     users,
		cursors:   cursors,
		jobs:      jobs,
		policy:    domain.DefaultPipelinePolicy(),
		pacer:     SleepPacer{},
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Start validates the request and creates a pending job.
// A tenant without a usable provider credential gets *domain.ConfigurationError
// here rather than from a background run.
func (i *Importer) Start(ctx context.Context, req domain.ImportRequest) (*domain.ImportJob, error) {
	if req.AppID == "" || req.UserID == "" {
		return nil, fmt.Errorf("app and user are required: %w", domain.ErrInvalidInput)
	}
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative: %w", domain.ErrInvalidInput)
	}

	if _, err := i.providers.ForTenant(ctx, req.AppID); err != nil {
		return nil, err
	}

	var cursor string
	if req.Resume {
		saved, err := i.cursors.Get(ctx, req.AppID, req.UserID)
		switch {
		case err == nil:
			cursor = saved.Cursor
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("get import cursor: %w", err)
		}
	}

	now := i.now().UTC()
	job := &domain.ImportJob{
		ID:           uuid.NewString(),
		AppID:        req.AppID,
		UserID:       req.UserID,
		Cursor:       cursor,
		CreatedAfter: req.CreatedAfter,
		Limit:        req.Limit,
		Status:       domain.JobPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := i.jobs.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save import job: %w", err)
	}

	logger.Infow("import job created", "job", job.ID, "app", job.AppID, "resume_from", cursor, "limit", job.Limit)
	return job, nil
}

// Import creates a job and runs its first invocation.
func (i *Importer) Import(ctx context.Context, req domain.ImportRequest) (*domain.ImportResult, error) {
	job, err := i.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return i.Continue(ctx, job.ID)
}

// Job returns the current state of an import job.
func (i *Importer) Job(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	job, err := i.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return job, nil
}

// Continue runs one bounded invocation of a job from its checkpoint.
//
//nolint:gocognit // Page loop with explicit checkpoint transitions
func (i *Importer) Continue(ctx context.Context, jobID string) (*domain.ImportResult, error) {
	job, err := i.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("job %s is %s: %w", job.ID, job.Status, domain.ErrJobFinished)
	}

	result := &domain.ImportResult{JobID: job.ID}

	provider, err := i.providers.ForTenant(ctx, job.AppID)
	if err != nil {
		i.fail(job, result, err)
		return result, err
	}

	pools, err := newImportPools(i.policy)
	if err != nil {
		return nil, fmt.Errorf("create worker pools: %w", err)
	}
	defer pools.release()

	job.Status = domain.JobRunning
	if err := i.saveJob(ctx, job); err != nil {
		return nil, err
	}

	logger.Section("Import " + job.ID)

	for {
		if i.policy.MaxPagesPerRun > 0 && result.Pages >= i.policy.MaxPagesPerRun {
			i.pause(ctx, job, result)
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			i.suspend(job, result)
			return result, err
		}

		page, err := i.fetchPage(ctx, provider, job)
		if err != nil {
			if ctx.Err() != nil {
				i.suspend(job, result)
				return result, ctx.Err()
			}
			err = fmt.Errorf("list conversations: %w", err)
			i.fail(job, result, err)
			return result, err
		}
		result.Pages++

		if len(page.Items) == 0 {
			i.finish(job, result)
			return result, nil
		}

		stats, err := i.processPage(ctx, provider, pools, job, page)
		job.Processed += stats.stored
		job.Skipped += stats.skipped
		job.Failed += stats.failed
		result.Processed += stats.stored
		result.Skipped += stats.skipped
		result.Failed += stats.failed
		if err != nil {
			// Cancelled mid-page. The cursor still points at this page.
			i.suspend(job, result)
			return result, err
		}

		logger.Info("Page %d: %d stored, %d skipped, %d failed (total %d/%d)",
			result.Pages, stats.stored, stats.skipped, stats.failed, job.Examined(), page.TotalCount)

		job.Cursor = page.NextCursor
		if err := i.checkpoint(ctx, job); err != nil {
			i.fail(job, result, err)
			return result, err
		}

		if page.NextCursor == "" || job.LimitReached() {
			i.finish(job, result)
			return result, nil
		}
	}
}

// StoreConversation imports a single conversation outside any job.
func (i *Importer) StoreConversation(ctx context.Context, appID, userID, conversationID string) (bool, error) {
	if appID == "" || conversationID == "" {
		return false, fmt.Errorf("app and conversation are required: %w", domain.ErrInvalidInput)
	}

	provider, err := i.providers.ForTenant(ctx, appID)
	if err != nil {
		return false, err
	}

	pools, err := newImportPools(i.policy)
	if err != nil {
		return false, fmt.Errorf("create worker pools: %w", err)
	}
	defer pools.release()

	outcome, err := i.importOne(ctx, provider, pools, appID, userID, conversationID)
	if err != nil {
		return false, err
	}
	return outcome == itemStored, nil
}

func (i *Importer) fetchPage(
	ctx context.Context,
	provider driven.ConversationProvider,
	job *domain.ImportJob,
) (*domain.ConversationPage, error) {
	ctx, span := i.tracer.Start(ctx, "import.fetch_page", trace.WithAttributes(
		attribute.String("import.job_id", job.ID),
		attribute.String("import.cursor", job.Cursor),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, i.policy.CallTimeout)
	defer cancel()

	page, err := provider.ListConversations(callCtx, driven.ListConversationsRequest{
		Cursor:       job.Cursor,
		PageSize:     i.policy.PageSize,
		CreatedAfter: job.CreatedAfter,
	})
	if err != nil {
		err = i.callError(ctx, callCtx, err, "list conversations page")
		span.RecordError(err)
		span.SetStatus(codes.Error, "list conversations failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("import.page_items", len(page.Items)))
	return page, nil
}

// pageStats counts per-item outcomes of one page.
type pageStats struct {
	mu      sync.Mutex
	stored  int
	skipped int
	failed  int
}

func (s *pageStats) add(o itemOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch o {
	case itemStored:
		s.stored++
	case itemSkipped:
		s.skipped++
	case itemFailed:
		s.failed++
	}
}

// processPage imports the items of one page in bounded sub-batches. Per-item
// errors are logged and counted; only cancellation stops the page early.
func (i *Importer) processPage(
	ctx context.Context,
	provider driven.ConversationProvider,
	pools *importPools,
	job *domain.ImportJob,
	page *domain.ConversationPage,
) (*pageStats, error) {
	stats := &pageStats{}
	items := page.Items

	err := runInBatches(ctx, pools.items, i.pacer, len(items), i.policy.MaxConcurrency, i.policy.BatchDelay, func(idx int) {
		id := items[idx].ID
		outcome, err := i.importOne(ctx, provider, pools, job.AppID, job.UserID, id)
		if err != nil {
			logger.Warnw("conversation import failed", "job", job.ID, "conversation", id, "error", err)
		}
		stats.add(outcome)
	})
	return stats, err
}

// importOne stores one conversation. Already-imported conversations, including
// ones inserted concurrently by another run, are skipped.
func (i *Importer) importOne(
	ctx context.Context,
	provider driven.ConversationProvider,
	pools *importPools,
	appID, userID, conversationID string,
) (itemOutcome, error) {
	ctx, span := i.tracer.Start(ctx, "import.conversation", trace.WithAttributes(
		attribute.String("app.id", appID),
		attribute.String("conversation.id", conversationID),
	))
	defer span.End()

	outcome, err := i.storeOne(ctx, provider, pools, appID, userID, conversationID)
	span.SetAttributes(attribute.Int("import.outcome", int(outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "conversation import failed")
	}
	return outcome, err
}

func (i *Importer) storeOne(
	ctx context.Context,
	provider driven.ConversationProvider,
	pools *importPools,
	appID, userID, conversationID string,
) (itemOutcome, error) {
	_, err := i.docs.FindByExternalID(ctx, appID, domain.SourceIntercom, conversationID)
	switch {
	case err == nil:
		logger.Debug("Conversation %s already imported", conversationID)
		return itemSkipped, nil
	case !errors.Is(err, domain.ErrNotFound):
		return itemFailed, fmt.Errorf("check existing document: %w", err)
	}

	conv, err := i.fetchDetail(ctx, provider, conversationID)
	if err != nil {
		return itemFailed, err
	}

	doc := i.newDocument(appID, userID, conversationID, conv)
	if err := i.docs.CreateDocument(ctx, doc); err != nil {
		if domain.IsConflict(err) {
			logger.Debug("Conversation %s inserted concurrently", conversationID)
			return itemSkipped, nil
		}
		return itemFailed, fmt.Errorf("create document: %w", err)
	}

	i.linkParticipants(ctx, provider, pools, doc, conv.Participants)
	return itemStored, nil
}

// fetchDetail fetches a conversation under DetailTimeout.
func (i *Importer) fetchDetail(
	ctx context.Context,
	provider driven.ConversationProvider,
	conversationID string,
) (*domain.Conversation, error) {
	detailCtx, cancel := context.WithTimeout(ctx, i.policy.DetailTimeout)
	defer cancel()

	conv, err := provider.GetConversation(detailCtx, conversationID)
	if err != nil {
		if ctx.Err() == nil && errors.Is(detailCtx.Err(), context.DeadlineExceeded) {
			return nil, &domain.TimeoutError{
				Operation: "fetch conversation " + conversationID,
				After:     i.policy.DetailTimeout,
			}
		}
		return nil, fmt.Errorf("fetch conversation %s: %w", conversationID, err)
	}
	if conv == nil {
		return nil, fmt.Errorf("fetch conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	return conv, nil
}

func (i *Importer) newDocument(appID, userID, conversationID string, conv *domain.Conversation) *domain.Document {
	name := conv.Title
	if name == "" {
		name = "Intercom conversation " + conversationID
	}

	metadata := map[string]any{}
	if !conv.CreatedAt.IsZero() {
		metadata["created_at"] = conv.CreatedAt.Unix()
	}
	if !conv.UpdatedAt.IsZero() {
		metadata["updated_at"] = conv.UpdatedAt.Unix()
	}

	return &domain.Document{
		AppID:      appID,
		CreatedBy:  userID,
		Name:       name,
		Content:    i.renderer.Render(conv),
		Source:     domain.SourceIntercom,
		ExternalID: conversationID,
		Processed:  false,
		Metadata:   metadata,
		CreatedAt:  conv.CreatedAt,
	}
}

// linkParticipants resolves participants in paced sub-batches and links them to
// the document. Failures are logged; the document is kept either way.
func (i *Importer) linkParticipants(
	ctx context.Context,
	provider driven.ConversationProvider,
	pools *importPools,
	doc *domain.Document,
	refs []domain.ParticipantRef,
) {
	refs = uniqueRefs(refs)
	if len(refs) == 0 {
		return
	}

	err := runInBatches(ctx, pools.participants, i.pacer, len(refs), i.policy.ParticipantBatch, i.policy.ParticipantDelay,
		func(idx int) {
			if err := i.linkParticipant(ctx, provider, doc, refs[idx]); err != nil {
				logger.Warnw("participant skipped",
					"document", doc.ID, "participant", refs[idx].ID, "kind", refs[idx].Kind, "error", err)
			}
		})
	if err != nil {
		logger.Warnw("participant linking interrupted", "document", doc.ID, "error", err)
	}
}

func (i *Importer) linkParticipant(
	ctx context.Context,
	provider driven.ConversationProvider,
	doc *domain.Document,
	ref domain.ParticipantRef,
) error {
	callCtx, cancel := context.WithTimeout(ctx, i.policy.CallTimeout)
	p, err := provider.GetParticipant(callCtx, ref)
	cancel()
	if err != nil {
		return fmt.Errorf("resolve participant: %w", i.callError(ctx, callCtx, err, "get "+string(ref.Kind)+" "+ref.ID))
	}

	email := domain.NormaliseEmail(p.Email)
	if email == "" {
		return nil
	}

	first, last := domain.SplitName(p.Name)
	user, err := i.users.FindOrCreateEndUser(ctx, domain.EndUser{
		AppID:     doc.AppID,
		Email:     email,
		FirstName: first,
		LastName:  last,
		Type:      p.EndUserType(),
	})
	if err != nil {
		return fmt.Errorf("find or create end user: %w", err)
	}
	if err := i.users.LinkDocument(ctx, user.ID, doc.ID); err != nil {
		return fmt.Errorf("link end user: %w", err)
	}
	return nil
}

// callError reports a call that ran out of CallTimeout as a *domain.TimeoutError.
// Cancellation of the parent context is returned unchanged.
func (i *Importer) callError(ctx, callCtx context.Context, err error, operation string) error {
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &domain.TimeoutError{Operation: operation, After: i.policy.CallTimeout}
	}
	return err
}

func uniqueRefs(refs []domain.ParticipantRef) []domain.ParticipantRef {
	seen := make(map[domain.ParticipantRef]bool, len(refs))
	out := make([]domain.ParticipantRef, 0, len(refs))
	for _, ref := range refs {
		if ref.ID == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

// checkpoint persists the job and the tenant's resume cursor. The final page
// has no next cursor; the resume cursor then keeps pointing at the last page
// so a later resumed import picks up conversations created since.
func (i *Importer) checkpoint(ctx context.Context, job *domain.ImportJob) error {
	if err := i.saveJob(ctx, job); err != nil {
		return err
	}
	if job.Cursor == "" {
		return nil
	}
	err := i.cursors.Save(context.WithoutCancel(ctx), domain.ImportCursor{
		AppID:     job.AppID,
		UserID:    job.UserID,
		Cursor:    job.Cursor,
		Processed: job.Processed,
		UpdatedAt: i.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("save import cursor: %w", err)
	}
	return nil
}

// pause marks the job paused at the page ceiling and queues its continuation.
func (i *Importer) pause(ctx context.Context, job *domain.ImportJob, result *domain.ImportResult) {
	job.Status = domain.JobPaused
	i.settle(job, result)

	if i.queue == nil {
		logger.Info("Import %s paused after %d pages; continue it to proceed", job.ID, result.Pages)
		return
	}
	err := i.queue.Enqueue(context.WithoutCancel(ctx), driven.Job{Kind: driven.JobContinueImport, ImportJobID: job.ID})
	if err != nil {
		logger.Warnw("continuation not queued", "job", job.ID, "error", err)
		return
	}
	logger.Info("Import %s paused after %d pages; continuation queued", job.ID, result.Pages)
}

// suspend leaves a cancelled job paused at its last checkpoint.
func (i *Importer) suspend(job *domain.ImportJob, result *domain.ImportResult) {
	job.Status = domain.JobPaused
	i.settle(job, result)
	logger.Warn("Import %s interrupted; resumable from its last checkpoint", job.ID)
}

func (i *Importer) finish(job *domain.ImportJob, result *domain.ImportResult) {
	job.Status = domain.JobDone
	job.Cursor = ""
	i.settle(job, result)
	logger.Info("Import %s done: %d stored, %d skipped, %d failed",
		job.ID, job.Processed, job.Skipped, job.Failed)
}

func (i *Importer) fail(job *domain.ImportJob, result *domain.ImportResult, err error) {
	job.Status = domain.JobFailed
	job.Error = err.Error()
	i.settle(job, result)
	logger.Errorw("import failed", "job", job.ID, "app", job.AppID, "cursor", job.Cursor, "error", err)
}

// settle saves the job in its new state, even when the run's context is done.
func (i *Importer) settle(job *domain.ImportJob, result *domain.ImportResult) {
	result.Status = job.Status
	result.NextCursor = job.Cursor
	if err := i.saveJob(context.Background(), job); err != nil {
		logger.Errorw("import job state not saved", "job", job.ID, "status", job.Status, "error", err)
	}
}

func (i *Importer) saveJob(ctx context.Context, job *domain.ImportJob) error {
	job.UpdatedAt = i.now().UTC()
	if err := i.jobs.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("save import job: %w", err)
	}
	return nil
}

// importPools holds the worker pools of one invocation. Items and participants
// use separate pools so participant work submitted from an item worker can
// never wait on a pool its caller occupies.
type importPools struct {
	items        *ants.Pool
	participants *ants.Pool
}

func newImportPools(p domain.PipelinePolicy) (*importPools, error) {
	items, err := newPool(p.MaxConcurrency)
	if err != nil {
		return nil, err
	}
	participants, err := newPool(p.MaxConcurrency * p.ParticipantBatch)
	if err != nil {
		items.Release()
		return nil, err
	}
	return &importPools{items: items, participants: participants}, nil
}

func (p *importPools) release() {
	p.items.Release()
	p.participants.Release()
}
