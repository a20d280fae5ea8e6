package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
	"github.com/custodia-labs/threadline/internal/logger"
)

// Scheduled task IDs.
const (
	TaskSweep    = "sweep"
	TaskBackfill = "embedding-backfill"
)

// SchedulerConfig sets how often the maintenance tasks run. A zero interval
// disables the task.
type SchedulerConfig struct {
	SweepInterval    time.Duration
	BackfillInterval time.Duration

	// Tick is how often due tasks are checked. Defaults to one minute.
	Tick time.Duration
}

// TaskState is the observable state of a scheduled task.
type TaskState struct {
	ID          string
	Interval    time.Duration
	NextRun     time.Time
	LastRun     time.Time
	LastSuccess time.Time
	LastError   string
	// Items is the number of documents or chunks handled by the last run.
	Items int
}

type scheduledTask struct {
	state   TaskState
	running bool
	run     func(ctx context.Context) (int, error)
}

// Scheduler runs the ensure-processed sweep for every configured tenant and
// the embedding backfill on fixed intervals.
type Scheduler struct {
	config     SchedulerConfig
	apps       driven.SettingsStore
	sweeper    driving.Sweeper
	backfiller driving.EmbeddingBackfiller
	now        func() time.Time

	mu      sync.Mutex
	tasks   []*scheduledTask
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. backfiller may be nil.
func NewScheduler(
	config SchedulerConfig,
	apps driven.SettingsStore,
	sweeper driving.Sweeper,
	backfiller driving.EmbeddingBackfiller,
) *Scheduler {
	if config.Tick <= 0 {
		config.Tick = time.Minute
	}
	s := &Scheduler{
		config:     config,
		apps:       apps,
		sweeper:    sweeper,
		backfiller: backfiller,
		now:        time.Now,
	}
	s.initialiseTasks()
	return s
}

func (s *Scheduler) initialiseTasks() {
	now := s.now()
	if s.config.SweepInterval > 0 && s.sweeper != nil {
		s.tasks = append(s.tasks, &scheduledTask{
			state: TaskState{ID: TaskSweep, Interval: s.config.SweepInterval, NextRun: now},
			run:   s.runSweep,
		})
	}
	if s.config.BackfillInterval > 0 && s.backfiller != nil {
		s.tasks = append(s.tasks, &scheduledTask{
			state: TaskState{ID: TaskBackfill, Interval: s.config.BackfillInterval, NextRun: now},
			run:   s.runBackfill,
		})
	}
}

// Start runs the scheduler loop. It blocks until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if len(s.tasks) == 0 {
		logger.Debug("Scheduler has no enabled tasks")
	}

	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// Stop shuts the loop down and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Tasks returns a snapshot of every scheduled task.
func (s *Scheduler) Tasks() []TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskState, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.state
	}
	return out
}

func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, task := range s.tasks {
		if task.running || now.Before(task.state.NextRun) {
			continue
		}
		task.running = true
		s.runTask(ctx, task)
	}
}

// runTask executes a task in the background. Callers hold s.mu.
func (s *Scheduler) runTask(ctx context.Context, task *scheduledTask) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		started := s.now()
		items, err := task.run(ctx)
		ended := s.now()

		s.mu.Lock()
		defer s.mu.Unlock()
		task.running = false
		task.state.LastRun = started
		task.state.NextRun = ended.Add(task.state.Interval)
		task.state.Items = items
		if err != nil {
			task.state.LastError = err.Error()
			logger.Warnw("scheduled task failed", "task", task.state.ID, "error", err)
			return
		}
		task.state.LastError = ""
		task.state.LastSuccess = ended
	}()
}

// runSweep sweeps every tenant with provider settings. A failing tenant does
// not stop the others.
func (s *Scheduler) runSweep(ctx context.Context) (int, error) {
	apps, err := s.apps.ListApps(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	var errs []error
	for _, appID := range apps {
		result, err := s.sweeper.Sweep(ctx, appID, domain.ProcessingOptions{})
		if result != nil {
			processed += result.Processed
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return processed, errors.Join(errs...)
}

func (s *Scheduler) runBackfill(ctx context.Context) (int, error) {
	result, err := s.backfiller.Backfill(ctx, 0)
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return 0, nil
	}
	if result == nil {
		return 0, err
	}
	return result.Embedded, err
}
