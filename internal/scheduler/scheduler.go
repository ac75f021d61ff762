// Package scheduler fires recurring scrape and cleanup jobs, persisting job
// state so schedules survive restarts.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tidewire/newsharvest/internal/metrics"
	"github.com/tidewire/newsharvest/internal/orchestrator"
	"github.com/tidewire/newsharvest/internal/pipeline"
)

// maxLoopIdle bounds how long the loop sleeps between wakeups even when no
// job is due, so persisted clock drift cannot stall firing indefinitely.
const maxLoopIdle = time.Minute

// cleanupJobID is the fixed identity of the dedup retention job.
const cleanupJobID = "cleanup"

// Runner executes the work a fired job stands for.
type Runner interface {
	RunCycle(ctx context.Context, adapter orchestrator.SourceAdapter) (pipeline.CycleResult, error)
	RunCleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// Config controls Scheduler behavior.
type Config struct {
	DefaultTrigger string
	MisfireGrace   time.Duration
	CleanupTrigger string
	Retention      time.Duration
}

// Scheduler owns the job table: one scrape job per source plus one cleanup
// job. A job never runs concurrently with itself; missed fires inside the
// misfire grace window coalesce into a single run.
type Scheduler struct {
	store    pipeline.JobStore
	runner   Runner
	adapters map[string]orchestrator.SourceAdapter
	clock    pipeline.Clock
	cfg      Config
	logger   *zap.Logger

	mu       sync.Mutex
	jobs     map[string]pipeline.Job
	triggers map[string]Trigger
	running  map[string]bool
	pending  map[string]bool

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler over the given adapters. Triggers are parsed per
// source at construction so a bad spec fails fast.
func New(
	store pipeline.JobStore,
	runner Runner,
	adapters []orchestrator.SourceAdapter,
	clock pipeline.Clock,
	cfg Config,
	logger *zap.Logger,
) (*Scheduler, error) {
	if cfg.MisfireGrace <= 0 {
		cfg.MisfireGrace = 5 * time.Minute
	}
	if cfg.CleanupTrigger == "" {
		cfg.CleanupTrigger = "@every 24h"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 90 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		store:    store,
		runner:   runner,
		adapters: make(map[string]orchestrator.SourceAdapter, len(adapters)),
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		jobs:     make(map[string]pipeline.Job),
		triggers: make(map[string]Trigger),
		running:  make(map[string]bool),
		pending:  make(map[string]bool),
		wake:     make(chan struct{}, 1),
	}

	for _, adapter := range adapters {
		spec := adapter.Config().TriggerSpec
		if spec == "" {
			spec = cfg.DefaultTrigger
		}
		trigger, err := ParseTrigger(spec)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", adapter.Name(), err)
		}
		id := scrapeJobID(adapter.Name())
		s.adapters[id] = adapter
		s.triggers[id] = trigger
		s.jobs[id] = pipeline.Job{
			ID:           id,
			Source:       adapter.Name(),
			Kind:         pipeline.JobKindScrape,
			TriggerSpec:  spec,
			MisfireGrace: int(cfg.MisfireGrace.Seconds()),
			Coalesce:     true,
			MaxInstances: 1,
			State:        pipeline.JobStateScheduled,
		}
	}

	cleanupTrigger, err := ParseTrigger(cfg.CleanupTrigger)
	if err != nil {
		return nil, fmt.Errorf("cleanup: %w", err)
	}
	s.triggers[cleanupJobID] = cleanupTrigger
	s.jobs[cleanupJobID] = pipeline.Job{
		ID:           cleanupJobID,
		Kind:         pipeline.JobKindCleanup,
		TriggerSpec:  cfg.CleanupTrigger,
		MisfireGrace: int(cfg.MisfireGrace.Seconds()),
		Coalesce:     true,
		MaxInstances: 1,
		State:        pipeline.JobStateScheduled,
	}

	return s, nil
}

func scrapeJobID(source string) string { return "scrape:" + source }

// Start recovers persisted job state, seeds the schedule and launches the
// firing loop. It fails when the job store is unreachable.
func (s *Scheduler) Start(ctx context.Context) error {
	health := s.store.Health(ctx)
	if !health.ConnectionValid {
		return fmt.Errorf("job store unavailable: %s", health.Error)
	}

	if err := s.recover(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(loopCtx)
	}()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Stop blocks new fires and waits for in-flight job runs to complete and
// persist their final state.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// recover merges persisted job rows into the static definitions: pause flags
// and run history survive restarts, while trigger specs always come from
// current configuration. A missed fire inside the grace window keeps its past
// NextRunAt so the loop coalesces it into one immediate run.
func (s *Scheduler) recover(ctx context.Context) error {
	persisted, err := s.store.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	byID := make(map[string]pipeline.Job, len(persisted))
	for _, job := range persisted {
		byID[job.ID] = job
	}

	now := s.clock.Now()
	s.mu.Lock()
	for id, job := range s.jobs {
		if prev, ok := byID[id]; ok {
			job.Paused = prev.Paused
			job.LastResult = prev.LastResult
			job.LastError = prev.LastError
			if prev.TriggerSpec == job.TriggerSpec && !prev.NextRunAt.IsZero() {
				job.NextRunAt = prev.NextRunAt
			}
		}
		if job.NextRunAt.IsZero() {
			job.NextRunAt = s.triggers[id].Next(now)
		}
		if overdue := now.Sub(job.NextRunAt); overdue > s.graceFor(job) {
			// Too stale to coalesce: record the miss and realign.
			job.State = pipeline.JobStateMisfired
			job.NextRunAt = s.triggers[id].Next(now)
			metrics.ObserveJob("misfired")
		} else {
			job.State = pipeline.JobStateScheduled
		}
		job.UpdatedAt = now
		s.jobs[id] = job
	}
	jobs := s.snapshotLocked()
	s.mu.Unlock()

	for _, job := range jobs {
		if err := s.store.UpsertJob(ctx, job); err != nil {
			return fmt.Errorf("upsert job %s: %w", job.ID, err)
		}
	}
	return nil
}

func (s *Scheduler) graceFor(job pipeline.Job) time.Duration {
	if job.MisfireGrace > 0 {
		return time.Duration(job.MisfireGrace) * time.Second
	}
	return s.cfg.MisfireGrace
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		wait := s.nextWait()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
		s.fireDue(ctx)
	}
}

// nextWait returns the sleep until the earliest runnable job is due.
func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	wait := maxLoopIdle
	for id, job := range s.jobs {
		if job.Paused || s.running[id] {
			continue
		}
		until := job.NextRunAt.Sub(now)
		if until < wait {
			wait = until
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

func (s *Scheduler) fireDue(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	var due []pipeline.Job
	for id, job := range s.jobs {
		if job.Paused || s.running[id] || job.NextRunAt.After(now) {
			continue
		}
		due = append(due, job)
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].NextRunAt.Before(due[j].NextRunAt) })
	for _, job := range due {
		s.fire(ctx, job.ID)
	}
}

// fire transitions one due job to running and launches its work. The caller
// already established that the job is due.
func (s *Scheduler) fire(ctx context.Context, id string) {
	now := s.clock.Now()

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Paused || s.running[id] {
		s.mu.Unlock()
		return
	}
	if overdue := now.Sub(job.NextRunAt); overdue > s.graceFor(job) {
		job.State = pipeline.JobStateMisfired
		job.NextRunAt = s.triggers[id].Next(now)
		job.UpdatedAt = now
		s.jobs[id] = job
		s.mu.Unlock()
		metrics.ObserveJob("misfired")
		s.logger.Warn("job misfired",
			zap.String("job_id", id),
			zap.Duration("overdue", overdue),
		)
		s.persist(ctx, job)
		return
	}
	job.State = pipeline.JobStateRunning
	job.UpdatedAt = now
	s.jobs[id] = job
	s.running[id] = true
	s.mu.Unlock()

	s.persist(ctx, job)

	// Detach the run from the loop context: Stop cancels the loop to block
	// new fires, then waits for in-flight runs to finish and persist their
	// final state on a live context.
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(runCtx, id)
	}()
}

func (s *Scheduler) run(ctx context.Context, id string) {
	s.mu.Lock()
	job := s.jobs[id]
	s.mu.Unlock()

	var (
		result  *pipeline.CycleResult
		runErr  error
		started = s.clock.Now()
	)
	switch job.Kind {
	case pipeline.JobKindScrape:
		adapter := s.adapters[id]
		cycle, err := s.runner.RunCycle(ctx, adapter)
		result, runErr = &cycle, err
	case pipeline.JobKindCleanup:
		_, runErr = s.runner.RunCleanup(ctx, s.cfg.Retention)
	default:
		runErr = fmt.Errorf("unknown job kind %q", job.Kind)
	}

	now := s.clock.Now()
	s.mu.Lock()
	job = s.jobs[id]
	if runErr != nil {
		job.State = pipeline.JobStateFailed
		job.LastError = runErr.Error()
	} else {
		job.State = pipeline.JobStateSucceeded
		job.LastError = ""
	}
	if result != nil {
		job.LastResult = result
	}
	if s.pending[id] {
		// A trigger arrived while this run was in flight; honor it now.
		delete(s.pending, id)
		job.NextRunAt = now
	} else {
		job.NextRunAt = s.triggers[id].Next(now)
	}
	job.UpdatedAt = now
	s.jobs[id] = job
	delete(s.running, id)
	s.mu.Unlock()

	if runErr != nil {
		metrics.ObserveJob("failed")
		s.logger.Error("job failed",
			zap.String("job_id", id),
			zap.Duration("duration", now.Sub(started)),
			zap.Error(runErr),
		)
	} else {
		metrics.ObserveJob("succeeded")
		s.logger.Info("job succeeded",
			zap.String("job_id", id),
			zap.Duration("duration", now.Sub(started)),
			zap.Time("next_run_at", job.NextRunAt),
		)
	}

	s.persist(ctx, job)
	s.notify()
}

// persist writes job state through to the store. Store errors are logged,
// not fatal; the in-memory schedule keeps running.
func (s *Scheduler) persist(ctx context.Context, job pipeline.Job) {
	if err := s.store.UpdateJob(ctx, job); err != nil {
		s.logger.Error("job persist failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// TriggerNow schedules an immediate run of the source's scrape job. A paused
// job is rejected. The max-instances rule still applies: a job already
// running is granted one follow-up run as soon as the current one completes.
func (s *Scheduler) TriggerNow(source string) (pipeline.Job, error) {
	id := scrapeJobID(source)

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return pipeline.Job{}, fmt.Errorf("unknown source %q", source)
	}
	if job.Paused {
		s.mu.Unlock()
		return pipeline.Job{}, fmt.Errorf("job %s: %w", id, pipeline.ErrJobPaused)
	}
	if s.running[id] {
		s.pending[id] = true
		s.mu.Unlock()
		return job, nil
	}
	job.NextRunAt = s.clock.Now()
	job.UpdatedAt = job.NextRunAt
	s.jobs[id] = job
	s.mu.Unlock()

	s.notify()
	return job, nil
}

// Pause stops future fires of a job. A run already in flight finishes.
func (s *Scheduler) Pause(id string) (pipeline.Job, error) {
	return s.setPaused(id, true)
}

// Resume reinstates a paused job, realigning its next fire to the trigger.
func (s *Scheduler) Resume(id string) (pipeline.Job, error) {
	return s.setPaused(id, false)
}

func (s *Scheduler) setPaused(id string, paused bool) (pipeline.Job, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return pipeline.Job{}, fmt.Errorf("unknown job %q", id)
	}
	now := s.clock.Now()
	job.Paused = paused
	if !paused {
		job.NextRunAt = s.triggers[id].Next(now)
		job.State = pipeline.JobStateScheduled
	}
	job.UpdatedAt = now
	s.jobs[id] = job
	s.mu.Unlock()

	s.persist(context.Background(), job)
	s.notify()
	return job, nil
}

// Job returns a snapshot of one job.
func (s *Scheduler) Job(id string) (pipeline.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return pipeline.Job{}, fmt.Errorf("unknown job %q", id)
	}
	return job, nil
}

// Jobs returns a snapshot of all jobs sorted by ID.
func (s *Scheduler) Jobs() []pipeline.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Scheduler) snapshotLocked() []pipeline.Job {
	jobs := make([]pipeline.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// Health reports the backing job store's health.
func (s *Scheduler) Health(ctx context.Context) pipeline.HealthReport {
	return s.store.Health(ctx)
}
