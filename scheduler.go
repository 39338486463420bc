package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const monitorJobTag = "monitor"

// cronLogger adapts zerolog to gocron's logger interface.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Debug(msg string, args ...any) {
	l.log.Debug().Fields(args).Msg("[Scheduler] " + msg)
}

func (l cronLogger) Info(msg string, args ...any) {
	l.log.Info().Fields(args).Msg("[Scheduler] " + msg)
}

func (l cronLogger) Warn(msg string, args ...any) {
	l.log.Warn().Fields(args).Msg("[Scheduler] " + msg)
}

func (l cronLogger) Error(msg string, args ...any) {
	l.log.Error().Fields(args).Msg("[Scheduler] " + msg)
}

// Scheduler keeps one repeating job per enabled monitor. It only remembers
// which job belongs to which monitor id; monitor state lives in the registry.
type Scheduler struct {
	mu       sync.Mutex
	cron     gocron.Scheduler
	jobs     map[string]uuid.UUID
	stopped  bool
	registry *Registry
	checker  *Checker
	ctx      context.Context
	cancel   context.CancelFunc
	log      zerolog.Logger
}

// NewScheduler creates a stopped scheduler and registers it as the
// registry's reconciler.
func NewScheduler(registry *Registry, checker *Checker, log zerolog.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler(
		gocron.WithLogger(cronLogger{log: log}),
		gocron.WithStopTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     cron,
		jobs:     make(map[string]uuid.UUID),
		registry: registry,
		checker:  checker,
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}
	registry.SetReconciler(s)
	return s, nil
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Jobs())).Msg("[Scheduler] Started")
}

// Reconcile brings the monitor's job in line with its configuration: an
// enabled monitor is re-armed with one immediate check followed by its
// interval, a disabled or deleted one loses its job.
func (s *Scheduler) Reconcile(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.removeLocked(id)

	m, err := s.registry.Get(id, 0)
	if err != nil || !m.Enabled {
		s.log.Debug().Str("monitor_id", id).Msg("[Scheduler] Monitor not scheduled")
		return
	}

	interval := time.Duration(clampInterval(m.IntervalMs)) * time.Millisecond
	job, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.tick, id),
		gocron.WithName(id),
		gocron.WithTags(monitorJobTag),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		s.log.Error().Err(err).Str("monitor_id", id).Msg("[Scheduler] Failed to schedule monitor")
		return
	}
	s.jobs[id] = job.ID()
	s.log.Debug().Str("monitor_id", id).Dur("interval", interval).Msg("[Scheduler] Monitor scheduled")
}

// ReconcileAll reconciles every registered monitor.
func (s *Scheduler) ReconcileAll() {
	for _, id := range s.registry.IDs() {
		s.Reconcile(id)
	}
}

// CancelAll removes every monitor job. Later reconciliations are ignored.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cron.RemoveByTags(monitorJobTag)
	count := len(s.jobs)
	s.jobs = make(map[string]uuid.UUID)
	s.log.Info().Int("jobs", count).Msg("[Scheduler] Cancelled all monitor jobs")
}

// Every adds a repeating job outside the per-monitor set.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context)) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { fn(s.ctx) }),
		gocron.WithName(name),
		gocron.WithTags(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Daily adds a job running every day at the given local time.
func (s *Scheduler) Daily(name string, hour, minute uint, fn func(ctx context.Context)) error {
	_, err := s.cron.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		gocron.NewTask(func() { fn(s.ctx) }),
		gocron.WithName(name),
		gocron.WithTags(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Remove drops the non-monitor jobs tagged with name.
func (s *Scheduler) Remove(name string) {
	s.cron.RemoveByTags(name)
}

// Scheduled reports whether the monitor currently has a job.
func (s *Scheduler) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

// Shutdown stops the underlying scheduler and cancels running checks.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.log.Info().Msg("[Scheduler] Stopped")
	return nil
}

func (s *Scheduler) removeLocked(id string) {
	jobID, ok := s.jobs[id]
	if !ok {
		return
	}
	delete(s.jobs, id)
	if err := s.cron.RemoveJob(jobID); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		s.log.Warn().Err(err).Str("monitor_id", id).Msg("[Scheduler] Failed to remove job")
	}
}

func (s *Scheduler) tick(id string) {
	_, err := s.checker.Check(s.ctx, id, false)
	switch {
	case err == nil:
	case errors.Is(err, ErrCheckInFlight):
		s.log.Debug().Str("monitor_id", id).Msg("[Scheduler] Check still running, tick dropped")
	case IsType(err, NotFoundError):
		s.log.Debug().Str("monitor_id", id).Msg("[Scheduler] Monitor gone, tick dropped")
	case s.ctx.Err() != nil:
	default:
		s.log.Warn().Err(err).Str("monitor_id", id).Msg("[Scheduler] Check failed")
	}
}
