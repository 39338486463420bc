package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultSweepInterval = 30 * time.Second
	sweeperJobName       = "sweeper"
)

// Sweeper force-checks every enabled monitor whose last result was down,
// independent of the monitors' own cadence.
type Sweeper struct {
	registry *Registry
	checker  *Checker
	interval time.Duration
	wg       sync.WaitGroup
	log      zerolog.Logger
}

func NewSweeper(registry *Registry, checker *Checker, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{registry: registry, checker: checker, interval: interval, log: log}
}

// Sweep launches a forced check for each down monitor without waiting for
// them and returns the ids it dispatched. The single-flight flag is taken
// before the check is launched, so every returned id has a check running;
// monitors with a check already running are skipped.
func (s *Sweeper) Sweep(ctx context.Context) []string {
	down := s.registry.DownEnabled()
	dispatched := make([]string, 0, len(down))
	for _, id := range down {
		entry, err := s.registry.acquire(id)
		if err != nil {
			if errors.Is(err, ErrCheckInFlight) {
				s.log.Debug().Str("monitor_id", id).Msg("[Sweeper] Check in flight, skipping")
			}
			continue
		}
		dispatched = append(dispatched, id)
		s.wg.Add(1)
		go func(id string, entry *monitorEntry) {
			defer s.wg.Done()
			if _, err := s.checker.run(ctx, entry, true); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Str("monitor_id", id).Msg("[Sweeper] Forced check failed")
			}
		}(id, entry)
	}

	if len(dispatched) > 0 {
		s.log.Info().Int("count", len(dispatched)).Msg("[Sweeper] Force-checking down monitors")
	}
	return dispatched
}

// Start registers the periodic sweep on the scheduler.
func (s *Sweeper) Start(scheduler *Scheduler) error {
	if err := scheduler.Every(sweeperJobName, s.interval, func(ctx context.Context) { s.Sweep(ctx) }); err != nil {
		return err
	}
	s.log.Info().Dur("interval", s.interval).Msg("[Sweeper] Started")
	return nil
}

// Stop removes the periodic sweep. Checks already launched keep running.
func (s *Sweeper) Stop(scheduler *Scheduler) {
	scheduler.Remove(sweeperJobName)
	s.log.Info().Msg("[Sweeper] Stopped")
}

// Wait blocks until every check launched by Sweep has returned.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}
