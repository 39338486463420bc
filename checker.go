package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// MonitorPublisher receives the monitor state after every completed check.
type MonitorPublisher interface {
	MonitorChanged(summary MonitorSummary)
}

// Checker runs one check for one monitor: it takes the single-flight flag,
// probes the target, records the outcome and reports state changes.
type Checker struct {
	registry   *Registry
	prober     *Prober
	dispatcher *Dispatcher
	saver      SaveRequester
	publisher  MonitorPublisher
	log        zerolog.Logger
}

// NewChecker wires a checker. saver and publisher may be nil.
func NewChecker(registry *Registry, prober *Prober, dispatcher *Dispatcher, saver SaveRequester, publisher MonitorPublisher, log zerolog.Logger) *Checker {
	return &Checker{
		registry:   registry,
		prober:     prober,
		dispatcher: dispatcher,
		saver:      saver,
		publisher:  publisher,
		log:        log,
	}
}

// Check probes the monitor with the given id and records the terminal attempt.
// It returns ErrCheckInFlight without probing when another check for the same
// monitor is running.
func (c *Checker) Check(ctx context.Context, id string, forced bool) (HistoryPoint, error) {
	entry, err := c.registry.acquire(id)
	if err != nil {
		return HistoryPoint{}, err
	}
	return c.run(ctx, entry, forced)
}

// run performs a check whose single-flight flag the caller already holds
// and releases it when done.
func (c *Checker) run(ctx context.Context, entry *monitorEntry, forced bool) (HistoryPoint, error) {
	defer entry.release()

	target := entry.target()
	id := target.ID
	outcome := c.prober.Probe(ctx, target, forced)
	if err := ctx.Err(); err != nil {
		// Shutting down; a cancelled probe says nothing about the target.
		return HistoryPoint{}, fmt.Errorf("check %s aborted: %w", id, err)
	}

	m, event := entry.apply(outcome)

	ev := c.log.Debug()
	if !outcome.Point.Up {
		ev = c.log.Info()
	}
	ev.Str("monitor_id", id).Str("url", target.URL).
		Bool("up", outcome.Point.Up).
		Int("status", outcome.Point.Status).
		Int64("latency_ms", outcome.Point.LatencyMs).
		Int("attempt", outcome.Point.Attempt).
		Bool("forced", forced).
		Int("consecutive_failures", m.ConsecutiveFailures).
		Msg("[Checker] Check completed")

	if event != nil && c.dispatcher != nil {
		c.dispatcher.Dispatch(ctx, *event)
	}
	if c.saver != nil {
		c.saver.RequestSave()
	}
	if c.publisher != nil {
		c.publisher.MonitorChanged(entry.summary())
	}
	return outcome.Point, nil
}

func (e *monitorEntry) target() ProbeTarget {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ProbeTarget{ID: e.monitor.ID, URL: e.monitor.URL, IntervalMs: e.monitor.IntervalMs}
}

// apply records a probe outcome on the monitor and returns the updated copy
// plus an alert event when the up/down state changed. A never-checked
// monitor counts as not up.
func (e *monitorEntry) apply(outcome ProbeOutcome) (Monitor, *AlertEvent) {
	p := outcome.Point

	e.mu.Lock()
	defer e.mu.Unlock()

	wasUp := e.monitor.IsUp()

	e.ledger.Append(p)
	e.monitor.LastStatus = p.Status
	e.monitor.LastLatency = p.LatencyMs
	e.monitor.LastChecked = p.Timestamp
	e.monitor.LastError = p.Error
	if p.Up {
		e.monitor.ConsecutiveFailures = 0
	} else {
		e.monitor.ConsecutiveFailures++
	}
	if outcome.TransportFailure {
		e.monitor.RetryCount++
	}

	m := e.monitor
	if wasUp == p.Up {
		return m, nil
	}

	return m, &AlertEvent{
		MonitorID:           m.ID,
		Name:                m.DisplayName(),
		URL:                 m.URL,
		Timestamp:           p.Timestamp,
		WasUp:               wasUp,
		NowUp:               p.Up,
		Status:              p.Status,
		LatencyMs:           p.LatencyMs,
		Error:               p.Error,
		Forced:              p.Forced,
		ConsecutiveFailures: m.ConsecutiveFailures,
	}
}
