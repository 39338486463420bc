package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AlertEvent describes an up/down state change of a monitor.
type AlertEvent struct {
	MonitorID           string    `json:"monitorId"`
	Name                string    `json:"name"`
	URL                 string    `json:"url"`
	Timestamp           time.Time `json:"timestamp"`
	WasUp               bool      `json:"wasUp"`
	NowUp               bool      `json:"nowUp"`
	Status              int       `json:"status"`
	LatencyMs           int64     `json:"latency"`
	Error               string    `json:"error,omitempty"`
	Forced              bool      `json:"forced"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

// Kind is "recovered" for a down to up change and "down" otherwise.
func (e AlertEvent) Kind() string {
	if e.NowUp {
		return "recovered"
	}
	return "down"
}

// Subject is a one-line description usable as a mail subject.
func (e AlertEvent) Subject() string {
	if e.NowUp {
		return fmt.Sprintf("[upwatch] %s is UP", e.Name)
	}
	return fmt.Sprintf("[upwatch] %s is DOWN", e.Name)
}

// Describe renders the event details as plain text.
func (e AlertEvent) Describe() string {
	detail := fmt.Sprintf("status %d", e.Status)
	if e.Error != "" {
		detail = e.Error
	}
	return fmt.Sprintf("%s (%s) went %s at %s: %s, latency %dms",
		e.Name, e.URL, e.Kind(), e.Timestamp.Format(time.RFC3339), detail, e.LatencyMs)
}

// AlertSink receives alert events.
type AlertSink interface {
	Name() string
	Notify(ctx context.Context, event AlertEvent) error
}

// Dispatcher fans alert events out to its sinks in registration order.
// A failing or panicking sink is logged and does not affect the others.
type Dispatcher struct {
	mu    sync.RWMutex
	sinks []AlertSink
	log   zerolog.Logger
}

func NewDispatcher(log zerolog.Logger, sinks ...AlertSink) *Dispatcher {
	return &Dispatcher{sinks: sinks, log: log}
}

// Register appends a sink.
func (d *Dispatcher) Register(sink AlertSink) {
	d.mu.Lock()
	d.sinks = append(d.sinks, sink)
	d.mu.Unlock()
}

// Sinks returns the names of the registered sinks in order.
func (d *Dispatcher) Sinks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Dispatch delivers event to every sink synchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, event AlertEvent) {
	d.mu.RLock()
	sinks := make([]AlertSink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, sink := range sinks {
		if err := d.notify(ctx, sink, event); err != nil {
			d.log.Error().Err(err).Str("sink", sink.Name()).Str("monitor_id", event.MonitorID).
				Msg("[Alerts] Sink failed")
		}
	}
}

func (d *Dispatcher) notify(ctx context.Context, sink AlertSink, event AlertEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Notify(ctx, event)
}

// LogSink writes alert events to the log.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Notify(_ context.Context, event AlertEvent) error {
	ev := s.log.Warn()
	if event.NowUp {
		ev = s.log.Info()
	}
	ev.Str("monitor_id", event.MonitorID).
		Str("name", event.Name).
		Str("url", event.URL).
		Int("status", event.Status).
		Int64("latency_ms", event.LatencyMs).
		Str("error", event.Error).
		Bool("forced", event.Forced).
		Msgf("[Alerts] Monitor %s", event.Kind())
	return nil
}

// BroadcastSink pushes alert events to live update clients.
type BroadcastSink struct {
	broadcaster *Broadcaster
}

func NewBroadcastSink(b *Broadcaster) *BroadcastSink {
	return &BroadcastSink{broadcaster: b}
}

func (s *BroadcastSink) Name() string { return "broadcast" }

func (s *BroadcastSink) Notify(_ context.Context, event AlertEvent) error {
	return s.broadcaster.Publish("alert", event)
}
