package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MaxRetries is the number of attempts a single probe may make.
	MaxRetries        = 3
	defaultRetryDelay = time.Second
	minAttemptTimeout = 2 * time.Second
	maxBodyDrain      = 64 << 10
	userAgent         = "upwatch/1.0"
)

// ProbeTarget is the part of a monitor the prober needs.
type ProbeTarget struct {
	ID         string
	URL        string
	IntervalMs int64
}

// ProbeOutcome is the canonical result of a probe: the terminal attempt.
type ProbeOutcome struct {
	Point            HistoryPoint
	TransportFailure bool
}

type attemptResult struct {
	status    int
	latencyMs int64
	err       error
}

// Prober runs bounded-retry HTTP checks.
type Prober struct {
	client      *http.Client
	maxAttempts int
	retryDelay  time.Duration
	log         zerolog.Logger
}

// NewProber creates a prober with the default retry policy.
func NewProber(log zerolog.Logger) *Prober {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	return &Prober{
		// Timeouts are applied per attempt through the request context.
		client:      &http.Client{Transport: transport},
		maxAttempts: MaxRetries,
		retryDelay:  defaultRetryDelay,
		log:         log,
	}
}

// attemptTimeout keeps each attempt under the check cadence, with a 2s floor.
func attemptTimeout(intervalMs int64) time.Duration {
	timeout := time.Duration(intervalMs*8/10) * time.Millisecond
	if timeout < minAttemptTimeout {
		return minAttemptTimeout
	}
	return timeout
}

// Probe checks target up to maxAttempts times. A response ends the loop
// unless it was down and attempts remain; a transport failure is retried
// until the attempts run out. Only the terminal attempt is returned.
func (p *Prober) Probe(ctx context.Context, target ProbeTarget, forced bool) ProbeOutcome {
	timeout := attemptTimeout(target.IntervalMs)

	var res attemptResult
	attempt := 0
	for attempt < p.maxAttempts {
		attempt++
		res = p.attempt(ctx, target.URL, timeout)
		if res.err == nil && isUpStatus(res.status) {
			break
		}
		if attempt == p.maxAttempts {
			break
		}

		ev := p.log.Debug().Str("monitor_id", target.ID).Str("url", target.URL).Int("attempt", attempt)
		if res.err != nil {
			ev = ev.Err(res.err)
		} else {
			ev = ev.Int("status", res.status)
		}
		ev.Dur("retry_in", p.retryDelay).Msg("[Prober] Attempt failed, retrying")

		if !sleepContext(ctx, p.retryDelay) {
			break
		}
	}

	point := HistoryPoint{
		Timestamp: time.Now(),
		Up:        res.err == nil && isUpStatus(res.status),
		Status:    res.status,
		LatencyMs: res.latencyMs,
		Attempt:   attempt,
		Forced:    forced,
	}
	if res.err != nil {
		point.Status = 0
		point.LatencyMs = 0
		point.Error = describeTransportError(res.err)
	} else if !point.Up {
		point.Error = fmt.Sprintf("HTTP %d %s", res.status, http.StatusText(res.status))
	}

	return ProbeOutcome{Point: point, TransportFailure: res.err != nil}
}

func (p *Prober) attempt(ctx context.Context, rawURL string, timeout time.Duration) attemptResult {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return attemptResult{err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Expires", "0")

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return attemptResult{latencyMs: latency, err: err}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))
	resp.Body.Close()

	return attemptResult{status: resp.StatusCode, latencyMs: latency}
}

func describeTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return err.Error()
}

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
