package main

import "math"

// HealthStatus is the derived health of a monitor.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthCritical  HealthStatus = "critical"
)

// criticalFailures is the consecutive failure count above which a monitor is critical.
const criticalFailures = 2

func isUpStatus(status int) bool {
	return status >= 200 && status < 400
}

// Ledger is a fixed-capacity ring buffer of history points. Once full, each
// append evicts the oldest point. It is not safe for concurrent use; the
// owning registry entry serializes access.
type Ledger struct {
	buf   []HistoryPoint
	start int
	size  int
}

// NewLedger creates an empty ledger holding at most limit points.
func NewLedger(limit int) *Ledger {
	if limit < 1 {
		limit = 1
	}
	return &Ledger{buf: make([]HistoryPoint, limit)}
}

// Append adds p as the newest point.
func (l *Ledger) Append(p HistoryPoint) {
	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = p
		l.size++
		return
	}
	l.buf[l.start] = p
	l.start = (l.start + 1) % len(l.buf)
}

// Len returns the number of points held.
func (l *Ledger) Len() int {
	return l.size
}

// Cap returns the maximum number of points the ledger keeps.
func (l *Ledger) Cap() int {
	return len(l.buf)
}

// Points returns the held points oldest first.
func (l *Ledger) Points() []HistoryPoint {
	out := make([]HistoryPoint, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

// Last returns up to n of the newest points, oldest first.
func (l *Ledger) Last(n int) []HistoryPoint {
	if n <= 0 || n > l.size {
		n = l.size
	}
	out := make([]HistoryPoint, n)
	offset := l.size - n
	for i := 0; i < n; i++ {
		out[i] = l.buf[(l.start+offset+i)%len(l.buf)]
	}
	return out
}

// Reset drops every point.
func (l *Ledger) Reset() {
	l.start = 0
	l.size = 0
}

// Counts returns how many of the held points are up, and the total.
func (l *Ledger) Counts() (up, total int) {
	for i := 0; i < l.size; i++ {
		if l.buf[(l.start+i)%len(l.buf)].Up {
			up++
		}
	}
	return up, l.size
}

// uptimePct returns the share of up points as a percentage with one decimal.
func uptimePct(history []HistoryPoint) float64 {
	up := 0
	for _, p := range history {
		if p.Up {
			up++
		}
	}
	return ratioPct(up, len(history))
}

func ratioPct(up, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(up)/float64(total)*1000) / 10
}

// healthStatus derives the health bucket of a monitor from its last check.
func healthStatus(m Monitor) HealthStatus {
	switch {
	case !m.Checked():
		return HealthUnknown
	case isUpStatus(m.LastStatus):
		return HealthHealthy
	case m.ConsecutiveFailures > criticalFailures:
		return HealthCritical
	default:
		return HealthUnhealthy
	}
}
