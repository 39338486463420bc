package main

import "time"

const (
	// MinIntervalMs is the floor every monitor interval is clamped to.
	MinIntervalMs int64 = 2000
	// DefaultIntervalMs is used when a monitor is created without an interval.
	DefaultIntervalMs int64 = 60000
	// HistoryLimit caps the number of points kept per monitor.
	HistoryLimit = 200
)

// Monitor is a point-in-time copy of one HTTP target under observation.
// The registry owns the live data; callers only ever see copies.
type Monitor struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name,omitempty"`
	URL                 string         `json:"url"`
	IntervalMs          int64          `json:"intervalMs"`
	Enabled             bool           `json:"enabled"`
	LastStatus          int            `json:"lastStatus"`
	LastLatency         int64          `json:"lastLatency"`
	LastChecked         time.Time      `json:"lastChecked"`
	LastError           string         `json:"lastError,omitempty"`
	ConsecutiveFailures int            `json:"consecutiveFailures"`
	RetryCount          int            `json:"retryCount"`
	History             []HistoryPoint `json:"history,omitempty"`
}

// DisplayName returns the configured name, falling back to the URL.
func (m Monitor) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.URL
}

// Checked reports whether the monitor has completed at least one check.
func (m Monitor) Checked() bool {
	return !m.LastChecked.IsZero()
}

// IsUp reports whether the last terminal result was up.
func (m Monitor) IsUp() bool {
	return m.Checked() && isUpStatus(m.LastStatus)
}

// HistoryPoint is the immutable result of one terminal probe attempt.
// Status 0 means the target could not be reached at all.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Up        bool      `json:"up"`
	Status    int       `json:"status"`
	LatencyMs int64     `json:"latency"`
	Attempt   int       `json:"attempt"`
	Forced    bool      `json:"forced"`
	Error     string    `json:"error,omitempty"`
}

// CreateMonitorRequest represents the request body for creating a monitor
type CreateMonitorRequest struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	IntervalMs int64  `json:"intervalMs,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`
}

// PatchMonitorRequest lists the fields a client may change on an existing
// monitor. Nil fields are left untouched.
type PatchMonitorRequest struct {
	Name       *string `json:"name,omitempty"`
	URL        *string `json:"url,omitempty"`
	IntervalMs *int64  `json:"intervalMs,omitempty"`
	Enabled    *bool   `json:"enabled,omitempty"`
}

// MonitorSummary is the list view of a monitor, without its history.
type MonitorSummary struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name,omitempty"`
	URL                 string       `json:"url"`
	IntervalMs          int64        `json:"intervalMs"`
	Enabled             bool         `json:"enabled"`
	LastStatus          int          `json:"lastStatus"`
	LastLatency         int64        `json:"lastLatency"`
	LastChecked         time.Time    `json:"lastChecked"`
	LastError           string       `json:"lastError,omitempty"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	RetryCount          int          `json:"retryCount"`
	HistoryLength       int          `json:"historyLength"`
	UptimePct           float64      `json:"uptimePct"`
	Health              HealthStatus `json:"health"`
}

// StatsResponse represents overall statistics
type StatsResponse struct {
	Total           int     `json:"total"`
	Up              int     `json:"up"`
	Down            int     `json:"down"`
	Enabled         int     `json:"enabled"`
	Disabled        int     `json:"disabled"`
	Critical        int     `json:"critical"`
	OverallUptime   float64 `json:"overallUptime"`
	AvgResponseTime int64   `json:"avgResponseTime"`
}

// EventEntry is a history point worth surfacing in the recent events feed.
type EventEntry struct {
	MonitorID   string `json:"monitorId"`
	MonitorName string `json:"monitorName"`
	HistoryPoint
}

// MonitorDetail is a single monitor with its newest history points.
type MonitorDetail struct {
	MonitorSummary
	History []HistoryPoint `json:"history"`
}
