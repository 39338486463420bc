package main

import "time"

//go:generate easyjson record.go

// MonitorRecord is the persisted form of a monitor. Times are epoch
// milliseconds; LastChecked 0 means never checked.
//
//easyjson:json
type MonitorRecord struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name,omitempty"`
	URL                 string          `json:"url"`
	IntervalMs          int64           `json:"intervalMs"`
	History             []HistoryRecord `json:"history"`
	LastStatus          int             `json:"lastStatus"`
	LastLatency         int64           `json:"lastLatency"`
	LastChecked         int64           `json:"lastChecked"`
	Enabled             bool            `json:"enabled"`
	RetryCount          int             `json:"retryCount"`
	LastError           string          `json:"lastError,omitempty"`
	ConsecutiveFailures int             `json:"consecutiveFailures"`
}

// HistoryRecord is the persisted form of a history point.
//
//easyjson:json
type HistoryRecord struct {
	Timestamp int64  `json:"timestamp"`
	Up        bool   `json:"up"`
	Status    int    `json:"status"`
	Latency   int64  `json:"latency"`
	Attempt   int    `json:"attempt"`
	Forced    bool   `json:"forced"`
	Error     string `json:"error,omitempty"`
}

// MonitorRecords is the top-level document of the JSON store.
//
//easyjson:json
type MonitorRecords []MonitorRecord

func toEpochMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromEpochMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func recordFromPoint(p HistoryPoint) HistoryRecord {
	return HistoryRecord{
		Timestamp: toEpochMs(p.Timestamp),
		Up:        p.Up,
		Status:    p.Status,
		Latency:   p.LatencyMs,
		Attempt:   p.Attempt,
		Forced:    p.Forced,
		Error:     p.Error,
	}
}

func pointFromRecord(r HistoryRecord) HistoryPoint {
	return HistoryPoint{
		Timestamp: fromEpochMs(r.Timestamp),
		Up:        r.Up,
		Status:    r.Status,
		LatencyMs: r.Latency,
		Attempt:   r.Attempt,
		Forced:    r.Forced,
		Error:     r.Error,
	}
}

func recordFromMonitor(m Monitor) MonitorRecord {
	history := make([]HistoryRecord, 0, len(m.History))
	for _, p := range m.History {
		history = append(history, recordFromPoint(p))
	}
	return MonitorRecord{
		ID:                  m.ID,
		Name:                m.Name,
		URL:                 m.URL,
		IntervalMs:          m.IntervalMs,
		History:             history,
		LastStatus:          m.LastStatus,
		LastLatency:         m.LastLatency,
		LastChecked:         toEpochMs(m.LastChecked),
		Enabled:             m.Enabled,
		RetryCount:          m.RetryCount,
		LastError:           m.LastError,
		ConsecutiveFailures: m.ConsecutiveFailures,
	}
}

// monitorFromRecord keeps at most the newest HistoryLimit points.
func monitorFromRecord(r MonitorRecord) Monitor {
	records := r.History
	if len(records) > HistoryLimit {
		records = records[len(records)-HistoryLimit:]
	}
	history := make([]HistoryPoint, 0, len(records))
	for _, hr := range records {
		history = append(history, pointFromRecord(hr))
	}
	return Monitor{
		ID:                  r.ID,
		Name:                r.Name,
		URL:                 r.URL,
		IntervalMs:          r.IntervalMs,
		Enabled:             r.Enabled,
		LastStatus:          r.LastStatus,
		LastLatency:         r.LastLatency,
		LastChecked:         fromEpochMs(r.LastChecked),
		LastError:           r.LastError,
		ConsecutiveFailures: r.ConsecutiveFailures,
		RetryCount:          r.RetryCount,
		History:             history,
	}
}
