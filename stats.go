package main

import "sort"

const (
	defaultEventLimit = 50
	maxEventLimit     = HistoryLimit
)

// computeStats aggregates every monitor. Up and down only count monitors
// that have been checked; uptime and average latency use the full history.
func computeStats(registry *Registry) StatsResponse {
	var (
		stats        StatsResponse
		upPoints     int
		totalPoints  int
		latencySum   int64
		latencyCount int64
	)

	for _, m := range registry.Monitors() {
		stats.Total++
		if m.Enabled {
			stats.Enabled++
		} else {
			stats.Disabled++
		}
		if m.Checked() {
			if m.IsUp() {
				stats.Up++
			} else {
				stats.Down++
			}
		}
		if healthStatus(m) == HealthCritical {
			stats.Critical++
		}

		for _, p := range m.History {
			totalPoints++
			if !p.Up {
				continue
			}
			upPoints++
			if p.LatencyMs > 0 {
				latencySum += p.LatencyMs
				latencyCount++
			}
		}
	}

	stats.OverallUptime = ratioPct(upPoints, totalPoints)
	if latencyCount > 0 {
		stats.AvgResponseTime = latencySum / latencyCount
	}
	return stats
}

// isEvent reports whether a point is worth surfacing: forced, retried or failed with an error.
func isEvent(p HistoryPoint) bool {
	return p.Forced || p.Attempt > 1 || p.Error != ""
}

// recentEvents returns up to limit event points across all monitors, newest first.
func recentEvents(registry *Registry, limit int) []EventEntry {
	limit = clampLimit(limit, defaultEventLimit, maxEventLimit)

	var events []EventEntry
	for _, m := range registry.Monitors() {
		name := m.DisplayName()
		for _, p := range m.History {
			if isEvent(p) {
				events = append(events, EventEntry{MonitorID: m.ID, MonitorName: name, HistoryPoint: p})
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	if events == nil {
		events = []EventEntry{}
	}
	return events
}

// clampLimit applies def to non-positive values and caps at max.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
