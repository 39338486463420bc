package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

const maintenanceJobName = "maintenance"

// Maintainer is implemented by stores that need periodic housekeeping.
type Maintainer interface {
	Maintain(ctx context.Context) (int64, error)
}

// Maintain removes history rows whose monitor no longer exists, then
// checkpoints the WAL and compacts the database file. It returns the number
// of orphaned rows deleted.
func (s *SQLiteStore) Maintain(ctx context.Context) (int64, error) {
	db := s.db.WithContext(ctx)

	result := db.Where("monitor_id NOT IN (?)", db.Model(&monitorRow{}).Select("id")).Delete(&historyRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge orphaned history: %w", result.Error)
	}
	if err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		return result.RowsAffected, fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	if err := db.Exec("VACUUM").Error; err != nil {
		return result.RowsAffected, fmt.Errorf("failed to vacuum database: %w", err)
	}
	return result.RowsAffected, nil
}

// maintainerOf finds the store, possibly behind a fallback, that needs housekeeping.
func maintainerOf(store Store) (Maintainer, bool) {
	switch s := store.(type) {
	case Maintainer:
		return s, true
	case *FallbackStore:
		return maintainerOf(s.Primary)
	default:
		return nil, false
	}
}

// runMaintenance performs one housekeeping pass and logs the outcome.
func runMaintenance(ctx context.Context, m Maintainer, log zerolog.Logger) {
	log.Info().Msg("[Cleanup] Starting database maintenance")
	deleted, err := m.Maintain(ctx)
	if err != nil {
		log.Error().Err(err).Msg("[Cleanup] Database maintenance failed")
		return
	}
	log.Info().Int64("deleted", deleted).Msg("[Cleanup] Database maintenance completed")
}

// startMaintenance schedules housekeeping daily at midnight when the store
// supports it.
func startMaintenance(scheduler *Scheduler, store Store, log zerolog.Logger) error {
	m, ok := maintainerOf(store)
	if !ok {
		log.Debug().Msg("[Cleanup] Store needs no maintenance")
		return nil
	}
	if err := scheduler.Daily(maintenanceJobName, 0, 0, func(ctx context.Context) {
		runMaintenance(ctx, m, log)
	}); err != nil {
		return err
	}
	log.Info().Msg("[Cleanup] Maintenance scheduled daily at midnight")
	return nil
}
