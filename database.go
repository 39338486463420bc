package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	_ "modernc.org/sqlite"
)

const insertBatchSize = 100

// monitorRow is the monitors table.
type monitorRow struct {
	ID                  string `gorm:"primaryKey"`
	Position            int    `gorm:"index"`
	Name                string
	URL                 string `gorm:"not null"`
	IntervalMs          int64  `gorm:"not null"`
	Enabled             bool
	LastStatus          int
	LastLatency         int64
	LastChecked         int64
	LastError           string
	ConsecutiveFailures int
	RetryCount          int
	UpdatedAt           time.Time
}

func (monitorRow) TableName() string { return "monitors" }

// historyRow is the history_points table. A point is identified by its
// monitor, timestamp and attempt so re-saving the same ledger is a no-op.
type historyRow struct {
	ID        uint   `gorm:"primaryKey"`
	MonitorID string `gorm:"not null;uniqueIndex:idx_history_point,priority:1"`
	Timestamp int64  `gorm:"not null;uniqueIndex:idx_history_point,priority:2"`
	Attempt   int    `gorm:"not null;uniqueIndex:idx_history_point,priority:3"`
	Up        bool
	Status    int
	Latency   int64
	Forced    bool
	Error     string
}

func (historyRow) TableName() string { return "history_points" }

// SQLiteStore persists monitors and their history in SQLite through gorm,
// using the pure Go modernc driver.
type SQLiteStore struct {
	db   *gorm.DB
	sql  *sql.DB
	path string
	log  zerolog.Logger
}

// OpenSQLiteStore opens (creating if needed) the database at path and
// migrates its schema.
func OpenSQLiteStore(path string, log zerolog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// WAL lets readers proceed during a write; busy_timeout waits for locks.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&monitorRow{}, &historyRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info().Str("path", path).Msg("[Store] Database initialized")
	return &SQLiteStore{db: db, sql: sqlDB, path: path, log: log}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.sql.Close()
}

// Load returns every monitor in saved order with its newest HistoryLimit points.
func (s *SQLiteStore) Load(ctx context.Context) ([]MonitorRecord, error) {
	db := s.db.WithContext(ctx)

	var rows []monitorRow
	if err := db.Order("position, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load monitors: %w", err)
	}

	records := make([]MonitorRecord, 0, len(rows))
	for _, row := range rows {
		var points []historyRow
		err := db.Where("monitor_id = ?", row.ID).
			Order("timestamp DESC, attempt DESC").
			Limit(HistoryLimit).
			Find(&points).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load history for monitor %s: %w", row.ID, err)
		}

		history := make([]HistoryRecord, len(points))
		for i, p := range points {
			history[len(points)-1-i] = HistoryRecord{
				Timestamp: p.Timestamp,
				Up:        p.Up,
				Status:    p.Status,
				Latency:   p.Latency,
				Attempt:   p.Attempt,
				Forced:    p.Forced,
				Error:     p.Error,
			}
		}

		records = append(records, MonitorRecord{
			ID:                  row.ID,
			Name:                row.Name,
			URL:                 row.URL,
			IntervalMs:          row.IntervalMs,
			History:             history,
			LastStatus:          row.LastStatus,
			LastLatency:         row.LastLatency,
			LastChecked:         row.LastChecked,
			Enabled:             row.Enabled,
			RetryCount:          row.RetryCount,
			LastError:           row.LastError,
			ConsecutiveFailures: row.ConsecutiveFailures,
		})
	}
	return records, nil
}

// Save makes the database mirror records: monitors are upserted, monitors
// missing from records are deleted, new history points are inserted and
// points older than each monitor's oldest kept point are dropped.
func (s *SQLiteStore) Save(ctx context.Context, records []MonitorRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(records))
		rows := make([]monitorRow, 0, len(records))
		for i, rec := range records {
			ids = append(ids, rec.ID)
			rows = append(rows, monitorRow{
				ID:                  rec.ID,
				Position:            i,
				Name:                rec.Name,
				URL:                 rec.URL,
				IntervalMs:          rec.IntervalMs,
				Enabled:             rec.Enabled,
				LastStatus:          rec.LastStatus,
				LastLatency:         rec.LastLatency,
				LastChecked:         rec.LastChecked,
				LastError:           rec.LastError,
				ConsecutiveFailures: rec.ConsecutiveFailures,
				RetryCount:          rec.RetryCount,
			})
		}

		if len(rows) > 0 {
			err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
				CreateInBatches(rows, insertBatchSize).Error
			if err != nil {
				return fmt.Errorf("failed to upsert monitors: %w", err)
			}
		}

		if err := deleteMissing(tx, ids); err != nil {
			return err
		}

		for _, rec := range records {
			if err := saveHistory(tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteMissing(tx *gorm.DB, ids []string) error {
	monitors := tx.Where("1 = 1")
	history := tx.Where("1 = 1")
	if len(ids) > 0 {
		monitors = tx.Where("id NOT IN ?", ids)
		history = tx.Where("monitor_id NOT IN ?", ids)
	}
	if err := monitors.Delete(&monitorRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete removed monitors: %w", err)
	}
	if err := history.Delete(&historyRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete history of removed monitors: %w", err)
	}
	return nil
}

func saveHistory(tx *gorm.DB, rec MonitorRecord) error {
	if len(rec.History) == 0 {
		if err := tx.Where("monitor_id = ?", rec.ID).Delete(&historyRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear history for monitor %s: %w", rec.ID, err)
		}
		return nil
	}

	var latest int64
	err := tx.Model(&historyRow{}).
		Select("COALESCE(MAX(timestamp), 0)").
		Where("monitor_id = ?", rec.ID).
		Scan(&latest).Error
	if err != nil {
		return fmt.Errorf("failed to read history for monitor %s: %w", rec.ID, err)
	}

	points := make([]historyRow, 0, len(rec.History))
	for _, p := range rec.History {
		if p.Timestamp < latest {
			continue
		}
		points = append(points, historyRow{
			MonitorID: rec.ID,
			Timestamp: p.Timestamp,
			Attempt:   p.Attempt,
			Up:        p.Up,
			Status:    p.Status,
			Latency:   p.Latency,
			Forced:    p.Forced,
			Error:     p.Error,
		})
	}
	if len(points) > 0 {
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(points, insertBatchSize).Error
		if err != nil {
			return fmt.Errorf("failed to insert history for monitor %s: %w", rec.ID, err)
		}
	}

	oldest := rec.History[0].Timestamp
	if err := tx.Where("monitor_id = ? AND timestamp < ?", rec.ID, oldest).Delete(&historyRow{}).Error; err != nil {
		return fmt.Errorf("failed to trim history for monitor %s: %w", rec.ID, err)
	}
	return nil
}
