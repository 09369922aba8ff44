// Package audit persists connection lifecycle events to a local sqlite
// database. It subscribes to the sshconn event stream, so operators can
// inspect how the server has been reaching each host across restarts.
// Search contents are never stored, only connection telemetry.
package audit

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JaysonAlbert/log-search-mcp/internal/sshconn"
)

// Event is one persisted connection lifecycle record.
type Event struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Host      string    `gorm:"index" json:"host"`
	Type      string    `json:"type"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the audit database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the audit database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Record appends one event. Persistence failures are logged, not
// propagated: audit must never break a search.
func (s *Store) Record(host, eventType, details string) {
	e := Event{Host: host, Type: eventType, Details: details}
	if err := s.db.Create(&e).Error; err != nil {
		log.Printf("[audit] record event for %s: %v", host, err)
	}
}

// Sink adapts the store to the sshconn event sink signature.
func (s *Store) Sink() func(sshconn.Event) {
	return func(e sshconn.Event) {
		s.Record(e.Host, string(e.Type), e.Details)
	}
}

// RecentByHost returns up to limit events for one host, newest first.
func (s *Store) RecentByHost(host string, limit int) ([]Event, error) {
	var events []Event
	err := s.db.Where("host = ?", host).Order("id DESC").Limit(limit).Find(&events).Error
	return events, err
}

// Recent returns up to limit events across all hosts, newest first.
func (s *Store) Recent(limit int) ([]Event, error) {
	var events []Event
	err := s.db.Order("id DESC").Limit(limit).Find(&events).Error
	return events, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
