// Package database is the sqlite storage layer. It owns all locking and
// constraint enforcement; the availability engine only ever sees
// snapshots read from here.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection pool.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var (
	// ErrSlotTaken is returned when a reservation commit loses the
	// check/use race: another booking for the same (date, start, console)
	// landed first and hit the unique index.
	ErrSlotTaken = errors.New("slot already taken")

	ErrNotFound = errors.New("not found")
)

// New opens (or creates) the database at path and ensures the schema.
func New(path string, logger *zerolog.Logger) (*DB, error) {
	var dsn string
	if path == ":memory:" {
		// Shared cache keeps every pooled connection on the same in-memory db.
		dsn = "file::memory:?cache=shared&_busy_timeout=5000"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS consoles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			category TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT UNIQUE NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS accessories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		// One row per day of week; always_open / active_from / active_to are
		// schedule-wide and written identically on every row.
		`CREATE TABLE IF NOT EXISTS weekly_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			day_of_week INTEGER UNIQUE NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			always_open BOOLEAN NOT NULL DEFAULT 0,
			active_from TEXT,
			active_to TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS weekly_rule_ranges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_id INTEGER NOT NULL REFERENCES weekly_rules(id) ON DELETE CASCADE,
			start_minute INTEGER NOT NULL,
			end_minute INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS date_overrides (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			start_minute INTEGER NOT NULL,
			end_minute INTEGER NOT NULL,
			is_exception BOOLEAN NOT NULL DEFAULT 0
		)`,
		// accessory_ids is a legacy JSON column kept only for rows written
		// before the join tables existed; reads degrade leniently on bad JSON.
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			start_minute INTEGER NOT NULL,
			console_id INTEGER NOT NULL REFERENCES consoles(id),
			status TEXT NOT NULL DEFAULT 'confirmed',
			accessory_ids TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS reservation_games (
			reservation_id INTEGER NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
			game_id INTEGER NOT NULL REFERENCES games(id),
			PRIMARY KEY (reservation_id, game_id)
		)`,
		`CREATE TABLE IF NOT EXISTS reservation_accessories (
			reservation_id INTEGER NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
			accessory_id INTEGER NOT NULL REFERENCES accessories(id),
			PRIMARY KEY (reservation_id, accessory_id)
		)`,
		// Closes the engine's check/use race at commit time.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_slot
			ON reservations(date, start_minute, console_id)
			WHERE status NOT IN ('canceled')`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_date ON reservations(date)`,
		`CREATE INDEX IF NOT EXISTS idx_date_overrides_date ON date_overrides(date)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec schema query: %w", err)
		}
	}
	return nil
}
