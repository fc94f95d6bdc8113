package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"farmrent/internal/domain"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the SQLite-backed entity store of one origin. Every window of the
// origin opens the same file.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var _ domain.EntityStore = (*DB)(nil)

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	inMemory := path == ":memory:" || strings.HasPrefix(path, "file::memory:")
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(path, inMemory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		// each connection would otherwise get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// NewFromSQL wraps an already opened handle. Tables are not created.
func NewFromSQL(sqlDB *sql.DB, logger *zerolog.Logger) *DB {
	return &DB{DB: sqlDB, logger: logger}
}

func dsn(path string, inMemory bool) string {
	if inMemory {
		return path
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			email TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL CHECK (role IN ('farmer', 'provider')),
			district TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS machinery (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			owner_email TEXT NOT NULL,
			owner_name TEXT NOT NULL DEFAULT '',
			daily_rate INTEGER NOT NULL CHECK (daily_rate >= 0),
			district TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			specifications TEXT NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'rented', 'maintenance')),
			reviews TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rental_requests (
			id TEXT PRIMARY KEY,
			machinery_id TEXT NOT NULL,
			machinery_name TEXT NOT NULL,
			farmer_email TEXT NOT NULL,
			farmer_name TEXT NOT NULL,
			farmer_phone TEXT NOT NULL DEFAULT '',
			provider_email TEXT NOT NULL,
			provider_name TEXT NOT NULL DEFAULT '',
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			total_days INTEGER NOT NULL CHECK (total_days >= 1),
			daily_rate INTEGER NOT NULL,
			total_price INTEGER NOT NULL,
			fuel_included BOOLEAN NOT NULL DEFAULT 0,
			fuel_paid_by TEXT CHECK (fuel_paid_by IS NULL OR fuel_paid_by IN ('farmer', 'provider', 'shared')),
			fuel_cost_per_day INTEGER NOT NULL DEFAULT 0,
			estimated_fuel_cost INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'rejected', 'completed', 'cancelled')),
			farmer_confirmed_at DATETIME NOT NULL,
			provider_confirmed_at DATETIME,
			agreement_id TEXT NOT NULL DEFAULT '',
			dispute_reported BOOLEAN NOT NULL DEFAULT 0,
			dispute_details TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		)`,

		`CREATE INDEX IF NOT EXISTS idx_machinery_owner ON machinery(owner_email)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_farmer ON rental_requests(farmer_email)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_provider ON rental_requests(provider_email)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_status ON rental_requests(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// storeErr maps driver failures onto the domain error kinds.
func storeErr(op, kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError(kind, id)
	}
	return domain.NewPersistenceError(op, err)
}

func (db *DB) Close() error {
	return db.DB.Close()
}
