// Package store persists the service's entities in SQLite.
//
// The schema is managed by golang-migrate with migrations embedded in the
// binary. Monetary amounts are stored as canonical decimal strings, calendar
// dates as "2006-01-02" and timestamps as RFC3339, so every value round-trips
// without floating point drift.
//
// The uniqueness rules the import workflow depends on are enforced here, at
// the database level, not just in application code:
//
//   - one non-failed import per (bank account, file hash)
//   - one non-ignored staged row per (bank account, content hash)
//   - one staged row per matched ledger transaction
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"finance-ledger-service/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	categoryCacheExpiration = 15 * time.Minute
	categoryCacheCleanup    = 30 * time.Minute
)

// Store provides SQLite-backed persistence for all entities
type Store struct {
	db         *sql.DB
	categories *cache.Cache
	logger     logger.Logger
}

// Open opens (or creates) the SQLite database at path and applies pending
// migrations. Use ":memory:" for an in-memory database in tests.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// lock contention entirely.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db, path); err != nil {
		db.Close()
		return nil, err
	}

	log.WithComponent("store").WithField("path", path).Info("database opened")

	return &Store{
		db:         db,
		categories: cache.New(categoryCacheExpiration, categoryCacheCleanup),
		logger:     log.WithComponent("store"),
	}, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations applies the embedded schema migrations
func runMigrations(db *sql.DB, path string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, path, driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// withTx runs fn inside a database transaction, rolling back on error
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Storage format helpers. Dates and timestamps are TEXT columns; amounts
// are decimal strings.

func fmtDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// nullString maps "" to NULL for nullable TEXT columns
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// fromNull maps NULL back to ""
func fromNull(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
