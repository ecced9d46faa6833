// Package store opens the leaderboard database and applies migrations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver.
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Driver names registered with database/sql.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// TimeLayout is a fixed-width UTC timestamp so text columns sort chronologically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps a database handle with a placeholder-aware query builder.
type DB struct {
	*sql.DB
	driver  string
	builder squirrel.StatementBuilderType
}

// Open connects to dsn and applies migrations. postgres:// and postgresql://
// DSNs use pgx; sqlite://<path> or a bare path uses SQLite, creating parent
// directories as needed.
func Open(dsn string) (*DB, error) {
	driver, source, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite && source != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(source), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	sqlDB, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer keeps SQLite from returning SQLITE_BUSY under concurrent submits.
		sqlDB.SetMaxOpenConns(1)
	}
	db := &DB{DB: sqlDB, driver: driver, builder: builderFor(driver)}
	if err := db.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func parseDSN(dsn string) (driver, source string, err error) {
	switch {
	case dsn == "":
		return "", "", fmt.Errorf("database url is empty")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.Contains(dsn, "://"):
		return "", "", fmt.Errorf("unsupported database url %q", dsn)
	default:
		return DriverSQLite, dsn, nil
	}
}

func builderFor(driver string) squirrel.StatementBuilderType {
	if driver == DriverPostgres {
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

// Driver returns the database/sql driver name in use.
func (d *DB) Driver() string {
	return d.driver
}

// Builder returns a squirrel builder using the driver's placeholder format.
func (d *DB) Builder() squirrel.StatementBuilderType {
	return d.builder
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL,
			wpm INTEGER NOT NULL,
			accuracy INTEGER NOT NULL,
			mode TEXT NOT NULL,
			time_setting INTEGER,
			word_count INTEGER,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_wpm ON leaderboard(wpm DESC, created_at ASC);`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_mode_wpm ON leaderboard(mode, wpm DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := d.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// FormatTime renders t for a text timestamp column.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a timestamp written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// IsUniqueViolation reports whether err is a unique constraint failure on
// either supported driver.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		// Builds without extended result codes only report SQLITE_CONSTRAINT.
		return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}
