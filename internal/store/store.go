// Package store persists batch, progression and analysis results in SQLite
// or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/deskwarrior/simulator/internal/logger"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the database connection.
type Store struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open opens (or creates) the SQLite database at path.
func Open(path string) (*Store, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig opens the database described by cfg and runs migrations.
func OpenWithConfig(cfg Config) (*Store, error) {
	dialect := NewDialect(DialectType(cfg.Driver))

	var dsn string
	switch dialect.(type) {
	case *PostgresDialect:
		dsn = cfg.Postgres.DSN()
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = cfg.SQLitePath
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, ok := dialect.(*PostgresDialect); ok {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	} else {
		// One writer keeps SQLite from returning SQLITE_BUSY under the dashboard.
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	s := &Store{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("Store opened", "driver", dialect.DriverName())
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) exec(ctx context.Context, q execer, query string, args ...any) error {
	_, err := q.ExecContext(ctx, s.qb.Build(query), args...)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS batch_runs (
			id TEXT PRIMARY KEY,
			created_at BIGINT NOT NULL,
			target_level INTEGER NOT NULL,
			iterations INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			average_level DOUBLE PRECISION NOT NULL,
			median_level DOUBLE PRECISION NOT NULL,
			std_dev DOUBLE PRECISION NOT NULL,
			success_rate DOUBLE PRECISION NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batch_runs_created ON batch_runs(created_at)`,

		`CREATE TABLE IF NOT EXISTS progression_runs (
			id TEXT PRIMARY KEY,
			created_at BIGINT NOT NULL,
			strategy TEXT NOT NULL,
			target_level INTEGER NOT NULL,
			success INTEGER NOT NULL,
			attempts INTEGER NOT NULL,
			best_level INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			created_at BIGINT NOT NULL,
			grade TEXT NOT NULL,
			target_level INTEGER NOT NULL DEFAULT 0,
			cps DOUBLE PRECISION NOT NULL DEFAULT 0,
			crystal_budget BIGINT NOT NULL DEFAULT 0,
			dominance DOUBLE PRECISION NOT NULL,
			diversity DOUBLE PRECISION NOT NULL,
			top_stats TEXT NOT NULL,
			bottom_stats TEXT NOT NULL,
			focus_stats TEXT NOT NULL DEFAULT '[]',
			best_pattern_id TEXT NOT NULL DEFAULT '',
			best_pattern_level DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at)`,

		`CREATE TABLE IF NOT EXISTS patterns (
			analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			allocation TEXT NOT NULL,
			average_level DOUBLE PRECISION NOT NULL,
			success_rate DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (analysis_id, id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
