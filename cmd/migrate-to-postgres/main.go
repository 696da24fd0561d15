// migrate-to-postgres copies stored simulator results from SQLite to
// PostgreSQL.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/simulator.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user simulator \
//	    -pg-password simulator \
//	    -pg-database simulator
//
// Ids and timestamps are kept and rows already present in PostgreSQL are
// skipped, so the copy can be repeated.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/deskwarrior/simulator/internal/logger"
	"github.com/deskwarrior/simulator/internal/store"
)

func main() {
	def := store.DefaultPostgresConfig()
	sqlitePath := flag.String("sqlite", "data/simulator.db", "Path to SQLite database")
	pgHost := flag.String("pg-host", def.Host, "PostgreSQL host")
	pgPort := flag.Int("pg-port", def.Port, "PostgreSQL port")
	pgUser := flag.String("pg-user", "simulator", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "", "PostgreSQL password (or SIM_DB_POSTGRES_PASSWORD)")
	pgDatabase := flag.String("pg-database", "simulator", "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", def.SSLMode, "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	logConfig, _ := logger.LoadConfig("")
	logger.Initialize(logConfig)

	if _, err := os.Stat(*sqlitePath); err != nil {
		logger.Error("SQLite database not found", "path", *sqlitePath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Opening SQLite database", "path", *sqlitePath)
	src, err := store.Open(*sqlitePath)
	if err != nil {
		logger.Error("Failed to open SQLite database", "error", err)
		os.Exit(1)
	}
	defer src.Close()

	pg := def
	pg.Host = *pgHost
	pg.Port = *pgPort
	pg.User = *pgUser
	pg.Password = *pgPassword
	if pg.Password == "" {
		pg.Password = os.Getenv("SIM_DB_POSTGRES_PASSWORD")
	}
	pg.Database = *pgDatabase
	pg.SSLMode = *pgSSLMode

	logger.Info("Opening PostgreSQL database", "user", pg.User, "host", pg.Host, "port", pg.Port, "database", pg.Database)
	dst, err := store.OpenWithConfig(store.Config{Driver: string(store.DialectPostgres), Postgres: pg})
	if err != nil {
		logger.Error("Failed to open PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dst.Close()

	if *dryRun {
		logger.Info("DRY RUN MODE - no changes will be made")
	}

	results, err := src.CopyTo(ctx, dst, *dryRun)
	var read, written int64
	for _, r := range results {
		logger.Info("Migrated table", "table", r.Table, "read", r.Read, "written", r.Written, "skipped", r.Read-r.Written)
		read += r.Read
		written += r.Written
	}
	if err != nil {
		logger.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Migration complete", "read", read, "written", written, "dry_run", *dryRun)
}
