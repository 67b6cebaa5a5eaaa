package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/phrazzld/mediajobs/internal/config"
	"github.com/phrazzld/mediajobs/internal/platform/memory"
	"github.com/phrazzld/mediajobs/internal/platform/migrate"
	"github.com/phrazzld/mediajobs/internal/platform/postgres"
	"github.com/phrazzld/mediajobs/internal/platform/sqlite"
	"github.com/phrazzld/mediajobs/internal/store"
)

// storage is the job store selected by configuration together with the
// database behind it. db is nil for the in-memory store.
type storage struct {
	jobs       store.JobStore
	db         *sql.DB
	dialect    string
	migrations fs.FS
}

// openStorage opens the job store for the configured driver.
func openStorage(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*storage, error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory job store")
		return &storage{jobs: memory.NewJobStore()}, nil

	case "postgres":
		db, err := sql.Open(postgres.DriverName, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := ping(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}

		logger.Info("database connection established", "driver", cfg.Driver)
		return &storage{
			jobs:       postgres.NewPostgresJobStore(db),
			db:         db,
			dialect:    postgres.Dialect,
			migrations: postgres.Migrations,
		}, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := ping(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}

		logger.Info("database connection established", "driver", cfg.Driver)
		return &storage{
			jobs:       sqlite.NewSQLiteJobStore(db),
			db:         db,
			dialect:    sqlite.Dialect,
			migrations: sqlite.Migrations,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// migrate runs a goose command against the database.
func (s *storage) migrate(ctx context.Context, command string, logger *slog.Logger) error {
	if s.db == nil {
		return errNoDatabase
	}
	return migrate.Run(ctx, s.db, s.dialect, s.migrations, command, logger)
}

// Close releases the database, if any.
func (s *storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
