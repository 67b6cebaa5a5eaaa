package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/phrazzld/mediajobs/internal/config"
	"github.com/phrazzld/mediajobs/internal/platform/logger"
	"github.com/phrazzld/mediajobs/internal/platform/migrate"
	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("migrations require the postgres or sqlite database driver")

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "mediajobs-server",
		Short:        "Asynchronous media transcription and download service",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and job workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadAppConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			if !skipMigrations && app.storage.db != nil {
				if err := app.storage.migrate(ctx, migrate.CommandUp, log); err != nil {
					app.cleanup()
					return fmt.Errorf("failed to apply migrations: %w", err)
				}
			}

			return app.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false,
		"do not apply pending migrations before serving")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|reset|status|version]",
		Short: "Run job store schema migrations",
		ValidArgs: []string{
			migrate.CommandUp,
			migrate.CommandDown,
			migrate.CommandReset,
			migrate.CommandStatus,
			migrate.CommandVersion,
		},
		Args: cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadAppConfig()
			if err != nil {
				return err
			}
			return runMigrations(cmd.Context(), cfg, args[0], log)
		},
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, command string, log *slog.Logger) error {
	s, err := openStorage(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			log.Error("failed to close database", "error", closeErr)
		}
	}()

	if s.db == nil {
		return errNoDatabase
	}
	return s.migrate(ctx, command, log)
}

// loadAppConfig loads configuration and sets up the process logger.
func loadAppConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver,
		"downloads_enabled", cfg.DownloadsEnabled(),
		"auth_enabled", cfg.Auth.JWTSecret != "")

	return cfg, log, nil
}
