package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"
	"github.com/phrazzld/mediajobs/internal/api"
	"github.com/phrazzld/mediajobs/internal/archive"
	"github.com/phrazzld/mediajobs/internal/config"
	"github.com/phrazzld/mediajobs/internal/encode"
	"github.com/phrazzld/mediajobs/internal/events"
	"github.com/phrazzld/mediajobs/internal/fetch"
	"github.com/phrazzld/mediajobs/internal/language"
	"github.com/phrazzld/mediajobs/internal/pipeline"
	"github.com/phrazzld/mediajobs/internal/platform/browser"
	"github.com/phrazzld/mediajobs/internal/platform/filestore"
	"github.com/phrazzld/mediajobs/internal/platform/gateway"
	"github.com/phrazzld/mediajobs/internal/platform/gemini"
	"github.com/phrazzld/mediajobs/internal/platform/openai"
	"github.com/phrazzld/mediajobs/internal/platform/youtube"
	"github.com/phrazzld/mediajobs/internal/process"
	"github.com/phrazzld/mediajobs/internal/redact"
	"github.com/phrazzld/mediajobs/internal/retry"
	"github.com/phrazzld/mediajobs/internal/task"
	"github.com/phrazzld/mediajobs/internal/transcription"
)

const lockFileName = ".lock"

var errWorkDirInUse = errors.New("work directory in use by another server")

// application holds the long-lived components of a running server.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	lock    *flock.Flock
	storage *storage
	runner  *task.TaskRunner
	sweeper *task.RetentionSweeper

	jobs      *api.JobHandler
	audio     *api.AudioHandler
	downloads *api.DownloadHandler
}

// newApplication builds every component from cfg. The work directory is
// locked for the lifetime of the application.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	if err := os.MkdirAll(cfg.Server.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Server.WorkDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock work directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", errWorkDirInUse, cfg.Server.WorkDir)
	}

	app := &application{config: cfg, logger: logger, lock: lock}
	if err := app.build(ctx); err != nil {
		app.cleanup()
		return nil, err
	}
	return app, nil
}

func (app *application) build(ctx context.Context) error {
	cfg := app.config

	s, err := openStorage(ctx, cfg.Database, app.logger)
	if err != nil {
		return err
	}
	app.storage = s

	emitter := events.NewInMemoryEventEmitter(app.logger)
	emitter.RegisterHandler(jobEventLogger(app.logger))

	app.runner = task.NewTaskRunner(s.jobs, emitter, task.TaskRunnerConfig{
		WorkerCount: cfg.Task.WorkerCount,
		QueueSize:   cfg.Task.QueueSize,
	}, app.logger)
	app.sweeper = task.NewRetentionSweeper(s.jobs, cfg.Task.Retention, cfg.Task.SweepInterval, app.logger)

	runner := process.NewExecRunner(app.logger)

	registry, err := buildProviders(ctx, cfg.Transcription, app.logger)
	if err != nil {
		return err
	}

	gate := encode.NewGate(runner, encode.Config{
		ThresholdMB:     cfg.Media.EncodeThresholdMB,
		Binary:          cfg.Encoder.Binary,
		Args:            cfg.Encoder.Args,
		OutputExtension: cfg.Encoder.OutputExtension,
		Timeout:         cfg.Encoder.Timeout,
	}, app.logger)

	var detector api.LanguageDetector
	if cfg.Language.WhisperBinary != "" && cfg.Language.ModelPath != "" {
		detector = language.NewDetector(runner, language.Config{
			FFmpegBinary:  cfg.Language.FFmpegBinary,
			WhisperBinary: cfg.Language.WhisperBinary,
			ModelPath:     cfg.Language.ModelPath,
			Timeout:       cfg.Language.Timeout,
		}, app.logger)
	}

	app.jobs = api.NewJobHandler(s.jobs)
	app.audio = api.NewAudioHandler(
		app.runner,
		pipeline.NewAudioPipeline(gate, registry, app.logger),
		registry,
		detector,
		api.UploadConfig{
			Dir:              filepath.Join(cfg.Server.WorkDir, "uploads"),
			MaxUploadMB:      cfg.Media.MaxUploadMB,
			AllowedExtension: cfg.Media.AllowedExtension,
		},
		app.logger,
	)

	yt := youtube.NewSource(app.logger)
	source := fetch.Source(yt)
	if cfg.Browser.Enabled {
		source = &fetch.FallbackSource{
			Primary:   yt,
			Secondary: newBrowserSource(cfg, app.logger),
			Logger:    app.logger,
		}
	}

	var downloads api.DownloadRunner
	if cfg.DownloadsEnabled() {
		downloads = newDownloadPipeline(cfg, yt, source, app.logger)
	} else {
		app.logger.Info("file store or gateway not configured, playlist and bulk downloads disabled")
	}
	app.downloads = api.NewDownloadHandler(app.runner, downloads, source, app.logger)

	return nil
}

func buildProviders(ctx context.Context, cfg config.TranscriptionConfig, logger *slog.Logger) (*transcription.Registry, error) {
	providers := []transcription.Provider{
		openai.NewClient(openai.Config{
			BaseURL: cfg.OpenAI.BaseURL,
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.OpenAI.Timeout,
		}, logger),
	}

	if cfg.Gemini.APIKey != "" {
		g, err := gemini.NewTranscriber(ctx, logger, gemini.Config{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini transcriber: %w", err)
		}
		providers = append(providers, g)
	}

	return transcription.NewRegistry(cfg.DefaultProvider, providers...)
}

func newBrowserSource(cfg *config.Config, logger *slog.Logger) *browser.Source {
	return browser.NewSource(browser.Config{
		BinPath:        cfg.Browser.BinPath,
		Headless:       cfg.Browser.Headless,
		PageURL:        cfg.Browser.PageURL,
		InputSelector:  cfg.Browser.InputSelector,
		SubmitSelector: cfg.Browser.SubmitSelector,
		LinkSelector:   cfg.Browser.LinkSelector,
		Timeout:        cfg.Browser.Timeout,
		WorkDir:        filepath.Join(cfg.Server.WorkDir, "browser"),
	}, retry.Policy{
		MaxAttempts:    cfg.Browser.MaxAttempts,
		InitialBackoff: cfg.Browser.InitialBackoff,
	}, logger)
}

func newDownloadPipeline(
	cfg *config.Config,
	expander pipeline.PlaylistExpander,
	source fetch.Source,
	logger *slog.Logger,
) *pipeline.DownloadPipeline {
	fetcher := fetch.NewFetcher(source, fetch.Config{
		BatchSize:   cfg.Media.BatchSize,
		DelayMin:    cfg.Media.BatchDelayMin,
		DelayMax:    cfg.Media.BatchDelayMax,
		ItemTimeout: cfg.Media.FetchTimeout,
	}, logger)

	workDir := filepath.Join(cfg.Server.WorkDir, "downloads")

	return pipeline.NewDownloadPipeline(
		pipeline.DownloadConfig{
			WorkDir:         workDir,
			PlaylistItemCap: cfg.Media.PlaylistItemCap,
			BulkItemCap:     cfg.Media.BulkItemCap,
		},
		expander,
		fetcher,
		archive.NewPackager(workDir, logger),
		filestore.NewClient(filestore.Config{
			BaseURL:    cfg.FileStore.BaseURL,
			HealthPath: cfg.FileStore.HealthPath,
			UploadPath: cfg.FileStore.UploadPath,
			Timeout:    cfg.FileStore.Timeout,
		}, logger),
		gateway.NewClient(gateway.Config{
			TokenURL:     cfg.Gateway.TokenURL,
			ClientID:     cfg.Gateway.ClientID,
			ClientSecret: cfg.Gateway.ClientSecret,
			Scope:        cfg.Gateway.Scope,
			Timeout:      cfg.Gateway.Timeout,
		}, logger),
		logger,
	)
}

// jobEventLogger records job lifecycle transitions.
func jobEventLogger(logger *slog.Logger) events.EventHandler {
	log := logger.With("component", "job_events")
	return events.HandlerFunc(func(_ context.Context, event *events.JobEvent) error {
		attrs := []any{"job_id", event.JobID, "job_type", event.JobType, "event", event.Type}
		switch event.Type {
		case events.JobFailed:
			log.Warn("job failed", append(attrs, "error", redact.String(event.Message))...)
		case events.JobSucceeded:
			log.Info("job succeeded", attrs...)
		default:
			log.Debug("job event", attrs...)
		}
		return nil
	})
}

// Run fails jobs orphaned by a previous process, starts the workers and
// serves HTTP until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	if err := app.runner.Recover(ctx); err != nil {
		app.cleanup()
		return err
	}
	app.runner.Start()
	app.sweeper.Start()

	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup stops background work and releases resources. It is safe to call
// on a partially built application.
func (app *application) cleanup() {
	var result *multierror.Error

	if app.runner != nil {
		app.runner.Stop()
	}
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close storage: %w", err))
		}
	}
	if app.lock != nil {
		if err := app.lock.Unlock(); err != nil {
			result = multierror.Append(result, fmt.Errorf("unlock work directory: %w", err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		app.logger.Error("cleanup failed", "error", err)
	}
}
