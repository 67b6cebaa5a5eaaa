package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/mediajobs/internal/archive"
	"github.com/phrazzld/mediajobs/internal/fetch"
)

// Fetcher downloads a list of URLs into a directory.
type Fetcher interface {
	FetchAll(ctx context.Context, urls []string, destDir string) fetch.Report
}

// Packager archives entries and hands the archive to a callback.
type Packager interface {
	Package(ctx context.Context, jobID string, entries []archive.Entry, use archive.UseFunc) error
}

// FileStore is the archive destination.
type FileStore interface {
	HealthCheck(ctx context.Context) error
	Upload(ctx context.Context, token, path string) (string, error)
}

// TokenSource issues bearer tokens for the file store.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// PlaylistExpander lists the item URLs of a playlist.
type PlaylistExpander interface {
	ExpandPlaylist(ctx context.Context, url string) ([]string, error)
}

// DownloadJob describes a playlist or bulk download. Exactly one of
// PlaylistURL and URLs is set.
type DownloadJob struct {
	JobID       string
	PlaylistURL string
	URLs        []string
}

// DownloadConfig holds the item caps.
type DownloadConfig struct {
	WorkDir         string
	PlaylistItemCap int
	BulkItemCap     int
}

// DownloadPipeline fetches media items and uploads them as one archive.
type DownloadPipeline struct {
	config   DownloadConfig
	expander PlaylistExpander
	fetcher  Fetcher
	packager Packager
	store    FileStore
	tokens   TokenSource
	logger   *slog.Logger
}

// NewDownloadPipeline creates a DownloadPipeline.
func NewDownloadPipeline(
	config DownloadConfig,
	expander PlaylistExpander,
	fetcher Fetcher,
	packager Packager,
	store FileStore,
	tokens TokenSource,
	logger *slog.Logger,
) *DownloadPipeline {
	return &DownloadPipeline{
		config:   config,
		expander: expander,
		fetcher:  fetcher,
		packager: packager,
		store:    store,
		tokens:   tokens,
		logger:   logger.With("component", "download_pipeline"),
	}
}

// Run downloads the job's items and returns the URL of the uploaded archive.
// Items that fail to download are dropped; if none survive the run fails
// with archive.ErrArchiveNotCreated.
func (p *DownloadPipeline) Run(ctx context.Context, job DownloadJob) (string, error) {
	log := p.logger.With("job_id", job.JobID)

	urls, limit, err := p.resolve(ctx, job)
	if err != nil {
		return "", err
	}
	urls = fetch.Truncate(urls, limit, log)

	if err := os.MkdirAll(p.config.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	destDir, err := os.MkdirTemp(p.config.WorkDir, "fetch-"+job.JobID+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(destDir); err != nil {
			log.Error("failed to remove download directory", "path", destDir, "error", err)
		}
	}()

	report := p.fetcher.FetchAll(ctx, urls, destDir)
	log.Info("items fetched",
		"requested", len(urls),
		"fetched", len(report.Items),
		"skipped", len(report.Skipped))

	entries := make([]archive.Entry, 0, len(report.Items))
	for _, item := range report.Items {
		entries = append(entries, archive.Entry{Name: item.Name, Path: item.Path})
	}

	var fileURL string
	err = p.packager.Package(ctx, job.JobID, entries, func(ctx context.Context, zipPath string) error {
		if err := p.store.HealthCheck(ctx); err != nil {
			return err
		}
		token, err := p.tokens.Token(ctx)
		if err != nil {
			return err
		}
		fileURL, err = p.store.Upload(ctx, token, zipPath)
		return err
	})
	if err != nil {
		return "", err
	}

	log.Info("archive uploaded", "file_url", fileURL)
	return fileURL, nil
}

func (p *DownloadPipeline) resolve(ctx context.Context, job DownloadJob) ([]string, int, error) {
	if job.PlaylistURL == "" {
		return job.URLs, p.config.BulkItemCap, nil
	}
	if p.expander == nil {
		return nil, 0, errors.New("playlist expansion is not configured")
	}
	urls, err := p.expander.ExpandPlaylist(ctx, job.PlaylistURL)
	if err != nil {
		return nil, 0, err
	}
	return urls, p.config.PlaylistItemCap, nil
}
