package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Config controls batching and pacing.
type Config struct {
	// BatchSize is the number of items fetched concurrently.
	BatchSize int
	// DelayMin and DelayMax bound the random pause between batches.
	DelayMin time.Duration
	DelayMax time.Duration
	// ItemTimeout bounds a single item's download. Zero means no limit.
	ItemTimeout time.Duration
}

// DefaultConfig returns batches of three with a 1-5s pause.
func DefaultConfig() Config {
	return Config{
		BatchSize: 3,
		DelayMin:  time.Second,
		DelayMax:  5 * time.Second,
	}
}

// Item is a successfully downloaded media file.
type Item struct {
	// Index is the position of URL in the input list.
	Index int
	URL   string
	// Name is the sanitized file name.
	Name string
	// Path is where the file was written.
	Path string
	Size int64
}

// Skipped records an item that was dropped.
type Skipped struct {
	Index  int
	URL    string
	Reason string
}

// Report is the outcome of FetchAll. Items are in input order.
type Report struct {
	Items   []Item
	Skipped []Skipped
}

// Fetcher downloads media items in paced batches.
type Fetcher struct {
	source Source
	config Config
	logger *slog.Logger

	// Sleep waits between batches. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Delay picks the pause before the next batch. Tests replace it.
	Delay func() time.Duration
}

// NewFetcher creates a Fetcher. A non-positive batch size falls back to 3.
func NewFetcher(source Source, config Config, logger *slog.Logger) *Fetcher {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.DelayMax < config.DelayMin {
		config.DelayMax = config.DelayMin
	}

	f := &Fetcher{
		source: source,
		config: config,
		logger: logger.With("component", "fetcher"),
		Sleep:  sleepContext,
	}
	f.Delay = f.randomDelay
	return f
}

// FetchAll downloads urls into destDir. Batches of BatchSize run one after
// another; items within a batch run concurrently and the whole batch is
// awaited before the pause and the next batch. Failed items are recorded in
// Report.Skipped. If ctx ends, the remaining items are skipped.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, destDir string) Report {
	var report Report

	batches := slices.Collect(slices.Chunk(urls, f.config.BatchSize))
	for b, batch := range batches {
		offset := b * f.config.BatchSize

		if err := ctx.Err(); err != nil {
			for i, url := range urls[offset:] {
				report.Skipped = append(report.Skipped, Skipped{Index: offset + i, URL: url, Reason: err.Error()})
			}
			break
		}

		f.logger.Debug("fetching batch",
			"batch", b+1,
			"batches", len(batches),
			"size", len(batch))

		items, skipped := f.fetchBatch(ctx, batch, offset, destDir)
		report.Items = append(report.Items, items...)
		report.Skipped = append(report.Skipped, skipped...)

		if b < len(batches)-1 {
			delay := f.Delay()
			f.logger.Debug("pausing before next batch", "delay_ms", delay.Milliseconds())
			if err := f.Sleep(ctx, delay); err != nil {
				f.logger.Warn("batch pause interrupted", "error", err)
			}
		}
	}

	f.logger.Info("fetch finished",
		"requested", len(urls),
		"fetched", len(report.Items),
		"skipped", len(report.Skipped))
	return report
}

func (f *Fetcher) fetchBatch(ctx context.Context, batch []string, offset int, destDir string) ([]Item, []Skipped) {
	results := make([]*Item, len(batch))
	failures := make([]*Skipped, len(batch))

	var wg conc.WaitGroup
	for i, url := range batch {
		index := offset + i
		wg.Go(func() {
			var catcher panics.Catcher
			catcher.Try(func() {
				item, err := f.fetchOne(ctx, index, url, destDir)
				if err != nil {
					failures[i] = &Skipped{Index: index, URL: url, Reason: err.Error()}
					return
				}
				results[i] = item
			})
			if recovered := catcher.Recovered(); recovered != nil {
				failures[i] = &Skipped{Index: index, URL: url, Reason: fmt.Sprintf("panic: %v", recovered.Value)}
			}
		})
	}
	wg.Wait()

	var (
		items   []Item
		skipped []Skipped
	)
	for i := range batch {
		switch {
		case results[i] != nil:
			items = append(items, *results[i])
		case failures[i] != nil:
			f.logger.Warn("skipping item",
				"index", failures[i].Index,
				"url", failures[i].URL,
				"reason", failures[i].Reason)
			skipped = append(skipped, *failures[i])
		}
	}
	return items, skipped
}

func (f *Fetcher) fetchOne(ctx context.Context, index int, url, destDir string) (*Item, error) {
	if f.config.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.ItemTimeout)
		defer cancel()
	}

	stream, err := f.source.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if stream == nil || stream.Body == nil {
		return nil, ErrNoStream
	}
	defer stream.Body.Close()

	ext := stream.Extension
	if ext == "" {
		ext = ".mp3"
	}
	name := SanitizeFileName(stream.Title, ext)

	// Each item gets its own directory so equal titles never collide.
	itemDir := filepath.Join(destDir, fmt.Sprintf("item-%04d", index))
	if err := os.MkdirAll(itemDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create item directory: %w", err)
	}
	path := filepath.Join(itemDir, name)

	size, err := writeStream(ctx, path, stream.Body)
	if err != nil {
		_ = os.RemoveAll(itemDir)
		return nil, err
	}
	if size == 0 {
		_ = os.RemoveAll(itemDir)
		return nil, ErrNoStream
	}

	return &Item{Index: index, URL: url, Name: name, Path: path, Size: size}, nil
}

func writeStream(ctx context.Context, path string, body io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	n, copyErr := io.Copy(file, contextReader{ctx: ctx, r: body})
	closeErr := file.Close()
	if copyErr != nil {
		return n, fmt.Errorf("failed to download stream: %w", copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("failed to write file: %w", closeErr)
	}
	return n, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func (f *Fetcher) randomDelay() time.Duration {
	span := f.config.DelayMax - f.config.DelayMin
	if span <= 0 {
		return f.config.DelayMin
	}
	return f.config.DelayMin + rand.N(span+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Truncate returns at most limit urls, logging when items are dropped.
func Truncate(urls []string, limit int, logger *slog.Logger) []string {
	if limit <= 0 || len(urls) <= limit {
		return urls
	}
	logger.Warn("item list exceeds cap, truncating",
		"requested", len(urls),
		"cap", limit,
		"dropped", len(urls)-limit)
	return urls[:limit]
}
