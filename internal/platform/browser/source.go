package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/phrazzld/mediajobs/internal/fetch"
	"github.com/phrazzld/mediajobs/internal/retry"
)

// ErrDownloadNotStarted is returned when clicking the link triggers no download.
var ErrDownloadNotStarted = errors.New("download did not start")

// Config configures the page interaction.
type Config struct {
	BinPath        string
	Headless       bool
	PageURL        string
	InputSelector  string
	SubmitSelector string
	LinkSelector   string
	// Timeout bounds one attempt.
	Timeout time.Duration
	// WorkDir receives downloads before they are handed to the caller.
	WorkDir string
}

// attemptFunc performs one pass of the page sequence.
type attemptFunc func(ctx context.Context, url string) (*fetch.Stream, error)

// Source implements fetch.Source with a headless browser.
type Source struct {
	config  Config
	policy  retry.Policy
	logger  *slog.Logger
	attempt attemptFunc
}

var _ fetch.Source = (*Source)(nil)

// NewSource creates a Source. Each Open retries transient failures with
// policy.
func NewSource(config Config, policy retry.Policy, logger *slog.Logger) *Source {
	s := &Source{
		config: config,
		policy: policy,
		logger: logger.With("component", "browser_source"),
	}
	s.attempt = s.runPage
	return s
}

// Open implements fetch.Source.
func (s *Source) Open(ctx context.Context, url string) (*fetch.Stream, error) {
	var (
		stream  *fetch.Stream
		attempt int
	)
	err := s.policy.Do(ctx, IsTransient, func(ctx context.Context) error {
		attempt++
		st, err := s.attempt(ctx, url)
		if err != nil {
			s.logger.WarnContext(ctx, "browser attempt failed",
				"url", url,
				"attempt", attempt,
				"error", err)
			return err
		}
		stream = st
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("browser fallback failed after %d attempts: %w", attempt, err)
	}
	return stream, nil
}

// IsTransient reports whether a page failure may succeed on retry: a missing
// element, a timeout or a download that never started.
func IsTransient(err error) bool {
	var notFound *rod.ElementNotFoundError
	return errors.As(err, &notFound) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrDownloadNotStarted)
}

// runPage drives one browser session from launch to captured download.
func (s *Source) runPage(ctx context.Context, url string) (*fetch.Stream, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	l := launcher.New().Headless(s.config.Headless).Context(ctx)
	if s.config.BinPath != "" {
		l = l.Bin(s.config.BinPath)
	}
	defer l.Cleanup()

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if err := page.Navigate(s.config.PageURL); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("page did not load: %w", err)
	}

	input, err := page.Element(s.config.InputSelector)
	if err != nil {
		return nil, fmt.Errorf("input field: %w", err)
	}
	if err := input.Input(url); err != nil {
		return nil, fmt.Errorf("failed to fill input: %w", err)
	}

	submit, err := page.Element(s.config.SubmitSelector)
	if err != nil {
		return nil, fmt.Errorf("submit button: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("failed to click submit: %w", err)
	}

	link, err := page.Element(s.config.LinkSelector)
	if err != nil {
		return nil, fmt.Errorf("download link: %w", err)
	}

	downloadDir, err := s.newDownloadDir()
	if err != nil {
		return nil, err
	}

	wait := browser.WaitDownload(downloadDir)
	if err := link.Click(proto.InputMouseButtonLeft, 1); err != nil {
		_ = os.RemoveAll(downloadDir)
		return nil, fmt.Errorf("failed to click download link: %w", err)
	}

	done := make(chan *proto.PageDownloadWillBegin, 1)
	go func() { done <- wait() }()

	var info *proto.PageDownloadWillBegin
	select {
	case info = <-done:
	case <-ctx.Done():
		_ = os.RemoveAll(downloadDir)
		return nil, fmt.Errorf("%w: %w", ErrDownloadNotStarted, ctx.Err())
	}
	if info == nil || info.GUID == "" {
		_ = os.RemoveAll(downloadDir)
		return nil, ErrDownloadNotStarted
	}
	suggested := info.SuggestedFilename

	file, err := os.Open(filepath.Join(downloadDir, info.GUID))
	if err != nil {
		_ = os.RemoveAll(downloadDir)
		return nil, fmt.Errorf("%w: %v", ErrDownloadNotStarted, err)
	}

	ext := filepath.Ext(suggested)
	if ext == "" {
		ext = ".mp3"
	}

	s.logger.InfoContext(ctx, "download captured", "file", suggested)
	return &fetch.Stream{
		Title:     strings.TrimSuffix(suggested, filepath.Ext(suggested)),
		Extension: ext,
		Body:      &dirFile{File: file, dir: downloadDir},
	}, nil
}

// newDownloadDir creates a fresh directory under WorkDir, creating WorkDir
// itself on first use.
func (s *Source) newDownloadDir() (string, error) {
	if err := os.MkdirAll(s.config.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	dir, err := os.MkdirTemp(s.config.WorkDir, "browser-download-")
	if err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	return dir, nil
}

// dirFile removes its download directory when closed.
type dirFile struct {
	*os.File
	dir string
}

func (f *dirFile) Close() error {
	err := f.File.Close()
	if rmErr := os.RemoveAll(f.dir); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
