package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrNoStream is returned by a Source that found nothing to download.
var ErrNoStream = errors.New("no audio stream available")

// Stream is an open download for one source URL.
type Stream struct {
	// Title is the human-readable name used to derive the file name.
	Title string
	// Extension includes the leading dot, e.g. ".mp3".
	Extension string
	// Body is the media content. The caller closes it.
	Body io.ReadCloser
}

// Source resolves a source URL to a media stream.
type Source interface {
	Open(ctx context.Context, url string) (*Stream, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, url string) (*Stream, error)

// Open calls f.
func (f SourceFunc) Open(ctx context.Context, url string) (*Stream, error) {
	return f(ctx, url)
}

// FallbackSource tries Primary first and Secondary when Primary fails.
// A nil Secondary makes it behave like Primary alone.
type FallbackSource struct {
	Primary   Source
	Secondary Source
	Logger    *slog.Logger
}

// Open implements Source.
func (s *FallbackSource) Open(ctx context.Context, url string) (*Stream, error) {
	stream, err := s.Primary.Open(ctx, url)
	if err == nil {
		return stream, nil
	}
	if s.Secondary == nil || ctx.Err() != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.Warn("primary source failed, trying fallback", "url", url, "error", err)
	}

	stream, fallbackErr := s.Secondary.Open(ctx, url)
	if fallbackErr != nil {
		return nil, fmt.Errorf("primary: %v; fallback: %w", err, fallbackErr)
	}
	return stream, nil
}
