package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource serves "content of <url>" titled after the URL. URLs starting
// with "bad" fail, "panic" panics and "empty" returns an empty body.
type fakeSource struct {
	active    atomic.Int32
	maxActive atomic.Int32
	hold      time.Duration
}

func (s *fakeSource) Open(ctx context.Context, url string) (*Stream, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		current := s.maxActive.Load()
		if n <= current || s.maxActive.CompareAndSwap(current, n) {
			break
		}
	}
	time.Sleep(s.hold)

	switch {
	case strings.HasPrefix(url, "bad"):
		return nil, errors.New("extraction failed")
	case strings.HasPrefix(url, "panic"):
		panic("extractor blew up")
	case strings.HasPrefix(url, "empty"):
		return &Stream{Title: url, Extension: ".mp3", Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	return &Stream{
		Title:     "Title " + url,
		Extension: ".mp3",
		Body:      io.NopCloser(strings.NewReader("content of " + url)),
	}, nil
}

// sleepRecorder replaces the inter-batch pause.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func newTestFetcher(source Source, rec *sleepRecorder) *Fetcher {
	f := NewFetcher(source, DefaultConfig(), testLogger())
	f.Sleep = rec.Sleep
	f.Delay = func() time.Duration { return 2 * time.Second }
	return f
}

func urlsOf(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.URL)
	}
	return out
}

func TestFetchAll_SevenItems(t *testing.T) {
	t.Parallel()

	source := &fakeSource{hold: 20 * time.Millisecond}
	rec := &sleepRecorder{}
	fetcher := newTestFetcher(source, rec)

	urls := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	dest := t.TempDir()

	report := fetcher.FetchAll(context.Background(), urls, dest)

	assert.Equal(t, urls, urlsOf(report.Items))
	assert.Empty(t, report.Skipped)
	// Three batches (3,3,1) mean exactly two pauses.
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, rec.delays)
	assert.LessOrEqual(t, source.maxActive.Load(), int32(3))

	for i, item := range report.Items {
		assert.Equal(t, i, item.Index)
		assert.Equal(t, "Title "+item.URL+".mp3", item.Name)
		assert.LessOrEqual(t, len(item.Name), MaxFileNameLength)

		data, err := os.ReadFile(item.Path)
		require.NoError(t, err)
		assert.Equal(t, "content of "+item.URL, string(data))
		assert.Equal(t, int64(len(data)), item.Size)
		assert.True(t, strings.HasPrefix(item.Path, dest))
	}
}

func TestFetchAll_IsolatesFailures(t *testing.T) {
	t.Parallel()

	rec := &sleepRecorder{}
	fetcher := newTestFetcher(&fakeSource{}, rec)

	urls := []string{"u1", "bad-2", "u3", "panic-4", "empty-5", "u6"}
	report := fetcher.FetchAll(context.Background(), urls, t.TempDir())

	assert.Equal(t, []string{"u1", "u3", "u6"}, urlsOf(report.Items))
	require.Len(t, report.Skipped, 3)

	assert.Equal(t, 1, report.Skipped[0].Index)
	assert.Contains(t, report.Skipped[0].Reason, "extraction failed")
	assert.Equal(t, 3, report.Skipped[1].Index)
	assert.Contains(t, report.Skipped[1].Reason, "panic")
	assert.Equal(t, 4, report.Skipped[2].Index)
	assert.Contains(t, report.Skipped[2].Reason, ErrNoStream.Error())

	assert.Len(t, rec.delays, 1)
}

func TestFetchAll_DuplicateTitlesDoNotCollide(t *testing.T) {
	t.Parallel()

	source := SourceFunc(func(ctx context.Context, url string) (*Stream, error) {
		return &Stream{Title: "same", Extension: ".mp3", Body: io.NopCloser(strings.NewReader(url))}, nil
	})
	fetcher := newTestFetcher(source, &sleepRecorder{})

	report := fetcher.FetchAll(context.Background(), []string{"a", "b"}, t.TempDir())
	require.Len(t, report.Items, 2)
	assert.NotEqual(t, report.Items[0].Path, report.Items[1].Path)
	assert.Equal(t, report.Items[0].Name, report.Items[1].Name)
}

func TestFetchAll_SingleBatchNoDelay(t *testing.T) {
	t.Parallel()

	rec := &sleepRecorder{}
	fetcher := newTestFetcher(&fakeSource{}, rec)

	report := fetcher.FetchAll(context.Background(), []string{"u1", "u2", "u3"}, t.TempDir())
	assert.Len(t, report.Items, 3)
	assert.Empty(t, rec.delays)

	report = fetcher.FetchAll(context.Background(), nil, t.TempDir())
	assert.Empty(t, report.Items)
	assert.Empty(t, rec.delays)
}

func TestFetchAll_CancelledContextSkipsRemaining(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	fetcher := NewFetcher(&fakeSource{}, DefaultConfig(), testLogger())
	fetcher.Delay = func() time.Duration { return 0 }
	fetcher.Sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	report := fetcher.FetchAll(ctx, []string{"u1", "u2", "u3", "u4", "u5"}, t.TempDir())
	assert.Equal(t, []string{"u1", "u2", "u3"}, urlsOf(report.Items))
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, "u4", report.Skipped[0].URL)
	assert.Equal(t, "u5", report.Skipped[1].URL)
}

func TestFetcher_RandomDelayBounds(t *testing.T) {
	t.Parallel()

	fetcher := NewFetcher(&fakeSource{}, DefaultConfig(), testLogger())
	for i := 0; i < 200; i++ {
		d := fetcher.Delay()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}

	fixed := NewFetcher(&fakeSource{}, Config{BatchSize: 0, DelayMin: time.Second, DelayMax: 0}, testLogger())
	assert.Equal(t, time.Second, fixed.Delay())
	assert.Equal(t, 3, fixed.config.BatchSize)
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	urls := make([]string, 60)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/watch?v=%d", i)
	}

	assert.Len(t, Truncate(urls, 50, testLogger()), 50)
	assert.Len(t, Truncate(urls, 30, testLogger()), 30)
	assert.Equal(t, urls[:30], Truncate(urls, 30, testLogger()))
	assert.Len(t, Truncate(urls[:10], 30, testLogger()), 10)
	assert.Len(t, Truncate(urls, 0, testLogger()), 60)
}

func TestFallbackSource(t *testing.T) {
	t.Parallel()

	ok := SourceFunc(func(ctx context.Context, url string) (*Stream, error) {
		return &Stream{Title: "fallback", Body: io.NopCloser(strings.NewReader("x"))}, nil
	})
	failing := SourceFunc(func(ctx context.Context, url string) (*Stream, error) {
		return nil, errors.New("primary down")
	})

	t.Run("primary success", func(t *testing.T) {
		src := &FallbackSource{Primary: ok, Secondary: failing, Logger: testLogger()}
		stream, err := src.Open(context.Background(), "u")
		require.NoError(t, err)
		assert.Equal(t, "fallback", stream.Title)
	})

	t.Run("falls back", func(t *testing.T) {
		src := &FallbackSource{Primary: failing, Secondary: ok, Logger: testLogger()}
		stream, err := src.Open(context.Background(), "u")
		require.NoError(t, err)
		assert.Equal(t, "fallback", stream.Title)
	})

	t.Run("both fail", func(t *testing.T) {
		src := &FallbackSource{Primary: failing, Secondary: failing}
		_, err := src.Open(context.Background(), "u")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "primary: primary down")
	})

	t.Run("no secondary", func(t *testing.T) {
		src := &FallbackSource{Primary: failing}
		_, err := src.Open(context.Background(), "u")
		assert.EqualError(t, err, "primary down")
	})
}
