package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/pipeline"
	"github.com/phrazzld/mediajobs/internal/task"
	"github.com/phrazzld/mediajobs/internal/transcription"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mp3Bytes returns content sniffed as audio/mpeg.
func mp3Bytes(size int) []byte {
	data := make([]byte, size)
	copy(data, "ID3\x04\x00\x00\x00\x00\x00\x00")
	return data
}

type mockSubmitter struct {
	mu       sync.Mutex
	tasks    []task.Task
	SubmitFn func(ctx context.Context, t task.Task) (string, error)
}

func (m *mockSubmitter) Submit(ctx context.Context, t task.Task) (string, error) {
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, t)
	}
	return t.ID(), nil
}

func (m *mockSubmitter) submitted() []task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]task.Task(nil), m.tasks...)
}

type mockAudioRunner struct {
	RunFn func(ctx context.Context, job pipeline.AudioJob) (string, error)
}

func (m *mockAudioRunner) Run(ctx context.Context, job pipeline.AudioJob) (string, error) {
	if m.RunFn != nil {
		return m.RunFn(ctx, job)
	}
	return "transcript", nil
}

type mockDownloadRunner struct {
	RunFn func(ctx context.Context, job pipeline.DownloadJob) (string, error)
}

func (m *mockDownloadRunner) Run(ctx context.Context, job pipeline.DownloadJob) (string, error) {
	if m.RunFn != nil {
		return m.RunFn(ctx, job)
	}
	return "https://files.example.com/archive.zip", nil
}

// mockProviders knows the names "", "openai" and "gemini".
type mockProviders struct{}

func (mockProviders) Get(name string) (transcription.Provider, error) {
	switch name {
	case "", "openai", "gemini":
		return nil, nil
	default:
		return nil, domain.NewValidationError("provider", "unknown provider "+name)
	}
}

type mockDetector struct {
	DetectFn func(ctx context.Context, path string) (string, error)
}

func (m *mockDetector) Detect(ctx context.Context, path string) (string, error) {
	return m.DetectFn(ctx, path)
}

// newUploadRequest builds a multipart request. An empty fileName omits the file part.
func newUploadRequest(t *testing.T, target, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile(formAudioFile, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}
