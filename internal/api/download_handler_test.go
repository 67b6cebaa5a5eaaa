package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/fetch"
	"github.com/phrazzld/mediajobs/internal/pipeline"
	"github.com/phrazzld/mediajobs/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDownloadHandler_Submit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		serve    func(h *DownloadHandler) http.HandlerFunc
		wantType string
		wantJob  pipeline.DownloadJob
	}{
		{
			name:     "playlist",
			body:     `{"url":"https://www.youtube.com/playlist?list=PL123"}`,
			serve:    func(h *DownloadHandler) http.HandlerFunc { return h.Playlist },
			wantType: domain.JobTypePlaylistDownload,
			wantJob: pipeline.DownloadJob{
				JobID:       "job-42",
				PlaylistURL: "https://www.youtube.com/playlist?list=PL123",
			},
		},
		{
			name:     "bulk",
			body:     `{"urls":["https://www.youtube.com/watch?v=a","http://example.com/b"]}`,
			serve:    func(h *DownloadHandler) http.HandlerFunc { return h.Bulk },
			wantType: domain.JobTypeBulkDownload,
			wantJob: pipeline.DownloadJob{
				JobID: "job-42",
				URLs:  []string{"https://www.youtube.com/watch?v=a", "http://example.com/b"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got pipeline.DownloadJob
			runner := &mockDownloadRunner{RunFn: func(_ context.Context, job pipeline.DownloadJob) (string, error) {
				got = job
				return "https://files.example.com/x.zip", nil
			}}
			submitter := &mockSubmitter{}
			h := NewDownloadHandler(submitter, runner, nil, setupTestLogger())

			w := httptest.NewRecorder()
			tc.serve(h)(w, postJSON("/api/audio/x", tc.body))

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var resp SubmitResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

			tasks := submitter.submitted()
			require.Len(t, tasks, 1)
			assert.Equal(t, tasks[0].ID(), resp.JobID)
			assert.Equal(t, tc.wantType, tasks[0].Type())

			result, err := tasks[0].Execute(task.WithJobID(context.Background(), "job-42"))
			require.NoError(t, err)
			assert.Equal(t, "https://files.example.com/x.zip", result)
			assert.Equal(t, tc.wantJob, got)
		})
	}
}

func TestDownloadHandler_ValidationCreatesNoJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		bulk    bool
		body    string
		wantMsg string
	}{
		{name: "empty body", body: "", wantMsg: "Invalid request format"},
		{name: "malformed json", body: `{"url":`, wantMsg: "Invalid request format"},
		{name: "unknown field", body: `{"link":"https://example.com"}`, wantMsg: "Invalid request format"},
		{name: "missing url", body: `{}`, wantMsg: "Invalid url: required field"},
		{name: "non http scheme", body: `{"url":"ftp://example.com/list"}`, wantMsg: "Invalid url"},
		{name: "not a url", body: `{"url":"playlist please"}`, wantMsg: "Invalid url"},
		{name: "bulk missing urls", bulk: true, body: `{}`, wantMsg: "Invalid urls: required field"},
		{name: "bulk empty list", bulk: true, body: `{"urls":[]}`, wantMsg: "Invalid urls: too few items"},
		{name: "bulk bad item", bulk: true, body: `{"urls":["https://example.com/a","nope"]}`, wantMsg: "Invalid urls[1]"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			submitter := &mockSubmitter{}
			h := NewDownloadHandler(submitter, &mockDownloadRunner{}, nil, setupTestLogger())

			serve := h.Playlist
			if tc.bulk {
				serve = h.Bulk
			}
			w := httptest.NewRecorder()
			serve(w, postJSON("/api/audio/x", tc.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tc.wantMsg)
			assert.Empty(t, submitter.submitted())
		})
	}
}

func TestDownloadHandler_Stream(t *testing.T) {
	t.Parallel()

	payload := mp3Bytes(8192)

	t.Run("streams the best audio", func(t *testing.T) {
		t.Parallel()

		var opened string
		source := fetch.SourceFunc(func(_ context.Context, url string) (*fetch.Stream, error) {
			opened = url
			return &fetch.Stream{
				Title:     "My: Song",
				Extension: ".mp3",
				Body:      io.NopCloser(bytes.NewReader(payload)),
			}, nil
		})
		h := NewDownloadHandler(&mockSubmitter{}, &mockDownloadRunner{}, source, setupTestLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/audio?videoUrl=https://www.youtube.com/watch%3Fv%3Dabc", nil)
		w := httptest.NewRecorder()
		h.Stream(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://www.youtube.com/watch?v=abc", opened)
		assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="My Song.mp3"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, payload, w.Body.Bytes())
	})

	t.Run("missing url", func(t *testing.T) {
		t.Parallel()

		h := NewDownloadHandler(&mockSubmitter{}, &mockDownloadRunner{}, nil, setupTestLogger())
		w := httptest.NewRecorder()
		h.Stream(w, httptest.NewRequest(http.MethodGet, "/api/audio", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid videoUrl")
	})

	noStream := []struct {
		name   string
		stream *fetch.Stream
		err    error
	}{
		{name: "no stream", err: fmt.Errorf("youtube: %w", fetch.ErrNoStream)},
		{name: "nil stream"},
		{name: "stream without body", stream: &fetch.Stream{Title: "song", Extension: ".mp3"}},
	}
	for _, tt := range noStream {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			source := fetch.SourceFunc(func(context.Context, string) (*fetch.Stream, error) {
				return tt.stream, tt.err
			})
			h := NewDownloadHandler(&mockSubmitter{}, &mockDownloadRunner{}, source, setupTestLogger())

			w := httptest.NewRecorder()
			h.Stream(w, httptest.NewRequest(http.MethodGet, "/api/audio?videoUrl=https://example.com/v", nil))

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Contains(t, w.Body.String(), "No audio stream available for this URL")
		})
	}
}
