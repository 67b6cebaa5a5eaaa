package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/phrazzld/mediajobs/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", serverURL, "--token", "test-token"}, args...))

	err := root.Execute()
	return out.String(), err
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/api/jobs/job-1":
			writeJSON(w, http.StatusOK, api.StatusResponse{Status: "Succeeded", Result: "https://files.example/a.zip"})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Job not found"})
		}
	}))
	defer srv.Close()

	t.Run("known job", func(t *testing.T) {
		out, err := runCommand(t, srv.URL, "status", "job-1")
		require.NoError(t, err)
		assert.Contains(t, out, "job-1")
		assert.Contains(t, out, "Succeeded")
		assert.Contains(t, out, "https://files.example/a.zip")
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := runCommand(t, srv.URL, "status", "missing")
		require.Error(t, err)
		assert.Equal(t, "server returned 404: Job not found", err.Error())
	})

	t.Run("requires an id", func(t *testing.T) {
		_, err := runCommand(t, srv.URL, "status")
		assert.Error(t, err)
	})
}

func TestWaitCommand(t *testing.T) {
	t.Parallel()

	t.Run("polls until terminal", func(t *testing.T) {
		t.Parallel()

		var polls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if polls.Add(1) < 3 {
				writeJSON(w, http.StatusOK, api.StatusResponse{Status: "Running"})
				return
			}
			writeJSON(w, http.StatusOK, api.StatusResponse{Status: "Succeeded", Result: "done"})
		}))
		defer srv.Close()

		out, err := runCommand(t, srv.URL, "wait", "job-1", "--interval", "10ms")
		require.NoError(t, err)
		assert.Equal(t, int32(3), polls.Load())
		assert.Contains(t, out, "Succeeded")
	})

	t.Run("failed job returns an error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, api.StatusResponse{Status: "Failed", Error: "archive could not be created"})
		}))
		defer srv.Close()

		out, err := runCommand(t, srv.URL, "wait", "job-1", "--interval", "10ms")
		require.ErrorIs(t, err, errJobFailed)
		assert.Contains(t, out, "archive could not be created")
	})

	t.Run("times out", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, api.StatusResponse{Status: "Pending"})
		}))
		defer srv.Close()

		_, err := runCommand(t, srv.URL, "wait", "job-1", "--interval", "10ms", "--timeout", "50ms")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "waiting for job job-1")
	})
}

func TestSubmitCommands(t *testing.T) {
	t.Parallel()

	var bulk api.BulkRequest
	var playlist api.PlaylistRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		switch r.URL.Path {
		case "/api/audio/bulk":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&bulk))
			writeJSON(w, http.StatusOK, api.SubmitResponse{JobID: "bulk-1"})
		case "/api/audio/playlist":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&playlist))
			writeJSON(w, http.StatusOK, api.SubmitResponse{JobID: "playlist-1"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := runCommand(t, srv.URL, "bulk", "https://example.com/a", "https://example.com/b")
	require.NoError(t, err)
	assert.Contains(t, out, "bulk-1")
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, bulk.URLs)

	out, err = runCommand(t, srv.URL, "playlist", "https://example.com/list")
	require.NoError(t, err)
	assert.Contains(t, out, "playlist-1")
	assert.Equal(t, "https://example.com/list", playlist.URL)
}

func TestSubmitCommand_ValidationError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid urls: must be a valid http(s) URL"})
	}))
	defer srv.Close()

	_, err := runCommand(t, srv.URL, "bulk", "not-a-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server returned 400")
}

func TestRenderStatus(t *testing.T) {
	t.Parallel()

	out := renderStatus("job-9", api.StatusResponse{Status: "Pending"})
	assert.Contains(t, out, "Job")
	assert.Contains(t, out, "job-9")
	assert.Contains(t, out, "Pending")
}
