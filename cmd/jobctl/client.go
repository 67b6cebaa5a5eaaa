package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/mediajobs/internal/api"
	"github.com/phrazzld/mediajobs/internal/api/shared"
)

// client talks to the mediajobs HTTP API.
type client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newClient(baseURL, token string, timeout time.Duration) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Status returns the status triple of job id.
func (c *client) Status(ctx context.Context, id string) (api.StatusResponse, error) {
	var resp api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SubmitBulk starts a bulk download and returns its handle.
func (c *client) SubmitBulk(ctx context.Context, urls []string) (string, error) {
	var resp api.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/audio/bulk", api.BulkRequest{URLs: urls}, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// SubmitPlaylist starts a playlist download and returns its handle.
func (c *client) SubmitPlaylist(ctx context.Context, playlistURL string) (string, error) {
	var resp api.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/audio/playlist", api.PlaylistRequest{URL: playlistURL}, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var apiErr shared.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
