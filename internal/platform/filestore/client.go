package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/mediajobs/internal/domain"
)

const providerName = "file store"

// Config configures the client.
type Config struct {
	BaseURL    string
	HealthPath string
	UploadPath string
	Timeout    time.Duration
}

// Client calls the file storage service.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(config Config, logger *slog.Logger) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With("component", "filestore_client"),
	}
}

// HealthCheck fails with domain.ErrInfrastructure unless the service
// answers its health endpoint with a 2xx status.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+c.config.HealthPath, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to build health check request: %v", domain.ErrInfrastructure, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: file store health check failed: %v", domain.ErrInfrastructure, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: file store health check returned status %d", domain.ErrInfrastructure, resp.StatusCode)
	}
	return nil
}

type uploadResponse struct {
	FileURL string `json:"fileUrl"`
}

// Upload streams the file at path as multipart field "file" and returns the
// URL the service stored it under.
func (c *Client) Upload(ctx context.Context, token, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open upload file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	defer pr.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+c.config.UploadPath, pr)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.ProviderError{Provider: providerName, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", &domain.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return "", &domain.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: message}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.FileURL == "" {
		return "", &domain.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    "upload response has no fileUrl",
		}
	}

	c.logger.InfoContext(ctx, "archive uploaded",
		"file", filepath.Base(path),
		"duration_ms", time.Since(start).Milliseconds())
	return parsed.FileURL, nil
}
