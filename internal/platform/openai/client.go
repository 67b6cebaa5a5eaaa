package openai

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
	"github.com/phrazzld/mediajobs/internal/transcription"
)

// ProviderName is the registry name of this provider.
const ProviderName = "openai"

const (
	transcriptionsPath = "/v1/audio/transcriptions"
	translationsPath   = "/v1/audio/translations"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 4096
)

// Config configures the client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls the audio endpoints.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

var _ transcription.Provider = (*Client)(nil)

// NewClient creates a Client. The timeout covers the whole request
// including the upload.
func NewClient(config Config, logger *slog.Logger) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With("component", "openai_client"),
	}
}

// Name implements transcription.Provider.
func (c *Client) Name() string {
	return ProviderName
}

// Transcribe implements transcription.Provider.
func (c *Client) Transcribe(ctx context.Context, req transcription.Request) (string, error) {
	return c.call(ctx, transcriptionsPath, req)
}

// Translate implements transcription.Provider.
func (c *Client) Translate(ctx context.Context, req transcription.Request) (string, error) {
	return c.call(ctx, translationsPath, req)
}

type textResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, path string, req transcription.Request) (string, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.config.APIKey
	}
	if apiKey == "" {
		return "", &domain.ProviderError{Provider: ProviderName, Message: "no API key configured"}
	}

	file, err := os.Open(req.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	body, contentType := c.multipartBody(file, filepath.Base(req.FilePath), req.Prompt)
	defer body.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, body)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", contentType)

	start := time.Now()
	c.logger.DebugContext(ctx, "sending audio to provider", "path", path, "model", c.config.Model)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.ProviderError{Provider: ProviderName, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.statusError(resp)
	}

	var parsed textResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &domain.ProviderError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Message:    "malformed response body: " + err.Error(),
		}
	}

	c.logger.InfoContext(ctx, "provider call succeeded",
		"path", path,
		"duration_ms", time.Since(start).Milliseconds(),
		"text_length", len(parsed.Text))
	return parsed.Text, nil
}

// multipartBody streams the form through a pipe so the file is never held
// in memory.
func (c *Client) multipartBody(file io.Reader, fileName, prompt string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeForm(mw, file, fileName, c.config.Model, prompt)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

func writeForm(mw *multipart.Writer, file io.Reader, fileName, model, prompt string) error {
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := mw.WriteField("model", model); err != nil {
		return err
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return err
	}
	if prompt != "" {
		if err := mw.WriteField("prompt", prompt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := strings.TrimSpace(string(raw))
	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &domain.ProviderError{
		Provider:   ProviderName,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}
