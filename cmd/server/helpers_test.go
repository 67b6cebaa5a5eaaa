package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/mediajobs/internal/config"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a complete configuration backed by the in-memory store
// and rooted in a temporary work directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Server: config.ServerConfig{
			Port:            0,
			LogLevel:        "info",
			LogFormat:       "json",
			WorkDir:         t.TempDir(),
			ShutdownTimeout: time.Second,
		},
		Database: config.DatabaseConfig{Driver: "memory"},
		Task: config.TaskConfig{
			WorkerCount:   1,
			QueueSize:     4,
			Retention:     time.Hour,
			SweepInterval: time.Minute,
		},
		Media: config.MediaConfig{
			MaxUploadMB:       160,
			EncodeThresholdMB: 24.5,
			AllowedExtension:  ".mp3",
			BatchSize:         3,
			BatchDelayMin:     time.Second,
			BatchDelayMax:     5 * time.Second,
			PlaylistItemCap:   30,
			BulkItemCap:       50,
			FetchTimeout:      time.Minute,
		},
		Encoder: config.EncoderConfig{
			Binary:          "ffmpeg",
			Args:            config.DefaultEncoderArgs,
			OutputExtension: ".ogg",
			Timeout:         time.Minute,
		},
		Transcription: config.TranscriptionConfig{
			DefaultProvider: "openai",
			OpenAI: config.OpenAIConfig{
				BaseURL: "http://127.0.0.1:1",
				Model:   "whisper-1",
				Timeout: time.Second,
			},
			Gemini: config.GeminiConfig{Model: "gemini-2.0-flash"},
		},
		Language: config.LanguageConfig{Timeout: time.Second},
		Gateway:  config.GatewayConfig{Timeout: time.Second},
		FileStore: config.FileStoreConfig{
			HealthPath: "/health",
			UploadPath: "/upload",
			Timeout:    time.Second,
		},
		Browser: config.BrowserConfig{
			MaxAttempts:    1,
			InitialBackoff: time.Second,
			Timeout:        time.Second,
		},
	}
}

func enableDownloads(cfg *config.Config) {
	cfg.FileStore.BaseURL = "http://127.0.0.1:1"
	cfg.Gateway.TokenURL = "http://127.0.0.1:1/token"
	cfg.Gateway.ClientID = "client"
	cfg.Gateway.ClientSecret = "secret"
}
