package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. MEDIAJOBS_SERVER_PORT.
const EnvPrefix = "MEDIAJOBS"

// DefaultEncoderArgs shrinks speech audio to mono Opus at 12 kbit/s.
var DefaultEncoderArgs = []string{
	"-i", "{input}",
	"-vn",
	"-map_metadata", "-1",
	"-ac", "1",
	"-c:a", "libopus",
	"-b:a", "12k",
	"-application", "voip",
	"{output}",
}

// Load configuration from a .env file, an optional config file
// (config.yaml/config.toml in . or ./config) and environment variables.
// Environment variables take precedence over values from config files.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.work_dir", filepath.Join(os.TempDir(), "mediajobs"))
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.url", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.retention", 24*time.Hour)
	v.SetDefault("task.sweep_interval", 10*time.Minute)

	v.SetDefault("media.max_upload_mb", 160.0)
	v.SetDefault("media.encode_threshold_mb", 24.5)
	v.SetDefault("media.allowed_extension", ".mp3")
	v.SetDefault("media.batch_size", 3)
	v.SetDefault("media.batch_delay_min", time.Second)
	v.SetDefault("media.batch_delay_max", 5*time.Second)
	v.SetDefault("media.playlist_item_cap", 30)
	v.SetDefault("media.bulk_item_cap", 50)
	v.SetDefault("media.fetch_timeout", 5*time.Minute)

	v.SetDefault("encoder.binary", "ffmpeg")
	v.SetDefault("encoder.args", DefaultEncoderArgs)
	v.SetDefault("encoder.output_extension", ".ogg")
	v.SetDefault("encoder.timeout", 10*time.Minute)

	v.SetDefault("transcription.default_provider", "openai")
	v.SetDefault("transcription.openai.base_url", "https://api.openai.com")
	v.SetDefault("transcription.openai.api_key", "")
	v.SetDefault("transcription.openai.model", "whisper-1")
	v.SetDefault("transcription.openai.timeout", 10*time.Minute)
	v.SetDefault("transcription.gemini.api_key", "")
	v.SetDefault("transcription.gemini.model", "gemini-2.0-flash")

	v.SetDefault("language.whisper_binary", "whisper-cli")
	v.SetDefault("language.model_path", "/whisper.cpp/models/ggml-tiny.bin")
	v.SetDefault("language.ffmpeg_binary", "ffmpeg")
	v.SetDefault("language.timeout", 2*time.Minute)

	v.SetDefault("gateway.token_url", "")
	v.SetDefault("gateway.client_id", "")
	v.SetDefault("gateway.client_secret", "")
	v.SetDefault("gateway.scope", "")
	v.SetDefault("gateway.timeout", 30*time.Second)

	v.SetDefault("file_store.base_url", "")
	v.SetDefault("file_store.health_path", "/api/HealthCheck")
	v.SetDefault("file_store.upload_path", "/api/File/upload")
	v.SetDefault("file_store.timeout", 10*time.Minute)

	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin_path", "")
	v.SetDefault("browser.page_url", "")
	v.SetDefault("browser.input_selector", "")
	v.SetDefault("browser.submit_selector", "")
	v.SetDefault("browser.link_selector", "")
	v.SetDefault("browser.max_attempts", 4)
	v.SetDefault("browser.initial_backoff", time.Second)
	v.SetDefault("browser.timeout", 2*time.Minute)
}
