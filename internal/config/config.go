package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server" validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database" validate:"required"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Task          TaskConfig          `mapstructure:"task" validate:"required"`
	Media         MediaConfig         `mapstructure:"media" validate:"required"`
	Encoder       EncoderConfig       `mapstructure:"encoder" validate:"required"`
	Transcription TranscriptionConfig `mapstructure:"transcription" validate:"required"`
	Language      LanguageConfig      `mapstructure:"language"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	FileStore     FileStoreConfig     `mapstructure:"file_store"`
	Browser       BrowserConfig       `mapstructure:"browser"`
}

// ServerConfig contains HTTP server and process-level settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"required,oneof=json text"`
	WorkDir         string        `mapstructure:"work_dir" validate:"required"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig selects the job store backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory postgres sqlite"`
	URL    string `mapstructure:"url" validate:"required_unless=Driver memory"`
}

// AuthConfig configures inbound bearer-token authentication. An empty
// JWTSecret disables authentication.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	Issuer    string `mapstructure:"issuer"`
}

// TaskConfig configures the background job runner.
type TaskConfig struct {
	WorkerCount   int           `mapstructure:"worker_count" validate:"gt=0"`
	QueueSize     int           `mapstructure:"queue_size" validate:"gt=0"`
	Retention     time.Duration `mapstructure:"retention" validate:"gte=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
}

// MediaConfig holds the size, format and pacing limits of the pipeline.
type MediaConfig struct {
	MaxUploadMB       float64       `mapstructure:"max_upload_mb" validate:"gt=0"`
	EncodeThresholdMB float64       `mapstructure:"encode_threshold_mb" validate:"gt=0,ltfield=MaxUploadMB"`
	AllowedExtension  string        `mapstructure:"allowed_extension" validate:"required,startswith=."`
	BatchSize         int           `mapstructure:"batch_size" validate:"gt=0"`
	BatchDelayMin     time.Duration `mapstructure:"batch_delay_min" validate:"gte=0"`
	BatchDelayMax     time.Duration `mapstructure:"batch_delay_max" validate:"gtefield=BatchDelayMin"`
	PlaylistItemCap   int           `mapstructure:"playlist_item_cap" validate:"gt=0"`
	BulkItemCap       int           `mapstructure:"bulk_item_cap" validate:"gt=0"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
}

// EncoderConfig configures the external audio encoder. Args is a template
// in which {input} and {output} are replaced by file paths.
type EncoderConfig struct {
	Binary          string        `mapstructure:"binary" validate:"required"`
	Args            []string      `mapstructure:"args" validate:"required,min=1"`
	OutputExtension string        `mapstructure:"output_extension" validate:"required,startswith=."`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// TranscriptionConfig configures the audio-to-text providers.
type TranscriptionConfig struct {
	DefaultProvider string       `mapstructure:"default_provider" validate:"required,oneof=openai gemini"`
	OpenAI          OpenAIConfig `mapstructure:"openai"`
	Gemini          GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig configures the Whisper-compatible HTTP provider. APIKey may be
// empty when callers supply their own key per request.
type OpenAIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// GeminiConfig configures the Gemini provider. It is registered only when
// APIKey is set.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model" validate:"required"`
}

// LanguageConfig configures local spoken-language detection.
type LanguageConfig struct {
	WhisperBinary string        `mapstructure:"whisper_binary"`
	ModelPath     string        `mapstructure:"model_path"`
	FFmpegBinary  string        `mapstructure:"ffmpeg_binary"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// GatewayConfig configures the client-credentials token exchange.
type GatewayConfig struct {
	TokenURL     string        `mapstructure:"token_url" validate:"omitempty,url"`
	ClientID     string        `mapstructure:"client_id" validate:"required_with=TokenURL"`
	ClientSecret string        `mapstructure:"client_secret" validate:"required_with=TokenURL"`
	Scope        string        `mapstructure:"scope"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// FileStoreConfig configures the archive destination service.
type FileStoreConfig struct {
	BaseURL    string        `mapstructure:"base_url" validate:"omitempty,url"`
	HealthPath string        `mapstructure:"health_path" validate:"required"`
	UploadPath string        `mapstructure:"upload_path" validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// BrowserConfig configures the headless-browser extraction fallback.
type BrowserConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Headless       bool          `mapstructure:"headless"`
	BinPath        string        `mapstructure:"bin_path"`
	PageURL        string        `mapstructure:"page_url" validate:"required_if=Enabled true"`
	InputSelector  string        `mapstructure:"input_selector" validate:"required_if=Enabled true"`
	SubmitSelector string        `mapstructure:"submit_selector" validate:"required_if=Enabled true"`
	LinkSelector   string        `mapstructure:"link_selector" validate:"required_if=Enabled true"`
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gt=0"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// DownloadsEnabled reports whether the archive destination and credential
// exchange are configured.
func (c *Config) DownloadsEnabled() bool {
	return c.FileStore.BaseURL != "" && c.Gateway.TokenURL != ""
}
