package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/encode"
	"github.com/phrazzld/mediajobs/internal/transcription"
)

// Gate prepares an audio file for a provider.
type Gate interface {
	Prepare(ctx context.Context, path string) encode.Result
}

// AudioJob describes one transcription or translation.
type AudioJob struct {
	Mode transcription.Mode
	// Provider names the registry entry; empty selects the default.
	Provider string
	// FilePath is the uploaded file. The pipeline removes it when done.
	FilePath string
	Prompt   string
	APIKey   string
}

// AudioPipeline gates an uploaded file and sends it to a provider.
type AudioPipeline struct {
	gate      Gate
	providers *transcription.Registry
	logger    *slog.Logger
}

// NewAudioPipeline creates an AudioPipeline.
func NewAudioPipeline(gate Gate, providers *transcription.Registry, logger *slog.Logger) *AudioPipeline {
	return &AudioPipeline{
		gate:      gate,
		providers: providers,
		logger:    logger.With("component", "audio_pipeline"),
	}
}

// Run returns the provider's text for job. A gate failure ends the run with
// an error wrapping domain.ErrEncoding and the provider is not called.
func (p *AudioPipeline) Run(ctx context.Context, job AudioJob) (string, error) {
	defer p.remove(job.FilePath)

	provider, err := p.providers.Get(job.Provider)
	if err != nil {
		return "", err
	}

	prepared := p.gate.Prepare(ctx, job.FilePath)
	if !prepared.OK() {
		return "", prepared.Err()
	}
	if prepared.Encoded {
		defer p.remove(prepared.Path)
	}

	p.logger.InfoContext(ctx, "sending audio to provider",
		"provider", provider.Name(),
		"mode", job.Mode,
		"size_mb", prepared.SizeMB,
		"encoded", prepared.Encoded)

	text, err := transcription.Run(ctx, provider, job.Mode, transcription.Request{
		FilePath: prepared.Path,
		Prompt:   job.Prompt,
		APIKey:   job.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", job.Mode, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s returned no text: %w", provider.Name(), domain.ErrEmptyResult)
	}
	return text, nil
}

func (p *AudioPipeline) remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("failed to remove audio file", "path", path, "error", err)
	}
}
