package language

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mediajobs/internal/process"
)

// Unknown is returned when whisper does not report a language.
const Unknown = "unknown"

const detectedMarker = "auto-detected language:"

// Config configures the external binaries.
type Config struct {
	FFmpegBinary  string
	WhisperBinary string
	ModelPath     string
	Timeout       time.Duration
}

// Detector converts audio to 16 kHz WAV and asks whisper for its language.
type Detector struct {
	runner process.Runner
	config Config
	logger *slog.Logger
}

// NewDetector creates a Detector.
func NewDetector(runner process.Runner, config Config, logger *slog.Logger) *Detector {
	return &Detector{
		runner: runner,
		config: config,
		logger: logger.With("component", "language_detector"),
	}
}

// Detect returns the language code whisper reports for the file at path,
// or Unknown when whisper ran but printed no detection line.
func (d *Detector) Detect(ctx context.Context, path string) (string, error) {
	wav := filepath.Join(filepath.Dir(path), uuid.NewString()+".wav")
	defer func() {
		if err := os.Remove(wav); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("failed to remove wav file", "path", wav, "error", err)
		}
	}()

	args, err := process.Expand(
		[]string{"-y", "-i", "{input}", "-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le", "{output}"},
		map[string]string{"input": path, "output": wav},
	)
	if err != nil {
		return "", err
	}

	conv, err := d.runner.Run(ctx, process.Command{
		Name:    d.config.FFmpegBinary,
		Args:    args,
		Timeout: d.config.Timeout,
	})
	if err != nil {
		return "", fmt.Errorf("failed to convert audio: %w", err)
	}
	if !conv.Success() {
		return "", fmt.Errorf("audio conversion exited with status %d", conv.ExitCode)
	}

	args, err = process.Expand(
		[]string{"-m", "{model}", "-f", "{input}", "-dl"},
		map[string]string{"model": d.config.ModelPath, "input": wav},
	)
	if err != nil {
		return "", err
	}

	result, err := d.runner.Run(ctx, process.Command{
		Name:    d.config.WhisperBinary,
		Args:    args,
		Timeout: d.config.Timeout,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run language detection: %w", err)
	}
	if !result.Success() {
		return "", fmt.Errorf("language detection exited with status %d", result.ExitCode)
	}

	lang := ParseDetected(result.Stdout + "\n" + result.Stderr)
	d.logger.InfoContext(ctx, "language detected", "language", lang)
	return lang, nil
}

// ParseDetected extracts the language code from whisper output such as
// "whisper_full_with_state: auto-detected language: en (p = 0.97)".
func ParseDetected(output string) string {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, detectedMarker)
		if idx < 0 {
			continue
		}
		fields := strings.Fields(line[idx+len(detectedMarker):])
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return Unknown
}
