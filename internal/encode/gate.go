package encode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/process"
)

// bytesPerMB is the divisor used for every size comparison.
const bytesPerMB = 1024 * 1024

// Reason names why the gate refused a file.
type Reason string

const (
	// ReasonNone marks a successful gate.
	ReasonNone Reason = ""
	// ReasonMissingInput is returned when the input cannot be read.
	ReasonMissingInput Reason = "input file could not be read"
	// ReasonEncodeFailed covers a failed encoder run or missing output.
	ReasonEncodeFailed Reason = "encoding result was unsuccessful"
	// ReasonTooBig is returned when the encoded output is still over the threshold.
	ReasonTooBig Reason = "encoded file is too big"
)

// Config holds the threshold and the encoder invocation.
type Config struct {
	// ThresholdMB is the size at and above which a file must be encoded.
	ThresholdMB float64
	// Binary is the encoder executable.
	Binary string
	// Args is the argument template; {input} and {output} are substituted.
	Args []string
	// OutputExtension is the extension of the encoded file, e.g. ".ogg".
	OutputExtension string
	// Timeout bounds one encoder run.
	Timeout time.Duration
}

// Result is the outcome of Prepare.
type Result struct {
	// Path is the file to hand to the provider. It differs from the input
	// when Encoded is true.
	Path string
	// SizeMB is the size of Path.
	SizeMB float64
	// Encoded reports whether the encoder produced Path.
	Encoded bool
	// Reason is set when the gate failed.
	Reason Reason
}

// OK reports whether the file may be forwarded.
func (r Result) OK() bool {
	return r.Reason == ReasonNone
}

// Err converts a failed result into an error wrapping domain.ErrEncoding.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrEncoding, string(r.Reason))
}

// Gate conditionally shrinks audio files with an external encoder.
type Gate struct {
	runner process.Runner
	config Config
	logger *slog.Logger
}

// NewGate creates a Gate.
func NewGate(runner process.Runner, config Config, logger *slog.Logger) *Gate {
	return &Gate{
		runner: runner,
		config: config,
		logger: logger.With("component", "encode_gate"),
	}
}

// Prepare returns the file to forward for path. Files below the threshold
// pass through untouched. Larger files are encoded next to the input under a
// fresh name; the caller owns the encoded file when Encoded is true. On
// failure any partial output is removed.
func (g *Gate) Prepare(ctx context.Context, path string) Result {
	log := g.logger.With("input", filepath.Base(path))

	sizeMB, err := SizeMB(path)
	if err != nil {
		log.Error("failed to stat input file", "error", err)
		return Result{Path: path, Reason: ReasonMissingInput}
	}

	if sizeMB < g.config.ThresholdMB {
		return Result{Path: path, SizeMB: sizeMB}
	}

	output := filepath.Join(filepath.Dir(path), uuid.NewString()+g.config.OutputExtension)
	log.Info("file exceeds encode threshold, encoding",
		"size_mb", sizeMB,
		"threshold_mb", g.config.ThresholdMB)

	if reason := g.encode(ctx, path, output, log); reason != ReasonNone {
		removeQuietly(output, log)
		return Result{Path: path, SizeMB: sizeMB, Reason: reason}
	}

	encodedMB, err := SizeMB(output)
	if err != nil {
		log.Error("encoded file is missing", "output", output, "error", err)
		return Result{Path: path, SizeMB: sizeMB, Reason: ReasonEncodeFailed}
	}

	if encodedMB >= g.config.ThresholdMB {
		log.Warn("encoded file still exceeds threshold",
			"size_mb", encodedMB,
			"threshold_mb", g.config.ThresholdMB)
		removeQuietly(output, log)
		return Result{Path: path, SizeMB: encodedMB, Reason: ReasonTooBig}
	}

	log.Info("file encoded", "original_mb", sizeMB, "encoded_mb", encodedMB)
	return Result{Path: output, SizeMB: encodedMB, Encoded: true}
}

func (g *Gate) encode(ctx context.Context, input, output string, log *slog.Logger) Reason {
	args, err := process.Expand(g.config.Args, map[string]string{
		"input":  input,
		"output": output,
	})
	if err != nil {
		log.Error("failed to build encoder arguments", "error", err)
		return ReasonEncodeFailed
	}

	result, err := g.runner.Run(ctx, process.Command{
		Name:    g.config.Binary,
		Args:    args,
		Timeout: g.config.Timeout,
	})
	if err != nil {
		log.Error("encoder did not run to completion", "error", err)
		return ReasonEncodeFailed
	}
	if !result.Success() {
		log.Error("encoder exited with non-zero status",
			"exit_code", result.ExitCode,
			"stderr", result.Stderr)
		return ReasonEncodeFailed
	}
	return ReasonNone
}

// SizeMB returns the size of the file at path in MiB.
func SizeMB(path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return BytesToMB(info.Size()), nil
}

// BytesToMB converts a byte count to MiB.
func BytesToMB(n int64) float64 {
	return float64(n) / bytesPerMB
}

func removeQuietly(path string, log *slog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to remove encoder output", "path", path, "error", err)
	}
}
