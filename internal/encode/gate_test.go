package encode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner simulates the encoder by writing an output file of a fixed size.
type fakeRunner struct {
	outputBytes int64
	exitCode    int
	err         error
	skipOutput  bool

	calls []process.Command
}

func (f *fakeRunner) Run(ctx context.Context, cmd process.Command) (process.Result, error) {
	f.calls = append(f.calls, cmd)
	if f.err != nil {
		return process.Result{ExitCode: -1}, f.err
	}
	if !f.skipOutput {
		output := cmd.Args[len(cmd.Args)-1]
		if err := writeSized(output, f.outputBytes); err != nil {
			return process.Result{}, err
		}
	}
	return process.Result{ExitCode: f.exitCode, Stderr: "encoder said no"}, nil
}

func writeSized(path string, size int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(size)
}

func mb(n float64) int64 {
	return int64(n * bytesPerMB)
}

func testConfig() Config {
	return Config{
		ThresholdMB:     24.5,
		Binary:          "ffmpeg",
		Args:            []string{"-i", "{input}", "-c:a", "libopus", "{output}"},
		OutputExtension: ".ogg",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newInput(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.mp3")
	require.NoError(t, writeSized(path, size))
	return path
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	list, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Name())
	}
	return names
}

func TestGate_BelowThresholdPassesThrough(t *testing.T) {
	t.Parallel()

	input := newInput(t, mb(10))
	runner := &fakeRunner{}
	gate := NewGate(runner, testConfig(), testLogger())

	result := gate.Prepare(context.Background(), input)

	assert.True(t, result.OK())
	assert.NoError(t, result.Err())
	assert.False(t, result.Encoded)
	assert.Equal(t, input, result.Path)
	assert.InDelta(t, 10.0, result.SizeMB, 0.001)
	assert.Empty(t, runner.calls)
}

func TestGate_EncodesOversizedFile(t *testing.T) {
	t.Parallel()

	input := newInput(t, mb(30))
	runner := &fakeRunner{outputBytes: mb(10)}
	gate := NewGate(runner, testConfig(), testLogger())

	result := gate.Prepare(context.Background(), input)

	require.True(t, result.OK())
	assert.True(t, result.Encoded)
	assert.NotEqual(t, input, result.Path)
	assert.Equal(t, ".ogg", filepath.Ext(result.Path))
	assert.Equal(t, filepath.Dir(input), filepath.Dir(result.Path))
	assert.InDelta(t, 10.0, result.SizeMB, 0.001)
	assert.LessOrEqual(t, result.SizeMB, 24.5)

	require.Len(t, runner.calls, 1)
	call := runner.calls[0]
	assert.Equal(t, "ffmpeg", call.Name)
	assert.Equal(t, []string{"-i", input, "-c:a", "libopus", result.Path}, call.Args)
}

func TestGate_ThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	input := newInput(t, mb(24.5))
	runner := &fakeRunner{outputBytes: mb(1)}
	gate := NewGate(runner, testConfig(), testLogger())

	result := gate.Prepare(context.Background(), input)
	require.True(t, result.OK())
	assert.True(t, result.Encoded)
	assert.Len(t, runner.calls, 1)
}

func TestGate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		runner     *fakeRunner
		wantReason Reason
		wantMsg    string
	}{
		{
			name:       "non-zero exit",
			runner:     &fakeRunner{exitCode: 1, outputBytes: mb(1)},
			wantReason: ReasonEncodeFailed,
			wantMsg:    "encoding result was unsuccessful",
		},
		{
			name:       "runner error",
			runner:     &fakeRunner{err: errors.New("timed out")},
			wantReason: ReasonEncodeFailed,
			wantMsg:    "encoding result was unsuccessful",
		},
		{
			name:       "missing output",
			runner:     &fakeRunner{skipOutput: true},
			wantReason: ReasonEncodeFailed,
			wantMsg:    "encoding result was unsuccessful",
		},
		{
			name:       "output still too big",
			runner:     &fakeRunner{outputBytes: mb(25)},
			wantReason: ReasonTooBig,
			wantMsg:    "encoded file is too big",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			input := newInput(t, mb(30))
			gate := NewGate(tt.runner, testConfig(), testLogger())

			result := gate.Prepare(context.Background(), input)

			assert.False(t, result.OK())
			assert.False(t, result.Encoded)
			assert.Equal(t, tt.wantReason, result.Reason)

			err := result.Err()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrEncoding)
			assert.Contains(t, err.Error(), tt.wantMsg)

			// Only the input survives a failed gate.
			assert.Equal(t, []string{"input.mp3"}, entries(t, filepath.Dir(input)))
		})
	}
}

func TestGate_MissingInput(t *testing.T) {
	t.Parallel()

	gate := NewGate(&fakeRunner{}, testConfig(), testLogger())
	result := gate.Prepare(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"))

	assert.Equal(t, ReasonMissingInput, result.Reason)
	assert.ErrorIs(t, result.Err(), domain.ErrEncoding)
}

func TestGate_UnsafeInputPath(t *testing.T) {
	cfg := testConfig()
	cfg.ThresholdMB = 0.000001
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, writeSized("-rf.mp3", 10))

	runner := &fakeRunner{outputBytes: 1}
	gate := NewGate(runner, cfg, testLogger())
	result := gate.Prepare(context.Background(), "-rf.mp3")

	assert.Equal(t, ReasonEncodeFailed, result.Reason)
	assert.Empty(t, runner.calls)
}

func TestBytesToMB(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, BytesToMB(1024*1024))
	assert.Equal(t, 160.0, BytesToMB(160*1024*1024))
	assert.InDelta(t, 24.5, BytesToMB(mb(24.5)), 0.0001)
}
