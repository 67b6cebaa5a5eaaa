package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/encode"
	"github.com/phrazzld/mediajobs/internal/process"
	"github.com/phrazzld/mediajobs/internal/transcription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingProvider remembers the size of the file it was given.
type recordingProvider struct {
	name     string
	text     string
	err      error
	gotMB    float64
	gotMode  transcription.Mode
	gotReq   transcription.Request
	numCalls int
}

func (p *recordingProvider) Name() string { return p.name }

func (p *recordingProvider) Transcribe(ctx context.Context, req transcription.Request) (string, error) {
	return p.record(ctx, transcription.ModeTranscribe, req)
}

func (p *recordingProvider) Translate(ctx context.Context, req transcription.Request) (string, error) {
	return p.record(ctx, transcription.ModeTranslate, req)
}

func (p *recordingProvider) record(ctx context.Context, mode transcription.Mode, req transcription.Request) (string, error) {
	p.numCalls++
	p.gotMode = mode
	p.gotReq = req
	p.gotMB, _ = encode.SizeMB(req.FilePath)
	return p.text, p.err
}

// encoderStub writes an output file of a fixed size, or exits non-zero.
type encoderStub struct {
	outputBytes int64
	exitCode    int
}

func (e *encoderStub) Run(ctx context.Context, cmd process.Command) (process.Result, error) {
	if e.exitCode == 0 {
		f, err := os.Create(cmd.Args[len(cmd.Args)-1])
		if err != nil {
			return process.Result{}, err
		}
		defer f.Close()
		if err := f.Truncate(e.outputBytes); err != nil {
			return process.Result{}, err
		}
	}
	return process.Result{ExitCode: e.exitCode}, nil
}

const mib = 1024 * 1024

func newGate(runner process.Runner) *encode.Gate {
	return encode.NewGate(runner, encode.Config{
		ThresholdMB:     24.5,
		Binary:          "ffmpeg",
		Args:            []string{"-i", "{input}", "{output}"},
		OutputExtension: ".ogg",
	}, testLogger())
}

func upload(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.mp3")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return path
}

func newRegistry(t *testing.T, providers ...transcription.Provider) *transcription.Registry {
	t.Helper()
	registry, err := transcription.NewRegistry(providers[0].Name(), providers...)
	require.NoError(t, err)
	return registry
}

func TestAudioPipeline_EncodesOversizedUpload(t *testing.T) {
	t.Parallel()

	provider := &recordingProvider{name: "openai", text: "  the transcript \n"}
	pipeline := NewAudioPipeline(newGate(&encoderStub{outputBytes: 10 * mib}), newRegistry(t, provider), testLogger())

	input := upload(t, 30*mib)
	text, err := pipeline.Run(context.Background(), AudioJob{
		Mode:     transcription.ModeTranscribe,
		FilePath: input,
		Prompt:   "medical terms",
		APIKey:   "caller-key",
	})
	require.NoError(t, err)

	assert.Equal(t, "the transcript", text)
	assert.InDelta(t, 10.0, provider.gotMB, 0.001)
	assert.Equal(t, transcription.ModeTranscribe, provider.gotMode)
	assert.Equal(t, "medical terms", provider.gotReq.Prompt)
	assert.Equal(t, "caller-key", provider.gotReq.APIKey)

	// Both the upload and the encoded copy are gone.
	entries, err := os.ReadDir(filepath.Dir(input))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAudioPipeline_SmallFileSkipsEncoder(t *testing.T) {
	t.Parallel()

	provider := &recordingProvider{name: "openai", text: "english text"}
	pipeline := NewAudioPipeline(newGate(&encoderStub{exitCode: 1}), newRegistry(t, provider), testLogger())

	input := upload(t, 2*mib)
	text, err := pipeline.Run(context.Background(), AudioJob{Mode: transcription.ModeTranslate, FilePath: input})
	require.NoError(t, err)

	assert.Equal(t, "english text", text)
	assert.Equal(t, transcription.ModeTranslate, provider.gotMode)
	assert.Equal(t, input, provider.gotReq.FilePath)
	_, err = os.Stat(input)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAudioPipeline_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		encoder      *encoderStub
		provider     *recordingProvider
		size         int64
		wantIs       error
		wantMsg      string
		wantProvider bool
	}{
		{
			name:     "encoder exits non-zero",
			encoder:  &encoderStub{exitCode: 1},
			provider: &recordingProvider{name: "openai", text: "x"},
			size:     30 * mib,
			wantIs:   domain.ErrEncoding,
			wantMsg:  "encoding result was unsuccessful",
		},
		{
			name:     "encoded file still too big",
			encoder:  &encoderStub{outputBytes: 25 * mib},
			provider: &recordingProvider{name: "openai", text: "x"},
			size:     30 * mib,
			wantIs:   domain.ErrEncoding,
			wantMsg:  "encoded file is too big",
		},
		{
			name:         "provider error",
			encoder:      &encoderStub{},
			provider:     &recordingProvider{name: "openai", err: &domain.ProviderError{Provider: "openai", StatusCode: 401, Message: "bad key"}},
			size:         mib,
			wantIs:       domain.ErrProvider,
			wantMsg:      "transcribe failed: openai returned status 401: bad key",
			wantProvider: true,
		},
		{
			name:         "empty text",
			encoder:      &encoderStub{},
			provider:     &recordingProvider{name: "openai", text: "   "},
			size:         mib,
			wantIs:       domain.ErrEmptyResult,
			wantMsg:      "empty result",
			wantProvider: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pipeline := NewAudioPipeline(newGate(tt.encoder), newRegistry(t, tt.provider), testLogger())
			_, err := pipeline.Run(context.Background(), AudioJob{
				Mode:     transcription.ModeTranscribe,
				FilePath: upload(t, tt.size),
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, tt.wantProvider, tt.provider.numCalls > 0)
		})
	}
}

func TestAudioPipeline_UnknownProvider(t *testing.T) {
	t.Parallel()

	provider := &recordingProvider{name: "openai", text: "x"}
	pipeline := NewAudioPipeline(newGate(&encoderStub{}), newRegistry(t, provider), testLogger())

	input := upload(t, mib)
	_, err := pipeline.Run(context.Background(), AudioJob{Mode: transcription.ModeTranscribe, Provider: "whisperx", FilePath: input})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, provider.numCalls)

	_, statErr := os.Stat(input)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}
