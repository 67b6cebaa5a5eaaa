package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/phrazzld/mediajobs/internal/api/shared"
	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/pipeline"
	"github.com/phrazzld/mediajobs/internal/platform/logger"
	"github.com/phrazzld/mediajobs/internal/task"
	"github.com/phrazzld/mediajobs/internal/transcription"
)

// JobSubmitter hands a task to the background runner and returns its handle.
type JobSubmitter interface {
	Submit(ctx context.Context, t task.Task) (string, error)
}

// AudioRunner runs a transcription or translation.
type AudioRunner interface {
	Run(ctx context.Context, job pipeline.AudioJob) (string, error)
}

// ProviderLookup resolves a provider name; empty selects the default.
type ProviderLookup interface {
	Get(name string) (transcription.Provider, error)
}

// LanguageDetector reports the spoken language of an audio file.
type LanguageDetector interface {
	Detect(ctx context.Context, path string) (string, error)
}

// AudioHandler serves the audio upload endpoints.
type AudioHandler struct {
	submitter JobSubmitter
	pipeline  AudioRunner
	providers ProviderLookup
	detector  LanguageDetector
	uploads   UploadConfig
	logger    *slog.Logger
}

// NewAudioHandler creates an AudioHandler. detector may be nil when language
// detection is not configured.
func NewAudioHandler(
	submitter JobSubmitter,
	runner AudioRunner,
	providers ProviderLookup,
	detector LanguageDetector,
	uploads UploadConfig,
	logger *slog.Logger,
) *AudioHandler {
	return &AudioHandler{
		submitter: submitter,
		pipeline:  runner,
		providers: providers,
		detector:  detector,
		uploads:   uploads,
		logger:    logger.With("component", "audio_handler"),
	}
}

// Transcribe handles POST /api/transcription/get-text.
func (h *AudioHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, domain.JobTypeTranscription, transcription.ModeTranscribe)
}

// Translate handles POST /api/translation/to-english.
func (h *AudioHandler) Translate(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, domain.JobTypeTranslation, transcription.ModeTranslate)
}

func (h *AudioHandler) submit(w http.ResponseWriter, r *http.Request, jobType string, mode transcription.Mode) {
	upload, err := receiveUpload(w, r, h.uploads)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if _, err := h.providers.Get(upload.Provider); err != nil {
		h.discard(upload.Path)
		HandleAPIError(w, r, err, "")
		return
	}

	job := pipeline.AudioJob{
		Mode:     mode,
		Provider: upload.Provider,
		FilePath: upload.Path,
		Prompt:   upload.Prompt,
		APIKey:   upload.APIKey,
	}
	t := task.NewFuncTask(jobType, func(ctx context.Context) (string, error) {
		return h.pipeline.Run(ctx, job)
	})

	id, err := h.submitter.Submit(r.Context(), t)
	if err != nil {
		h.discard(upload.Path)
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContext(r.Context()).Info("audio job submitted",
		"job_id", id,
		"job_type", jobType,
		"provider", upload.Provider)

	shared.RespondWithJSON(w, r, http.StatusOK, SubmitResponse{JobID: id})
}

// DetectLanguage handles POST /api/language synchronously.
func (h *AudioHandler) DetectLanguage(w http.ResponseWriter, r *http.Request) {
	if h.detector == nil {
		shared.RespondWithError(w, r, http.StatusNotImplemented, "Language detection is not configured")
		return
	}

	upload, err := receiveUpload(w, r, h.uploads)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	defer h.discard(upload.Path)

	language, err := h.detector.Detect(r.Context(), upload.Path)
	if err != nil {
		HandleAPIError(w, r, err, "Language detection failed")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, LanguageResponse{Language: language})
}

func (h *AudioHandler) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		h.logger.Warn("failed to remove upload", "path", path, "error", err)
	}
}
