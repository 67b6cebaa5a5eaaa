package api

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/phrazzld/mediajobs/internal/api/shared"
	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/fetch"
	"github.com/phrazzld/mediajobs/internal/pipeline"
	"github.com/phrazzld/mediajobs/internal/platform/logger"
	"github.com/phrazzld/mediajobs/internal/task"
)

// DownloadRunner runs a playlist or bulk download.
type DownloadRunner interface {
	Run(ctx context.Context, job pipeline.DownloadJob) (string, error)
}

// DownloadHandler serves the media download endpoints.
type DownloadHandler struct {
	submitter JobSubmitter
	pipeline  DownloadRunner
	source    fetch.Source
	logger    *slog.Logger
}

// NewDownloadHandler creates a DownloadHandler. source serves the
// single-file streaming endpoint.
func NewDownloadHandler(
	submitter JobSubmitter,
	runner DownloadRunner,
	source fetch.Source,
	logger *slog.Logger,
) *DownloadHandler {
	return &DownloadHandler{
		submitter: submitter,
		pipeline:  runner,
		source:    source,
		logger:    logger.With("component", "download_handler"),
	}
}

// Playlist handles POST /api/audio/playlist.
func (h *DownloadHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	var req PlaylistRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.submit(w, r, domain.JobTypePlaylistDownload, pipeline.DownloadJob{PlaylistURL: req.URL})
}

// Bulk handles POST /api/audio/bulk.
func (h *DownloadHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.submit(w, r, domain.JobTypeBulkDownload, pipeline.DownloadJob{URLs: req.URLs})
}

func (h *DownloadHandler) submit(w http.ResponseWriter, r *http.Request, jobType string, job pipeline.DownloadJob) {
	t := task.NewFuncTask(jobType, func(ctx context.Context) (string, error) {
		run := job
		run.JobID = task.JobIDFromContext(ctx)
		return h.pipeline.Run(ctx, run)
	})

	id, err := h.submitter.Submit(r.Context(), t)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContext(r.Context()).Info("download job submitted",
		"job_id", id,
		"job_type", jobType,
		"url_count", len(job.URLs))

	shared.RespondWithJSON(w, r, http.StatusOK, SubmitResponse{JobID: id})
}

type streamQuery struct {
	VideoURL string `json:"videoUrl" validate:"required,http_url"`
}

// Stream handles GET /api/audio by streaming the best audio of one video.
func (h *DownloadHandler) Stream(w http.ResponseWriter, r *http.Request) {
	query := streamQuery{VideoURL: r.URL.Query().Get("videoUrl")}
	if err := shared.ValidateRequest(query); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	stream, err := h.source.Open(r.Context(), query.VideoURL)
	if err == nil && (stream == nil || stream.Body == nil) {
		err = fetch.ErrNoStream
	}
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	defer func() {
		_ = stream.Body.Close()
	}()

	body := bufio.NewReaderSize(stream.Body, sniffLength)
	head, _ := body.Peek(sniffLength)
	name := fetch.SanitizeFileName(stream.Title, stream.Extension)

	w.Header().Set("Content-Type", mimetype.Detect(head).String())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, body)
	if err != nil {
		logger.FromContext(r.Context()).Warn("audio stream interrupted",
			"bytes_written", written,
			"error", err)
	}
}

// decodeAndValidate writes a 400 response and returns false when the JSON
// body is malformed or fails validation.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
