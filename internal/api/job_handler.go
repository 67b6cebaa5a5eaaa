package api

import (
	"context"
	"net/http"

	"github.com/phrazzld/mediajobs/internal/api/shared"
	"github.com/phrazzld/mediajobs/internal/domain"
)

// StatusReader reads the status triple of a job.
type StatusReader interface {
	GetStatus(ctx context.Context, id string) (domain.JobStatus, error)
}

// JobHandler serves job status polling.
type JobHandler struct {
	statuses StatusReader
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(statuses StatusReader) *JobHandler {
	return &JobHandler{statuses: statuses}
}

// GetStatus handles GET /api/jobs/{id} and the per-feature
// GET .../status?id= endpoints.
func (h *JobHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := getJobID(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	status, err := h.statuses.GetStatus(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, statusToResponse(status))
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}
