package api

import "github.com/phrazzld/mediajobs/internal/domain"

// SubmitResponse is returned by every job submission endpoint.
type SubmitResponse struct {
	JobID string `json:"jobId"`
}

// StatusResponse is the polled status triple of a job.
type StatusResponse struct {
	Status string `json:"status"`
	Result string `json:"result"`
	Error  string `json:"error"`
}

func statusToResponse(status domain.JobStatus) StatusResponse {
	return StatusResponse{
		Status: string(status.State),
		Result: status.Result,
		Error:  status.Error,
	}
}

// PlaylistRequest submits a playlist download.
type PlaylistRequest struct {
	URL string `json:"url" validate:"required,http_url"`
}

// BulkRequest submits a list of media URLs for download.
type BulkRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,dive,required,http_url"`
}

// LanguageResponse carries a detected language code.
type LanguageResponse struct {
	Language string `json:"language"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
