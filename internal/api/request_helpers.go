package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/mediajobs/internal/domain"
)

// getJobID reads the job handle from the {id} path parameter or, failing
// that, from the id query parameter.
func getJobID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.NewValidationError("id", "is required")
	}
	return id, nil
}
