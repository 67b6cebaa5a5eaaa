package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/mediajobs/internal/api"
	apiMiddleware "github.com/phrazzld/mediajobs/internal/api/middleware"
)

// setupRouter registers every route on a chi router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	r.Get("/health", api.Health)

	r.Route("/api", func(r chi.Router) {
		if app.config.Auth.JWTSecret != "" {
			auth := apiMiddleware.NewAuthMiddleware(app.config.Auth.JWTSecret, app.config.Auth.Issuer)
			r.Use(auth.Authenticate)
		}

		// Polling
		r.Get("/jobs/{id}", app.jobs.GetStatus)
		r.Get("/transcription/status", app.jobs.GetStatus)
		r.Get("/translation/status", app.jobs.GetStatus)
		r.Get("/audio/status", app.jobs.GetStatus)

		r.Get("/audio", app.downloads.Stream)

		// Job submission is rate limited per client.
		r.Group(func(r chi.Router) {
			if app.config.Server.RateLimitRPS > 0 {
				limiter := apiMiddleware.NewRateLimiter(app.config.Server.RateLimitRPS, app.config.Server.RateLimitBurst)
				r.Use(limiter.Limit)
			}

			r.Post("/transcription/get-text", app.audio.Transcribe)
			r.Post("/translation/to-english", app.audio.Translate)
			r.Post("/language", app.audio.DetectLanguage)

			if app.config.DownloadsEnabled() {
				r.Post("/audio/playlist", app.downloads.Playlist)
				r.Post("/audio/bulk", app.downloads.Bulk)
			}
		})
	})

	return r
}
