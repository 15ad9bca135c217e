package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/httpserver/handlers"
	"github.com/mattelianyc/microdawgs/internal/httpserver/mw"
)

func init() { Register(registerAPI) }

// Guard order on request paths: authenticate, then rate-limit, then the
// handler validates and executes. Failures short-circuit before any store
// mutation or backend call.
func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RequireAuth(d.Auth, d.Logger))

		limited := r.With(mw.RateLimit(d.Limiter, d.TrustProxy, d.Logger))
		limited.Post("/generate", handlers.Generate(d))
		limited.Post("/batch", handlers.SubmitBatch(d))
		limited.Post("/upload", handlers.Upload(d))

		r.Get("/batch/{job_id}", handlers.BatchStatus(d))
	})
}
