package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/httpserver/handlers"
	"github.com/mattelianyc/microdawgs/internal/httpserver/mw"
)

func init() { Register(registerInternal) }

// Internal routes are the service-to-service tier: backend workers report
// job progress here, authenticated by X-Service-Token.
func registerInternal(r chi.Router, d deps.Deps) {
	r.Route("/internal", func(r chi.Router) {
		r.Use(mw.RequireService(d.Auth, d.Logger))

		r.Post("/jobs/{job_id}/status", handlers.JobStatusUpdate(d))
	})
}
