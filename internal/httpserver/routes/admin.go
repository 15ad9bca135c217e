package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/httpserver/handlers"
	"github.com/mattelianyc/microdawgs/internal/httpserver/mw"
)

func init() { Register(registerAdmin) }

// Admin routes require the admin role and, when configured, a source
// network on the allowlist.
func registerAdmin(r chi.Router, d deps.Deps) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(mw.AllowOnlyCIDRS(d.AdminAllowedCIDRS, d.TrustProxy, d.Logger))
		r.Use(mw.RequireAuth(d.Auth, d.Logger, "admin"))

		r.Get("/stats", handlers.AdminStats(d))
		r.Post("/maintenance", handlers.AdminMaintenance(d))
		r.Post("/reload", handlers.AdminReload(d))
		r.Post("/sweep", handlers.AdminSweep(d))
		r.Delete("/jobs/{job_id}", handlers.AdminCancelJob(d))
	})
}
