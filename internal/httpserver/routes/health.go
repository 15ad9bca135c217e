package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/httpserver/handlers"
)

func init() { Register(registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/health", handlers.Health(d))
	r.Get("/health/services", handlers.HealthServices(d))
	r.Get("/health/ready", handlers.HealthReady(d))
}
