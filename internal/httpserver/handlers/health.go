package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/logger"
)

type healthData struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

// Health reports liveness of the gateway process itself.
func Health(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	return func(w http.ResponseWriter, r *http.Request) {
		now := d.TimeNow
		if now == nil {
			now = time.Now
		}
		api.WriteSuccess(w, http.StatusOK, "Gateway service is healthy", healthData{
			Status:        "ok",
			UptimeSeconds: now().Sub(start).Seconds(),
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
		})
	}
}

type serviceHealth struct {
	Healthy bool            `json:"healthy"`
	Details json.RawMessage `json:"details,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HealthServices probes the /health endpoint of every registered backend
// and reports per-service results.
func HealthServices(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := probeServices(r.Context(), d)

		allHealthy := true
		for _, s := range statuses {
			if !s.Healthy {
				allHealthy = false
				break
			}
		}

		msg := "All services healthy"
		if !allHealthy {
			msg = "One or more services unhealthy"
		}
		api.WriteSuccess(w, http.StatusOK, msg, statuses)
	}
}

type readyData struct {
	Ready    bool            `json:"ready"`
	Redis    bool            `json:"redis"`
	Services map[string]bool `json:"services"`
}

// HealthReady reports readiness: the shared store must answer and every
// backend must be healthy.
func HealthReady(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		redisOK := checkRedis(ctx, d)

		statuses := probeServices(ctx, d)
		servicesOK := make(map[string]bool, len(statuses))
		allServices := true
		for name, s := range statuses {
			servicesOK[name] = s.Healthy
			if !s.Healthy {
				allServices = false
			}
		}

		data := readyData{
			Ready:    redisOK && allServices,
			Redis:    redisOK,
			Services: servicesOK,
		}
		if !data.Ready {
			api.WriteFailure(w, http.StatusServiceUnavailable, "Gateway not ready", data)
			return
		}
		api.WriteSuccess(w, http.StatusOK, "Gateway ready", data)
	}
}

func probeServices(ctx context.Context, d deps.Deps) map[string]serviceHealth {
	targets := d.Registry.Targets()
	statuses := make(map[string]serviceHealth, len(targets))

	for i := range targets {
		target := &targets[i]
		details, err := d.Dispatcher.Get(ctx, target, "/health")
		if err != nil {
			d.Logger.Warn("health check failed",
				logger.String("service", target.Name),
				logger.Error(err))
			statuses[target.Name] = serviceHealth{Healthy: false, Error: err.Error()}
			continue
		}
		statuses[target.Name] = serviceHealth{Healthy: true, Details: details}
	}

	return statuses
}

func checkRedis(ctx context.Context, d deps.Deps) bool {
	if d.RedisClient == nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.RedisClient.Ping(pingCtx).Err() == nil
}
