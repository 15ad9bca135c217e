package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/logger"
	"github.com/mattelianyc/microdawgs/internal/router"
)

type statsData struct {
	Jobs     map[string]int         `json:"jobs"`
	Services []router.ServiceTarget `json:"services"`
}

// AdminStats reports job counts by status and the registered backend set.
func AdminStats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := d.Jobs.CountByStatus(r.Context())
		if err != nil {
			d.Logger.Error("stats collection failed", logger.Error(err))
			api.WriteError(w, api.InternalError("failed to collect stats", err))
			return
		}

		jobCounts := make(map[string]int, len(counts))
		for status, n := range counts {
			jobCounts[string(status)] = n
		}

		api.WriteSuccess(w, http.StatusOK, "System statistics retrieved", statsData{
			Jobs:     jobCounts,
			Services: d.Registry.Targets(),
		})
	}
}

type maintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

// AdminMaintenance toggles maintenance mode on every backend. Per-target
// outcomes are returned; one backend failing does not hide the others.
func AdminMaintenance(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req maintenanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteError(w, api.ValidationError("malformed request body"))
			return
		}

		results := d.Dispatcher.Broadcast(r.Context(), d.Registry.Targets(), "/admin/maintenance", req)
		logBroadcast(d, "maintenance", results)

		state := "disabled"
		if req.Enabled {
			state = "enabled"
		}
		api.WriteSuccess(w, http.StatusOK, fmt.Sprintf("Maintenance mode %s on %d/%d services", state, okCount(results), len(results)), results)
	}
}

// AdminReload triggers a model reload on every backend, reporting
// per-target outcomes.
func AdminReload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := d.Dispatcher.Broadcast(r.Context(), d.Registry.Targets(), "/admin/reload", nil)
		logBroadcast(d, "reload", results)

		api.WriteSuccess(w, http.StatusOK, fmt.Sprintf("Models reloaded on %d/%d services", okCount(results), len(results)), results)
	}
}

// AdminCancelJob cancels a pending or processing job. Jobs that are
// missing or already terminal report 404; cancellation never interrupts
// work already in flight inside a backend.
func AdminCancelJob(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "job_id")

		ok, err := d.Jobs.Cancel(r.Context(), jobID)
		if err != nil {
			d.Logger.Error("job cancel failed",
				logger.String("job_id", jobID),
				logger.Error(err))
			api.WriteError(w, api.InternalError("failed to cancel job", err))
			return
		}
		if !ok {
			api.WriteError(w, api.NotFoundError("job not found or already finished"))
			return
		}

		d.Logger.Info("job cancelled", logger.String("job_id", jobID))
		api.WriteSuccess(w, http.StatusOK, "Job cancelled successfully", map[string]string{"job_id": jobID})
	}
}

// AdminSweep runs an immediate sweep of aged-out jobs.
func AdminSweep(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := d.Jobs.Sweep(r.Context(), d.JobMaxAge)
		if err != nil {
			d.Logger.Error("manual sweep failed", logger.Error(err))
			api.WriteError(w, api.InternalError("sweep failed", err))
			return
		}

		api.WriteSuccess(w, http.StatusOK, "Sweep completed", map[string]int{"jobs_deleted": deleted})
	}
}

func okCount(results []router.BroadcastResult) int {
	n := 0
	for _, res := range results {
		if res.OK {
			n++
		}
	}
	return n
}

func logBroadcast(d deps.Deps, op string, results []router.BroadcastResult) {
	for _, res := range results {
		if !res.OK {
			d.Logger.Warn("broadcast target failed",
				logger.String("operation", op),
				logger.String("service", res.Service),
				logger.String("error", res.Error))
		}
	}
}
