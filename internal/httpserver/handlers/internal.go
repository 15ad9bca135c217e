package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/auth"
	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/jobs"
	"github.com/mattelianyc/microdawgs/internal/logger"
)

type statusUpdateRequest struct {
	Status   jobs.Status     `json:"status"`
	Progress *int            `json:"progress,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
}

// JobStatusUpdate lets backend workers report job progress over the
// service tier. Updates against missing or terminal jobs are acknowledged
// without effect; the job may have been swept or cancelled since the
// worker picked it up.
func JobStatusUpdate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "job_id")

		var req statusUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteError(w, api.ValidationError("malformed request body"))
			return
		}
		if !req.Status.Valid() {
			api.WriteError(w, api.ValidationError("unknown status: "+string(req.Status)))
			return
		}
		if req.Progress != nil && (*req.Progress < 0 || *req.Progress > 100) {
			api.WriteError(w, api.ValidationError("progress must be between 0 and 100"))
			return
		}

		if err := d.Jobs.UpdateStatus(r.Context(), jobID, req.Status, req.Progress, req.Result); err != nil {
			if errors.Is(err, jobs.ErrInvalidStatus) {
				api.WriteError(w, api.ValidationError(err.Error()))
				return
			}
			d.Logger.Error("job status update failed",
				logger.String("job_id", jobID),
				logger.Error(err))
			api.WriteError(w, api.InternalError("failed to update job", err))
			return
		}

		caller, _ := auth.ServiceNameFrom(r.Context())
		d.Logger.Debug("job status updated",
			logger.String("job_id", jobID),
			logger.String("status", string(req.Status)),
			logger.String("service", caller))

		api.WriteSuccess(w, http.StatusOK, "Job status updated", map[string]string{
			"job_id": jobID,
			"status": string(req.Status),
		})
	}
}
