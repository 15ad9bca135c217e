package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/jobs"
	"github.com/mattelianyc/microdawgs/internal/logger"
	"github.com/mattelianyc/microdawgs/internal/validate"
)

type batchSubmitted struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
}

// SubmitBatch validates a batch request and persists it as a pending job.
// The job id is returned immediately; workers pick the job up from the
// pending list and report progress through the store.
func SubmitBatch(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := decodeBatch(r)
		if err != nil {
			api.WriteError(w, api.ValidationError(err.Error()))
			return
		}

		target := d.Registry.RouteFor(body.StylePreset)
		res, err := d.Limiter.CheckService(ctx, target.Name)
		if err != nil {
			d.Logger.Error("service rate limit check failed", logger.Error(err))
			api.WriteError(w, api.InternalError("rate limiter unavailable", err))
			return
		}
		if !res.Allowed {
			api.WriteError(w, api.RateLimitError("service rate limit exceeded for "+target.Name))
			return
		}

		payload, err := json.Marshal(body)
		if err != nil {
			api.WriteError(w, api.InternalError("failed to encode job payload", err))
			return
		}

		jobID, err := d.Jobs.Submit(ctx, payload)
		if err != nil {
			d.Logger.Error("job submission failed", logger.Error(err))
			api.WriteError(w, api.InternalError("failed to submit job", err))
			return
		}

		d.Logger.Info("batch job submitted",
			logger.String("job_id", jobID),
			logger.Int("requests", len(body.Requests)),
			logger.String("service", target.Name))

		api.WriteSuccess(w, http.StatusAccepted, "Batch job submitted", batchSubmitted{
			JobID:  jobID,
			Status: jobs.StatusPending,
		})
	}
}

// BatchStatus returns the current job record. A missing job is a 404; a
// store failure is a 500, never conflated with absence.
func BatchStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "job_id")

		job, err := d.Jobs.Get(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, jobs.ErrJobNotFound) {
				api.WriteError(w, api.NotFoundError("job not found"))
				return
			}
			d.Logger.Error("job status read failed",
				logger.String("job_id", jobID),
				logger.Error(err))
			api.WriteError(w, api.InternalError("failed to read job status", err))
			return
		}

		api.WriteSuccess(w, http.StatusOK, "Job status retrieved", job)
	}
}

func decodeBatch(r *http.Request) (*api.BatchRequest, error) {
	var body api.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, errors.New("malformed request body")
	}
	if len(body.Requests) == 0 {
		return nil, errors.New("batch must contain at least one request")
	}
	for i := range body.Requests {
		cleaned, err := validate.Prompt(body.Requests[i].Prompt)
		if err != nil {
			return nil, err
		}
		body.Requests[i].Prompt = cleaned
	}
	return &body, nil
}
