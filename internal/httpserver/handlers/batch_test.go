package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/jobs"
)

func TestSubmitBatchAccepted(t *testing.T) {
	d := testDeps(t)
	fj := &fakeJobs{submitID: "job-123"}
	d.Jobs = fj

	body := `{"requests":[{"prompt":"a small red dragon"},{"prompt":"a tall blue tower"}],"style_preset":"icon"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	SubmitBatch(d)(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var out batchSubmitted
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "job-123", out.JobID)
	assert.Equal(t, jobs.StatusPending, out.Status)

	// the persisted payload carries the cleaned requests
	var stored api.BatchRequest
	require.NoError(t, json.Unmarshal(fj.submitted, &stored))
	assert.Len(t, stored.Requests, 2)
}

func TestSubmitBatchRejectsBadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"requests":`},
		{"empty batch", `{"requests":[]}`},
		{"bad prompt inside batch", `{"requests":[{"prompt":"ok prompt here"},{"prompt":"x"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDeps(t)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/batch", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			SubmitBatch(d)(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.Equal(t, api.CodeValidation, env.ErrorCode)
		})
	}
}

func TestSubmitBatchServiceLimitExceeded(t *testing.T) {
	d := testDeps(t)
	d.Limiter = &fakeLimiter{result: denyAll()}

	body := `{"requests":[{"prompt":"a small red dragon"}],"style_preset":"splash"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	SubmitBatch(d)(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSubmitBatchStoreFailure(t *testing.T) {
	d := testDeps(t)
	d.Jobs = &fakeJobs{submitErr: errors.New("redis down")}

	body := `{"requests":[{"prompt":"a small red dragon"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	SubmitBatch(d)(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, api.CodeInternal, env.ErrorCode)
}

func batchStatusRequest(jobID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/batch/"+jobID, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("job_id", jobID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestBatchStatusFound(t *testing.T) {
	d := testDeps(t)
	now := time.Now().UTC()
	d.Jobs = &fakeJobs{job: &jobs.Job{
		JobID:     "job-123",
		Status:    jobs.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}}

	rec := httptest.NewRecorder()
	BatchStatus(d)(rec, batchStatusRequest("job-123"))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var out jobs.Job
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "job-123", out.JobID)
	assert.Equal(t, jobs.StatusProcessing, out.Status)
}

func TestBatchStatusNotFound(t *testing.T) {
	d := testDeps(t)
	d.Jobs = &fakeJobs{getErr: jobs.ErrJobNotFound}

	rec := httptest.NewRecorder()
	BatchStatus(d)(rec, batchStatusRequest("missing"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, api.CodeNotFound, env.ErrorCode)
}

func TestBatchStatusStoreFailure(t *testing.T) {
	// A store failure must not masquerade as a missing job.
	d := testDeps(t)
	d.Jobs = &fakeJobs{getErr: errors.New("redis down")}

	rec := httptest.NewRecorder()
	BatchStatus(d)(rec, batchStatusRequest("job-123"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, api.CodeInternal, env.ErrorCode)
}
