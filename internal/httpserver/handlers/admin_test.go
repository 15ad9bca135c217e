package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/jobs"
	"github.com/mattelianyc/microdawgs/internal/router"
)

func TestAdminStats(t *testing.T) {
	d := testDeps(t)
	d.Jobs = &fakeJobs{counts: map[jobs.Status]int{
		jobs.StatusPending:   3,
		jobs.StatusCompleted: 7,
	}}

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rec := httptest.NewRecorder()
	AdminStats(d)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var out statsData
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 3, out.Jobs["pending"])
	assert.Equal(t, 7, out.Jobs["completed"])
	assert.Len(t, out.Services, 2)
}

func TestAdminStatsStoreFailure(t *testing.T) {
	d := testDeps(t)
	d.Jobs = &fakeJobs{countsErr: errors.New("redis down")}

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rec := httptest.NewRecorder()
	AdminStats(d)(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminMaintenance(t *testing.T) {
	d := testDeps(t)
	disp := &fakeDispatcher{results: []router.BroadcastResult{
		{Service: "icon", OK: true},
		{Service: "splash", OK: false, Error: "connection refused"},
	}}
	d.Dispatcher = disp

	req := httptest.NewRequest(http.MethodPost, "/admin/maintenance", strings.NewReader(`{"enabled":true}`))
	rec := httptest.NewRecorder()
	AdminMaintenance(d)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/admin/maintenance", disp.lastPath)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Contains(t, env.Message, "enabled on 1/2 services")

	// per-target outcomes are reported, failures included
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var results []router.BroadcastResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 2)
	assert.Equal(t, "connection refused", results[1].Error)
}

func TestAdminMaintenanceRejectsBadBody(t *testing.T) {
	d := testDeps(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/maintenance", strings.NewReader(`{"enabled":`))
	rec := httptest.NewRecorder()
	AdminMaintenance(d)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminReload(t *testing.T) {
	d := testDeps(t)
	disp := &fakeDispatcher{results: []router.BroadcastResult{
		{Service: "icon", OK: true},
		{Service: "splash", OK: true},
	}}
	d.Dispatcher = disp

	req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
	rec := httptest.NewRecorder()
	AdminReload(d)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/admin/reload", disp.lastPath)
	env := decodeEnvelope(t, rec)
	assert.Contains(t, env.Message, "2/2 services")
}

func cancelRequest(jobID string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/admin/jobs/"+jobID, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("job_id", jobID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestAdminCancelJob(t *testing.T) {
	d := testDeps(t)
	fj := &fakeJobs{cancelOK: true}
	d.Jobs = fj

	rec := httptest.NewRecorder()
	AdminCancelJob(d)(rec, cancelRequest("job-123"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "job-123", fj.cancelledID)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
}

func TestAdminCancelJobNotCancellable(t *testing.T) {
	// Missing and already-terminal jobs both report not found.
	d := testDeps(t)
	d.Jobs = &fakeJobs{cancelOK: false}

	rec := httptest.NewRecorder()
	AdminCancelJob(d)(rec, cancelRequest("job-123"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, api.CodeNotFound, env.ErrorCode)
}

func TestAdminSweep(t *testing.T) {
	d := testDeps(t)
	fj := &fakeJobs{swept: 5}
	d.Jobs = fj

	req := httptest.NewRequest(http.MethodPost, "/admin/sweep", nil)
	rec := httptest.NewRecorder()
	AdminSweep(d)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, d.JobMaxAge, fj.sweepMaxAge)

	env := decodeEnvelope(t, rec)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobs_deleted":5}`, string(data))
}
