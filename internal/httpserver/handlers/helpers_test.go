package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/jobs"
	"github.com/mattelianyc/microdawgs/internal/logger"
	"github.com/mattelianyc/microdawgs/internal/ratelimit"
	"github.com/mattelianyc/microdawgs/internal/router"
)

func testRegistry(t *testing.T) *router.Registry {
	t.Helper()
	reg, err := router.NewRegistry([]router.ServiceTarget{
		{Name: "icon", BaseURL: "http://icon:8001", RateLimit: 50, StylePresets: []string{"icon", "pixel"}},
		{Name: "splash", BaseURL: "http://splash:8002", RateLimit: 30, StylePresets: []string{"splash"}},
	}, "splash")
	require.NoError(t, err)
	return reg
}

func allowAll() *ratelimit.Result {
	return &ratelimit.Result{Allowed: true, Limit: 100, Remaining: 99, ResetAt: time.Now().Add(time.Minute)}
}

func denyAll() *ratelimit.Result {
	return &ratelimit.Result{Allowed: false, Limit: 100, Remaining: 0, ResetAt: time.Now().Add(time.Minute)}
}

type fakeLimiter struct {
	result      *ratelimit.Result
	err         error
	lastService string
}

func (f *fakeLimiter) CheckClient(_ context.Context, clientIP string) (*ratelimit.Result, error) {
	return f.result, f.err
}

func (f *fakeLimiter) CheckService(_ context.Context, serviceName string) (*ratelimit.Result, error) {
	f.lastService = serviceName
	return f.result, f.err
}

type fakeJobs struct {
	submitID     string
	submitErr    error
	submitted    json.RawMessage
	job          *jobs.Job
	getErr       error
	updateErr    error
	updatedID    string
	updateStatus jobs.Status
	cancelOK     bool
	cancelErr    error
	cancelledID  string
	swept        int
	sweepErr     error
	sweepMaxAge  time.Duration
	counts       map[jobs.Status]int
	countsErr    error
}

func (f *fakeJobs) Submit(_ context.Context, request json.RawMessage) (string, error) {
	f.submitted = request
	return f.submitID, f.submitErr
}

func (f *fakeJobs) Get(_ context.Context, jobID string) (*jobs.Job, error) {
	return f.job, f.getErr
}

func (f *fakeJobs) UpdateStatus(_ context.Context, jobID string, status jobs.Status, progress *int, result json.RawMessage) error {
	f.updatedID = jobID
	f.updateStatus = status
	return f.updateErr
}

func (f *fakeJobs) Cancel(_ context.Context, jobID string) (bool, error) {
	f.cancelledID = jobID
	return f.cancelOK, f.cancelErr
}

func (f *fakeJobs) Sweep(_ context.Context, maxAge time.Duration) (int, error) {
	f.sweepMaxAge = maxAge
	return f.swept, f.sweepErr
}

func (f *fakeJobs) CountByStatus(_ context.Context) (map[jobs.Status]int, error) {
	return f.counts, f.countsErr
}

type fakeDispatcher struct {
	response   json.RawMessage
	err        error
	results    []router.BroadcastResult
	lastPath   string
	lastTarget string
	payload    interface{}
	rawBody    []byte
	rawType    string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, target *router.ServiceTarget, path string, payload interface{}) (json.RawMessage, error) {
	f.lastTarget = target.Name
	f.lastPath = path
	f.payload = payload
	return f.response, f.err
}

func (f *fakeDispatcher) DispatchRaw(_ context.Context, target *router.ServiceTarget, path string, body []byte, contentType string) (json.RawMessage, error) {
	f.lastTarget = target.Name
	f.lastPath = path
	f.rawBody = body
	f.rawType = contentType
	return f.response, f.err
}

func (f *fakeDispatcher) Get(_ context.Context, target *router.ServiceTarget, path string) (json.RawMessage, error) {
	f.lastPath = path
	return f.response, f.err
}

func (f *fakeDispatcher) Broadcast(_ context.Context, targets []router.ServiceTarget, path string, payload interface{}) []router.BroadcastResult {
	f.lastPath = path
	f.payload = payload
	return f.results
}

func testDeps(t *testing.T) deps.Deps {
	t.Helper()
	return deps.Deps{
		Logger:         logger.New("error", false),
		StartTime:      time.Now(),
		TimeNow:        time.Now,
		Registry:       testRegistry(t),
		Limiter:        &fakeLimiter{result: allowAll()},
		Jobs:           &fakeJobs{},
		Dispatcher:     &fakeDispatcher{},
		MaxUploadBytes: 10 << 20,
		JobMaxAge:      24 * time.Hour,
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) api.Envelope {
	t.Helper()
	var env api.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
