package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/logger"
)

func testLogger() logger.Logger {
	return logger.New("error", false)
}

func TestDispatchSuccess(t *testing.T) {
	var gotToken string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Service-Token")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"data":{"image":"base64...","seed":42}}`))
	}))
	defer backend.Close()

	d := NewDispatcher(testLogger(), 5*time.Second, "svc-token")
	defer d.Close()

	target := &ServiceTarget{Name: "icon", BaseURL: backend.URL}
	raw, err := d.Dispatch(context.Background(), target, "/generate", map[string]string{"prompt": "a fox"})
	require.NoError(t, err)

	var parsed struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.True(t, parsed.Success)
	assert.Equal(t, "svc-token", gotToken)
}

func TestDispatchBackendError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"invalid seed"}`))
	}))
	defer backend.Close()

	d := NewDispatcher(testLogger(), 5*time.Second, "")
	defer d.Close()

	target := &ServiceTarget{Name: "icon", BaseURL: backend.URL}
	_, err := d.Dispatch(context.Background(), target, "/generate", nil)
	require.Error(t, err)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.CodeBackendError, apiErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "invalid seed", apiErr.Message)
}

func TestDispatchUnavailable(t *testing.T) {
	// Point at a closed port.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	d := NewDispatcher(testLogger(), 2*time.Second, "")
	defer d.Close()

	target := &ServiceTarget{Name: "icon", BaseURL: backend.URL}
	_, err := d.Dispatch(context.Background(), target, "/generate", nil)
	require.Error(t, err)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.CodeBackendUnavailable, apiErr.Code)
}

func TestDispatchTimeout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer backend.Close()

	d := NewDispatcher(testLogger(), 100*time.Millisecond, "")
	defer d.Close()

	target := &ServiceTarget{Name: "icon", BaseURL: backend.URL}
	_, err := d.Dispatch(context.Background(), target, "/generate", nil)
	require.Error(t, err)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.CodeBackendTimeout, apiErr.Code)
}

func TestBroadcastPartialFailure(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	b1 := httptest.NewServer(ok)
	defer b1.Close()
	b2 := httptest.NewServer(slow)
	defer b2.Close()
	b3 := httptest.NewServer(ok)
	defer b3.Close()

	d := NewDispatcher(testLogger(), 200*time.Millisecond, "")
	defer d.Close()

	targets := []ServiceTarget{
		{Name: "icon", BaseURL: b1.URL},
		{Name: "splash", BaseURL: b2.URL},
		{Name: "portrait", BaseURL: b3.URL},
	}

	results := d.Broadcast(context.Background(), targets, "/admin/reload", nil)
	require.Len(t, results, 3)

	failed := 0
	for _, res := range results {
		if !res.OK {
			failed++
			assert.Equal(t, "splash", res.Service)
			assert.NotEmpty(t, res.Error)
		}
	}
	assert.Equal(t, 1, failed, "exactly one target must be reported failed")
}

func TestBackendDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "detail field", body: `{"detail":"oops"}`, want: "oops"},
		{name: "message field", body: `{"message":"bad"}`, want: "bad"},
		{name: "detail preferred", body: `{"detail":"a","message":"b"}`, want: "a"},
		{name: "plain text", body: "internal error", want: "internal error"},
		{name: "empty body", body: "", want: "backend request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, backendDetail([]byte(tt.body)))
		})
	}
}
