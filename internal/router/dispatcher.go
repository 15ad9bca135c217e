package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/logger"
)

// Dispatcher issues outbound HTTP calls to backend targets. The underlying
// client is created lazily on first use, reused across calls, and released
// by Close. The dispatcher never retries: generation requests are not
// safely idempotent, so retrying is the caller's decision.
type Dispatcher struct {
	log          logger.Logger
	timeout      time.Duration
	serviceToken string

	once   sync.Once
	client *http.Client
}

// NewDispatcher creates a dispatcher. timeout bounds each outbound call
// and should be generous since inference runs tens of seconds.
// serviceToken, when non-empty, is attached as X-Service-Token on every
// outbound request.
func NewDispatcher(log logger.Logger, timeout time.Duration, serviceToken string) *Dispatcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Dispatcher{log: log, timeout: timeout, serviceToken: serviceToken}
}

func (d *Dispatcher) httpClient() *http.Client {
	d.once.Do(func() {
		d.client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	})
	return d.client
}

// Close releases pooled connections. Safe to call even if no request was
// ever issued.
func (d *Dispatcher) Close() {
	if d.client != nil {
		d.client.CloseIdleConnections()
	}
}

// Dispatch POSTs payload as JSON to target at path and returns the raw
// response body. Backend failures come back as typed gateway errors:
// timeouts as BackendTimeout, network failures as BackendUnavailable, and
// non-2xx responses as BackendError carrying the original status and the
// backend's detail message.
func (d *Dispatcher) Dispatch(ctx context.Context, target *ServiceTarget, path string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, api.InternalError("failed to encode backend request", err)
	}
	return d.do(ctx, target, http.MethodPost, path, bytes.NewReader(body), "application/json")
}

// DispatchRaw POSTs a pre-encoded body, used for forwarding uploads.
func (d *Dispatcher) DispatchRaw(ctx context.Context, target *ServiceTarget, path string, body []byte, contentType string) (json.RawMessage, error) {
	return d.do(ctx, target, http.MethodPost, path, bytes.NewReader(body), contentType)
}

// Get issues a GET against target, used for health probes.
func (d *Dispatcher) Get(ctx context.Context, target *ServiceTarget, path string) (json.RawMessage, error) {
	return d.do(ctx, target, http.MethodGet, path, nil, "")
}

func (d *Dispatcher) do(ctx context.Context, target *ServiceTarget, method, path string, body io.Reader, contentType string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	url := target.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, api.InternalError("failed to build backend request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if d.serviceToken != "" {
		req.Header.Set("X-Service-Token", d.serviceToken)
	}

	start := time.Now()
	resp, err := d.httpClient().Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			d.log.Warn("backend call timed out",
				logger.String("service", target.Name),
				logger.String("path", path),
				logger.Duration("timeout", d.timeout))
			return nil, api.BackendTimeoutError(fmt.Sprintf("service %s timed out", target.Name), err)
		}
		d.log.Warn("backend call failed",
			logger.String("service", target.Name),
			logger.String("path", path),
			logger.Error(err))
		return nil, api.BackendUnavailableError(fmt.Sprintf("service %s unavailable", target.Name), err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, api.BackendUnavailableError(fmt.Sprintf("failed to read response from %s", target.Name), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := backendDetail(raw)
		d.log.Warn("backend returned error",
			logger.String("service", target.Name),
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
			logger.String("detail", detail))
		return nil, api.BackendErrorFrom(resp.StatusCode, detail)
	}

	d.log.Debug("backend call completed",
		logger.String("service", target.Name),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("duration", time.Since(start)))

	return raw, nil
}

// backendDetail pulls a machine-readable message out of an error body.
// Backends respond with {"detail": ...}; older ones use {"message": ...}.
func backendDetail(body []byte) string {
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	const maxDetail = 200
	s := string(body)
	if len(s) > maxDetail {
		s = s[:maxDetail]
	}
	if s == "" {
		s = "backend request failed"
	}
	return s
}

// BroadcastResult is the outcome of one target in a broadcast.
type BroadcastResult struct {
	Service string          `json:"service"`
	OK      bool            `json:"ok"`
	Detail  json.RawMessage `json:"detail,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Broadcast POSTs payload to path on every target concurrently and waits
// for all of them. Partial failure is reported per target; one backend
// failing never hides the outcome of the others.
func (d *Dispatcher) Broadcast(ctx context.Context, targets []ServiceTarget, path string, payload interface{}) []BroadcastResult {
	results := make([]BroadcastResult, len(targets))

	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := &targets[i]
			raw, err := d.Dispatch(ctx, target, path, payload)
			if err != nil {
				results[i] = BroadcastResult{Service: target.Name, OK: false, Error: err.Error()}
				return
			}
			results[i] = BroadcastResult{Service: target.Name, OK: true, Detail: raw}
		}(i)
	}
	wg.Wait()

	return results
}
