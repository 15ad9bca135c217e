package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/logger"
	"github.com/mattelianyc/microdawgs/internal/validate"
)

// Generate handles synchronous image generation: validate the prompt,
// route by style preset, spend the target's own rate budget and dispatch.
// The backend's response is reshaped into the uniform envelope.
func Generate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req api.GenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteError(w, api.ValidationError("malformed request body"))
			return
		}

		cleaned, err := validate.Prompt(req.Prompt)
		if err != nil {
			api.WriteError(w, api.ValidationError(err.Error()))
			return
		}
		req.Prompt = cleaned

		target := d.Registry.RouteFor(req.StylePreset)

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

		d.Logger.Info("dispatching generation",
			logger.String("service", target.Name),
			logger.String("style_preset", req.StylePreset))

		raw, err := d.Dispatcher.Dispatch(ctx, target, "/generate", req)
		if err != nil {
			api.WriteError(w, err)
			return
		}

		api.WriteSuccess(w, http.StatusOK, "Image generation completed", reshapeBackendResponse(raw))
	}
}

// reshapeBackendResponse unwraps a backend's {success, data} body so the
// gateway envelope carries the data directly. Bodies that do not match are
// passed through untouched.
func reshapeBackendResponse(raw json.RawMessage) json.RawMessage {
	var parsed struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Data != nil {
		return parsed.Data
	}
	return raw
}
