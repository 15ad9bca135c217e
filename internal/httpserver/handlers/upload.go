package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/logger"
	"github.com/mattelianyc/microdawgs/internal/validate"
)

// Upload accepts a reference image and forwards it to a backend's
// reference endpoint. The target is chosen by the optional "service" query
// parameter, falling back to the registry default.
func Upload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		r.Body = http.MaxBytesReader(w, r.Body, d.MaxUploadBytes)
		if err := r.ParseMultipartForm(d.MaxUploadBytes); err != nil {
			api.WriteError(w, api.ValidationError("invalid multipart upload"))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			api.WriteError(w, api.ValidationError("missing file field"))
			return
		}
		defer func() { _ = file.Close() }()

		contentType := header.Header.Get("Content-Type")
		if err := validate.Upload(contentType, header.Size, d.MaxUploadBytes); err != nil {
			api.WriteError(w, api.ValidationError(err.Error()))
			return
		}

		target := d.Registry.Default()
		if name := r.URL.Query().Get("service"); name != "" {
			t, ok := d.Registry.Lookup(name)
			if !ok {
				api.WriteError(w, api.ValidationError("unknown service: "+name))
				return
			}
			target = t
		}

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

		body, formType, err := repackUpload(file, header.Filename, contentType)
		if err != nil {
			api.WriteError(w, api.InternalError("failed to read upload", err))
			return
		}

		d.Logger.Info("forwarding reference image",
			logger.String("service", target.Name),
			logger.String("filename", header.Filename),
			logger.Int64("size", header.Size))

		raw, err := d.Dispatcher.DispatchRaw(ctx, target, "/reference", body, formType)
		if err != nil {
			api.WriteError(w, err)
			return
		}

		api.WriteSuccess(w, http.StatusOK, "Reference image processed", reshapeBackendResponse(raw))
	}
}

// repackUpload rebuilds a single-file multipart body for the backend call.
func repackUpload(file multipart.File, filename, contentType string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), mw.FormDataContentType(), nil
}
