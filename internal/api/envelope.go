package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the uniform response shape for every endpoint, success and
// error alike.
type Envelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// WriteSuccess writes a success envelope with the given payload.
func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: now(),
	})
}

// WriteFailure writes a failure envelope that still carries a payload,
// for endpoints that report detail alongside a failing status.
func WriteFailure(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Success:   false,
		Message:   message,
		Data:      data,
		Timestamp: now(),
	})
}

// WriteError writes an error envelope. Any error is accepted; untyped
// errors are reported as internal.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := FromError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Success:   false,
		Message:   apiErr.Message,
		ErrorCode: apiErr.Code,
		Timestamp: now(),
	})
}
