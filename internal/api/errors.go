package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a gateway error carrying the HTTP status and a stable
// machine-readable code surfaced in the response envelope.
type Error struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Error codes returned in the envelope's error_code field. These are part
// of the public contract; do not rename them.
const (
	CodeAuthentication     = "AUTHENTICATION_ERROR"
	CodeAuthorization      = "AUTHORIZATION_ERROR"
	CodeValidation         = "VALIDATION_ERROR"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeNotFound           = "NOT_FOUND"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeBackendTimeout     = "BACKEND_TIMEOUT"
	CodeBackendError       = "BACKEND_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

func AuthenticationError(msg string, err error) *Error {
	return &Error{Code: CodeAuthentication, Status: http.StatusUnauthorized, Message: msg, Err: err}
}

func AuthorizationError(msg string) *Error {
	return &Error{Code: CodeAuthorization, Status: http.StatusForbidden, Message: msg}
}

func ValidationError(msg string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

func RateLimitError(msg string) *Error {
	return &Error{Code: CodeRateLimitExceeded, Status: http.StatusTooManyRequests, Message: msg}
}

func NotFoundError(msg string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: msg}
}

func BackendUnavailableError(msg string, err error) *Error {
	return &Error{Code: CodeBackendUnavailable, Status: http.StatusBadGateway, Message: msg, Err: err}
}

func BackendTimeoutError(msg string, err error) *Error {
	return &Error{Code: CodeBackendTimeout, Status: http.StatusGatewayTimeout, Message: msg, Err: err}
}

// BackendErrorFrom surfaces a non-2xx backend response with its original
// status code preserved.
func BackendErrorFrom(status int, detail string) *Error {
	return &Error{Code: CodeBackendError, Status: status, Message: detail}
}

func InternalError(msg string, err error) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// FromError maps any error to a gateway *Error. Already-typed errors pass
// through; everything else becomes an internal error.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return InternalError("unexpected error", err)
}
