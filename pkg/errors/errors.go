// Package errors defines the coded domain errors surfaced to callers.
// Stores return pkg/sentinel values; services translate them into these so
// transports can map codes to HTTP statuses without inspecting error text.
package errors

import "net/http"

type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeNotFound           Code = "not_found"
	CodePermissionDenied   Code = "permission_denied"
	CodeUnauthorized       Code = "unauthorized"
	CodeInvariantViolation Code = "invariant_violation"
	CodeSyncUnavailable    Code = "sync_unavailable"
	CodeInternal           Code = "internal_error"
)

// Error is a value type so tests can compare with errors.Is against a freshly
// constructed instance.
type Error struct {
	Code    Code
	Message string
}

func (e Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func New(code Code, message string) Error {
	return Error{Code: code, Message: message}
}

// CodeOf extracts the code from an error, or CodeInternal when the error does
// not carry one.
func CodeOf(err error) Code {
	if e, ok := err.(Error); ok {
		return e.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain error code to the HTTP status transports respond with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeSyncUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
