// Package httputil centralizes JSON response writing so every endpoint emits
// the same envelopes.
package httputil

import (
	"encoding/json"
	"net/http"

	pkgerrors "leadpipe/pkg/errors"
)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error to its HTTP status and error envelope.
// Internal errors never leak their message to the client.
func WriteError(w http.ResponseWriter, err error) {
	code := pkgerrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != pkgerrors.CodeInternal {
		if e, ok := err.(pkgerrors.Error); ok && e.Message != "" {
			body["error_description"] = e.Message
		}
	}
	WriteJSON(w, pkgerrors.ToHTTPStatus(code), body)
}

// Decode reads a JSON request body into T, rejecting unknown fields.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, pkgerrors.New(pkgerrors.CodeValidation, "invalid request body")
	}
	return v, nil
}
