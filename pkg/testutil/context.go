package testutil

import (
	"context"
	"net/http"

	"leadpipe/internal/platform/middleware"
)

// WithIdentity adds a caller identity to the request context. This simulates
// what the auth middleware would do for authenticated requests.
func WithIdentity(req *http.Request, identity string) *http.Request {
	if identity == "" {
		return req
	}
	ctx := context.WithValue(req.Context(), middleware.ContextKeyIdentity, identity)
	return req.WithContext(ctx)
}
