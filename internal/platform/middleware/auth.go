package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Validator checks a bearer token and extracts the caller identity. The
// identity provider itself is external; this layer only reads the resulting
// identity value.
type Validator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims carries the fields this module needs from a validated token.
type Claims struct {
	Identity string
}

type contextKeyIdentity struct{}

// ContextKeyIdentity is exported for handlers and test helpers.
var ContextKeyIdentity = contextKeyIdentity{}

// GetIdentity retrieves the authenticated caller identity from the context.
// Returns the empty string for unauthenticated requests.
func GetIdentity(ctx context.Context) string {
	identity, ok := ctx.Value(ContextKeyIdentity).(string)
	if !ok {
		return ""
	}
	return identity
}

// RequireIdentity rejects requests without a valid bearer token and injects
// the caller identity into the request context for downstream handlers.
func RequireIdentity(validator Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access - missing token")
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token", "error", err)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, claims.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
