package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	h "smartevents/internal/delivery/http/helpers"
	"smartevents/internal/domain"
)

type contextKey string

const callerKey contextKey = "caller"

const bearerPrefix = "Bearer "

// SetUserID returns a context carrying the caller identity.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey, userID)
}

// UserIDFromContext returns the caller set by RequireAuth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerKey).(string)
	return id, ok && id != ""
}

// bearerToken extracts the token from the Authorization header. On failure
// the returned string is the client-facing reason.
func bearerToken(r *http.Request) (token, reason string) {
	header := r.Header.Get("Authorization")
	switch {
	case header == "":
		return "", "missing authorization header"
	case !strings.HasPrefix(header, bearerPrefix):
		return "", "invalid authorization format"
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", "missing token"
	}
	return token, ""
}

// RequireAuth rejects requests without a valid bearer token with 401.
// Accepted requests carry the token subject as the caller identity.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, reason := bearerToken(r)
			if reason != "" {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, reason)
				return
			}
			userID, err := verifier.Verify(token)
			if err != nil || userID == "" {
				logger.DebugContext(r.Context(), "token rejected", "path", r.URL.Path, "err", err)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired token")
				return
			}
			next(w, r.WithContext(SetUserID(r.Context(), userID)))
		}
	}
}
