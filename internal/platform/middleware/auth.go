package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "prelaunch/pkg/domain-errors"
	"prelaunch/pkg/platform/httputil"
	"prelaunch/pkg/requestcontext"
)

// TokenValidator validates admin bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*AdminClaims, error)
}

// AdminClaims are the claims the middleware needs from a validated token.
type AdminClaims struct {
	Subject string
	TokenID string
}

// RequireAdmin rejects requests without a valid "Authorization: Bearer" token
// and stores the token subject in the request context.
func RequireAdmin(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				if dErrors.HasCode(err, dErrors.CodeForbidden) {
					httputil.WriteError(w, err)
					return
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithAdminSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
