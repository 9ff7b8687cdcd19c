package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gearloop/assetloan/internal/apperr"
	"github.com/gearloop/assetloan/internal/httpserver"
)

// Middleware implements the auth gate (C5): extract the bearer token,
// verify it, check the revocation blacklist, and attach the resulting
// Identity to the request context. A missing or non-Bearer header is
// answered with "token required"; every verification failure (bad
// signature, expiry, revocation, invalidation, bad subject) is answered
// with the same "token invalid or expired" message, both as 401
// unauthorized. Which check failed is recorded only in server logs.
func Middleware(tokens *TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				httpserver.RespondError(w, apperr.KindUnauthorized, "token required")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			claims, err := tokens.VerifyAccess(r.Context(), raw)
			if err != nil {
				logger.Debug("access token rejected", "error", err)
				httpserver.RespondError(w, apperr.KindUnauthorized, "token invalid or expired")
				return
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				logger.Warn("access token subject is not a valid user id", "subject", claims.Subject)
				httpserver.RespondError(w, apperr.KindUnauthorized, "token invalid or expired")
				return
			}

			identity := &Identity{
				UserID:   userID,
				Role:     claims.Role,
				IssuedAt: time.Unix(claims.IssuedAt, 0),
			}

			ctx := NewContext(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
