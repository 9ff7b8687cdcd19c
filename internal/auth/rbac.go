package auth

import (
	"net/http"

	"github.com/gearloop/assetloan/internal/apperr"
	"github.com/gearloop/assetloan/internal/httpserver"
)

// RequireAuth rejects requests that have no authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			httpserver.RespondError(w, apperr.KindUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that rejects requests whose identity does
// not hold one of the listed roles. The gate takes an explicit set, not a
// minimum rank (§4.6) — ADMIN, MANAGER, READER form a total order only
// implicitly, and shortcuts like RequireAdmin/RequireManagerUp below are
// named helpers built on this same set check, not a separate rank
// comparison.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				httpserver.RespondError(w, apperr.KindForbidden, "insufficient permission")
				return
			}
			if _, ok := set[id.Role]; !ok {
				httpserver.RespondError(w, apperr.KindForbidden, "insufficient permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin allows only ADMIN.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(RoleAdmin)(next)
}

// RequireManagerUp allows ADMIN and MANAGER.
func RequireManagerUp(next http.Handler) http.Handler {
	return RequireRole(RoleAdmin, RoleManager)(next)
}
