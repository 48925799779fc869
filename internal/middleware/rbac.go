package middleware

import (
	"net/http"

	"github.com/rpams/tontine-core/internal/domain/user"
)

// RequireRole returns middleware that restricts access to callers whose
// role grants at least min. Ordering: user < moderator < admin.
func RequireRole(min user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}

			if !u.Role.AtLeast(min) {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
