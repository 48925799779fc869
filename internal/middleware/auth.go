package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rpams/tontine-core/internal/domain/user"
	"github.com/rpams/tontine-core/internal/service"
)

type authUserCtxKey struct{}

// Identity headers set by the auth gateway. The gateway verifies the token
// and forwards only the verified subject; the core resolves the role itself
// so a forged role header can never grant privileges.
const (
	headerUserID     = "X-User-ID"
	headerUserEmail  = "X-User-Email"
	headerUserName   = "X-User-Name"
	headerUserAvatar = "X-User-Avatar"
)

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
}

// Auth returns middleware that resolves the caller from the gateway's
// identity headers. When authEnabled is false, a default admin context is
// injected so local development needs no gateway in front.
func Auth(authz *service.AuthzService, authEnabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				defaultUser := &user.User{
					ID:      "00000000-0000-0000-0000-000000000000",
					Email:   "admin@localhost",
					Name:    "Admin",
					Role:    user.RoleAdmin,
					Enabled: true,
				}
				ctx := context.WithValue(r.Context(), authUserCtxKey{}, defaultUser)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			id := strings.TrimSpace(r.Header.Get(headerUserID))
			if id == "" {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}

			role, err := authz.Role(r.Context(), id)
			if err != nil {
				slog.Error("role lookup failed", "user_id", id, "error", err)
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			u := &user.User{
				ID:        id,
				Email:     r.Header.Get(headerUserEmail),
				Name:      r.Header.Get(headerUserName),
				AvatarURL: r.Header.Get(headerUserAvatar),
				Role:      role,
				Enabled:   true,
			}

			// Keep the local profile copy current when the gateway forwards
			// one. Best effort: a failed sync must not block the request.
			if u.Email != "" || u.Name != "" {
				if err := authz.Sync(r.Context(), u); err != nil {
					slog.Warn("profile sync failed", "user_id", id, "error", err)
				}
			}

			ctx := context.WithValue(r.Context(), authUserCtxKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user, or nil when absent.
func UserFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(authUserCtxKey{}).(*user.User)
	return u
}
