// Package http exposes the tontine lifecycle over a REST API.
package http

import (
	"net/http"

	"github.com/rpams/tontine-core/internal/domain/user"
	"github.com/rpams/tontine-core/internal/middleware"
	"github.com/rpams/tontine-core/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Tontines   *service.TontineService
	Enrollment *service.EnrollmentService
	Rounds     *service.RoundService
	Rotation   *service.RotationService
	Ledger     *service.LedgerService
	Stats      *service.StatsService
	Authz      *service.AuthzService
}

// caller returns the authenticated user or writes a 401.
func caller(w http.ResponseWriter, r *http.Request) (*user.User, bool) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return nil, false
	}
	return u, true
}

// canManage reports whether u may administer a tontine owned by creatorID.
func canManage(u *user.User, creatorID string) bool {
	if u == nil {
		return false
	}
	return u.ID == creatorID || u.Role.AtLeast(user.RoleModerator)
}
