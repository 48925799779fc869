package http

import (
	"errors"
	"net/http"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/user"
)

// userResponse decorates a user with the resolved presentation fields so
// clients never re-implement the fallback order.
type userResponse struct {
	*user.User
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
}

func presentUser(u *user.User) userResponse {
	return userResponse{
		User:        u,
		DisplayName: user.ResolveDisplayName(u),
		Avatar:      user.ResolveAvatar(u),
	}
}

// GetMe handles GET /api/v1/users/me
func (h *Handlers) GetMe(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	stored, err := h.Authz.User(r.Context(), u.ID)
	if errors.Is(err, domain.ErrNotFound) {
		// First contact: the core has no record yet, the gateway identity
		// is all there is.
		writeJSON(w, http.StatusOK, presentUser(u))
		return
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presentUser(stored))
}

// GetUser handles GET /api/v1/users/{id}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !requireField(w, id, "id") {
		return
	}

	u, err := h.Authz.User(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, presentUser(u))
}

// SetUserRole handles PUT /api/v1/users/{id}/role
func (h *Handlers) SetUserRole(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	req, ok := readJSON[struct {
		Role user.Role `json:"role"`
	}](w, r)
	if !ok {
		return
	}
	if !requireField(w, string(req.Role), "role") {
		return
	}

	if err := h.Authz.SetRole(r.Context(), id, req.Role); err != nil {
		writeDomainError(w, err, "user not found")
		return
	}

	u, err := h.Authz.User(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, presentUser(u))
}
