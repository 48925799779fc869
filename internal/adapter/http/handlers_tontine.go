package http

import (
	"net/http"

	"github.com/rpams/tontine-core/internal/domain/tontine"
)

// CreateTontine handles POST /api/v1/tontines
func (h *Handlers) CreateTontine(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[tontine.CreateRequest](w, r)
	if !ok {
		return
	}

	t, err := h.Tontines.Create(r.Context(), req, u.ID)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ListTontines handles GET /api/v1/tontines
func (h *Handlers) ListTontines(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	f := tontine.Filter{
		Status:    tontine.Status(r.URL.Query().Get("status")),
		CreatorID: r.URL.Query().Get("creator_id"),
		Limit:     queryInt(r, "limit", 0),
		Offset:    queryInt(r, "offset", 0),
	}
	// Groups are joined by invite code, not browsed. Regular users only
	// list the tontines they created.
	if !canManage(u, "") {
		f.CreatorID = u.ID
	}

	list, err := h.Tontines.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err, "tontines not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetTontine handles GET /api/v1/tontines/{id}
func (h *Handlers) GetTontine(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !requireField(w, id, "id") {
		return
	}

	t, err := h.Tontines.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ActivateTontine handles POST /api/v1/tontines/{id}/activate
func (h *Handlers) ActivateTontine(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	id := urlParam(r, "id")

	t, err := h.Tontines.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}
	if !canManage(u, t.CreatorID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	t, err = h.Tontines.Activate(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTontineStatus handles PUT /api/v1/tontines/{id}/status
func (h *Handlers) UpdateTontineStatus(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	req, ok := readJSON[struct {
		Status tontine.Status `json:"status"`
	}](w, r)
	if !ok {
		return
	}
	if !requireField(w, string(req.Status), "status") {
		return
	}

	t, err := h.Tontines.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// LookupInvite handles GET /api/v1/invites/{code}
func (h *Handlers) LookupInvite(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	code := urlParam(r, "code")

	t, err := h.Tontines.LookupByInviteCode(r.Context(), code)
	if err != nil {
		writeDomainError(w, err, "invite code not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// JoinByInvite handles POST /api/v1/invites/{code}/join
func (h *Handlers) JoinByInvite(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	code := urlParam(r, "code")

	req, ok := readJSON[struct {
		SharesCount int `json:"shares_count"`
	}](w, r)
	if !ok {
		return
	}

	p, err := h.Enrollment.JoinByCode(r.Context(), code, u.ID, req.SharesCount)
	if err != nil {
		writeDomainError(w, err, "invite code not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}
