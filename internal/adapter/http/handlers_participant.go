package http

import (
	"net/http"
)

// ListParticipants handles GET /api/v1/tontines/{id}/participants
func (h *Handlers) ListParticipants(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	id := urlParam(r, "id")

	activeOnly := r.URL.Query().Get("active") == "true"
	list, err := h.Tontines.Participants(r.Context(), id, activeOnly)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// JoinTontine handles POST /api/v1/tontines/{id}/participants
func (h *Handlers) JoinTontine(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	id := urlParam(r, "id")

	req, ok := readJSON[struct {
		SharesCount int `json:"shares_count"`
	}](w, r)
	if !ok {
		return
	}

	p, err := h.Enrollment.Join(r.Context(), id, u.ID, req.SharesCount)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// LeaveTontine handles DELETE /api/v1/participants/{id}
func (h *Handlers) LeaveTontine(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	id := urlParam(r, "id")

	if err := h.Enrollment.Leave(r.Context(), id, u); err != nil {
		writeDomainError(w, err, "participant not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ParticipantStanding handles GET /api/v1/participants/{id}/standing
func (h *Handlers) ParticipantStanding(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	id := urlParam(r, "id")

	upToDate, err := h.Stats.IsUpToDate(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "participant not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"up_to_date": upToDate})
}
