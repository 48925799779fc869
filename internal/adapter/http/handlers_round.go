package http

import (
	"net/http"

	"github.com/rpams/tontine-core/internal/domain/round"
)

// requireRoundManager loads the round and checks the caller may administer
// its tontine. Returns the round on success.
func (h *Handlers) requireRoundManager(w http.ResponseWriter, r *http.Request, roundID string) (*round.Round, bool) {
	u, ok := caller(w, r)
	if !ok {
		return nil, false
	}

	rd, err := h.Rounds.Get(r.Context(), roundID)
	if err != nil {
		writeDomainError(w, err, "round not found")
		return nil, false
	}

	t, err := h.Tontines.Get(r.Context(), rd.TontineID)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return nil, false
	}
	if !canManage(u, t.CreatorID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return rd, true
}

// ListRounds handles GET /api/v1/tontines/{id}/rounds
func (h *Handlers) ListRounds(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	id := urlParam(r, "id")

	f := round.Filter{
		Status: round.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	}
	list, err := h.Rounds.List(r.Context(), id, f)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetRound handles GET /api/v1/rounds/{id}
func (h *Handlers) GetRound(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	id := urlParam(r, "id")

	rd, err := h.Rounds.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "round not found")
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

// OpenNextRound handles POST /api/v1/tontines/{id}/rounds
func (h *Handlers) OpenNextRound(w http.ResponseWriter, r *http.Request) {
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

	rd, err := h.Rounds.OpenNext(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}
	writeJSON(w, http.StatusCreated, rd)
}

// BeginCollection handles POST /api/v1/rounds/{id}/collect
func (h *Handlers) BeginCollection(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, ok := h.requireRoundManager(w, r, id); !ok {
		return
	}

	rd, err := h.Rounds.BeginCollection(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "round not found")
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

// CompleteRound handles POST /api/v1/rounds/{id}/complete
func (h *Handlers) CompleteRound(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, ok := h.requireRoundManager(w, r, id); !ok {
		return
	}

	rd, err := h.Rounds.Complete(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "round not found")
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

// CancelRound handles POST /api/v1/rounds/{id}/cancel
func (h *Handlers) CancelRound(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, ok := h.requireRoundManager(w, r, id); !ok {
		return
	}

	req, ok := readJSON[struct {
		Reason string `json:"reason"`
	}](w, r)
	if !ok {
		return
	}

	rd, err := h.Rounds.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, err, "round not found")
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

// ReorderWinners handles PUT /api/v1/tontines/{id}/winners
func (h *Handlers) ReorderWinners(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	if _, err := h.Tontines.Get(r.Context(), id); err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}

	req, ok := readJSON[struct {
		ParticipantIDs []string `json:"participant_ids"`
	}](w, r)
	if !ok {
		return
	}

	assignments, err := h.Rotation.Reorder(r.Context(), id, req.ParticipantIDs)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}
