package http

import (
	"net/http"
)

// TontineStats handles GET /api/v1/tontines/{id}/stats
func (h *Handlers) TontineStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	id := urlParam(r, "id")

	stats, err := h.Stats.Tontine(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "tontine not found")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
