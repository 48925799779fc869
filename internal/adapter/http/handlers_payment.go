package http

import (
	"net/http"

	"github.com/rpams/tontine-core/internal/domain/payment"
	"github.com/rpams/tontine-core/internal/domain/user"
)

// ListPayments handles GET /api/v1/payments
func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := payment.Filter{
		RoundID:       q.Get("round_id"),
		ParticipantID: q.Get("participant_id"),
		UserID:        q.Get("user_id"),
		Status:        payment.Status(q.Get("status")),
		Limit:         queryInt(r, "limit", 0),
		Offset:        queryInt(r, "offset", 0),
	}
	// Regular users only see their own payment history.
	if !u.Role.AtLeast(user.RoleModerator) {
		f.UserID = u.ID
	}

	list, err := h.Ledger.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err, "payments not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	id := urlParam(r, "id")

	p, err := h.Ledger.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "payment not found")
		return
	}
	if p.UserID != u.ID && !u.Role.AtLeast(user.RoleModerator) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PaymentIntent handles GET /api/v1/rounds/{id}/intent
//
// Returns the caller's own obligation for the round, so a client can show
// "you owe X by Y" without listing the whole round.
func (h *Handlers) PaymentIntent(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	id := urlParam(r, "id")

	p, err := h.Ledger.Intent(r.Context(), id, u.ID)
	if err != nil {
		writeDomainError(w, err, "no payment due for this round")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SettlePayment handles POST /api/v1/payments/{id}/settle
func (h *Handlers) SettlePayment(w http.ResponseWriter, r *http.Request) {
	u, ok := caller(w, r)
	if !ok {
		return
	}
	id := urlParam(r, "id")

	req, ok := readJSON[payment.SettleRequest](w, r)
	if !ok {
		return
	}

	p, err := h.Ledger.MarkPaid(r.Context(), id, req, u)
	if err != nil {
		writeDomainError(w, err, "payment not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// FailPayment handles POST /api/v1/payments/{id}/fail
func (h *Handlers) FailPayment(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	p, err := h.Ledger.MarkFailed(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "payment not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ResetPayment handles POST /api/v1/payments/{id}/reset
func (h *Handlers) ResetPayment(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	p, err := h.Ledger.Reset(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "payment not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
