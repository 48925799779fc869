// Package payment defines the Payment domain entity: one participant's
// contribution to one round.
package payment

import (
	"fmt"
	"time"

	"github.com/rpams/tontine-core/internal/domain"
)

// Status represents the settlement state of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusPaid:      true,
	StatusFailed:    true,
	StatusCancelled: true,
}

// ValidStatus reports whether s is a known payment status.
func ValidStatus(s Status) bool {
	return validStatuses[s]
}

// Terminal reports whether the status counts as settled for round
// completion. PAID is terminal except for an explicit admin reset.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusCancelled
}

// Payment is one participant's contribution to one round. Amount equals
// amount_per_round x the participant's share count.
type Payment struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ParticipantID string     `json:"participant_id"`
	RoundID       string     `json:"round_id"`
	Amount        int64      `json:"amount"`
	Status        Status     `json:"status"`
	DueDate       time.Time  `json:"due_date"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	Method        string     `json:"payment_method,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ErrAlreadySettled rejects settlement of a payment that is not pending.
var ErrAlreadySettled = fmt.Errorf("%w: payment already settled", domain.ErrStateConflict)

// SettleRequest holds the fields needed to mark a payment paid.
type SettleRequest struct {
	TransactionID string `json:"transaction_id"`
	Method        string `json:"payment_method"`
	Notes         string `json:"notes,omitempty"`
}

// Validate checks that the settle request identifies its transaction.
func (r *SettleRequest) Validate() error {
	if r.TransactionID == "" {
		return fmt.Errorf("%w: transaction_id is required", domain.ErrValidation)
	}
	if r.Method == "" {
		return fmt.Errorf("%w: payment_method is required", domain.ErrValidation)
	}
	return nil
}

// Filter narrows payment listings.
type Filter struct {
	RoundID       string
	ParticipantID string
	UserID        string
	Status        Status
	Limit         int
	Offset        int
}
