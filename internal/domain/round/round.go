// Package round defines the Round domain entity: one collection-and-payout
// cycle of a tontine.
package round

import (
	"fmt"
	"time"

	"github.com/rpams/tontine-core/internal/domain"
)

// Status represents the current state of a round.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCollecting Status = "collecting"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Round is one numbered cycle. At most one round per tontine may be
// collecting at a time, and rounds complete in round_number order.
type Round struct {
	ID                  string     `json:"id"`
	TontineID           string     `json:"tontine_id"`
	RoundNumber         int        `json:"round_number"`
	ExpectedAmount      int64      `json:"expected_amount"`
	CollectedAmount     int64      `json:"collected_amount"`
	DistributedAmount   int64      `json:"distributed_amount"`
	DueDate             time.Time  `json:"due_date"`
	CollectionStartDate *time.Time `json:"collection_start_date,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	Status              Status     `json:"status"`
	CancelReason        string     `json:"cancel_reason,omitempty"`
	WinnerID            string     `json:"winner_id,omitempty"`
	Version             int        `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Terminal reports whether the round can no longer change state.
func (r *Round) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled
}

// validTransitions encodes the round state machine:
// PENDING -> COLLECTING -> COMPLETED, with the admin escape hatch
// PENDING/COLLECTING -> CANCELLED.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusCollecting, StatusCancelled},
	StatusCollecting: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Sentinel failures for scheduler operations, all state conflicts.
var (
	// ErrPaymentsOutstanding blocks completion while any payment is pending.
	ErrPaymentsOutstanding = fmt.Errorf("%w: payments outstanding", domain.ErrStateConflict)

	// ErrAlreadyCollecting blocks collection while a sibling round collects.
	ErrAlreadyCollecting = fmt.Errorf("%w: another round is already collecting", domain.ErrStateConflict)

	// ErrNoWinnerAvailable blocks round creation without a resolvable winner.
	ErrNoWinnerAvailable = fmt.Errorf("%w: no winner available for next round", domain.ErrStateConflict)

	// ErrAtCapacity blocks round creation beyond the rotation length.
	ErrAtCapacity = fmt.Errorf("%w: rotation already at capacity", domain.ErrStateConflict)

	// ErrRoundCompleted blocks winner reassignment on a distributed round.
	ErrRoundCompleted = fmt.Errorf("%w: round already completed", domain.ErrStateConflict)
)

// WinnerAssignment pairs a round with its assigned winner, in rotation order.
type WinnerAssignment struct {
	RoundID       string `json:"round_id"`
	RoundNumber   int    `json:"round_number"`
	ParticipantID string `json:"participant_id"`
}

// Filter narrows round listings.
type Filter struct {
	Status Status
	Limit  int
	Offset int
}
