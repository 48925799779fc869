// Package tontine defines the Tontine domain entity: a rotating savings
// group pooling a fixed contribution per round and rotating the payout.
package tontine

import "time"

// Status represents the current lifecycle state of a tontine.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Frequency defines the contribution cadence unit.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Tontine represents a rotating savings group. Amounts are integer minor
// currency units so collected-total arithmetic stays exact.
type Tontine struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Description         string     `json:"description,omitempty"`
	AmountPerRound      int64      `json:"amount_per_round"`
	Status              Status     `json:"status"`
	StartDate           time.Time  `json:"start_date"`
	EndDate             *time.Time `json:"end_date,omitempty"`
	MaxParticipants     int        `json:"max_participants,omitempty"`
	FrequencyType       Frequency  `json:"frequency_type"`
	FrequencyValue      int        `json:"frequency_value"`
	AllowMultipleShares bool       `json:"allow_multiple_shares"`
	MaxSharesPerUser    int        `json:"max_shares_per_user"`
	InviteCode          string     `json:"invite_code"`
	CreatorID           string     `json:"creator_id"`
	Version             int        `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Terminal reports whether the tontine can no longer accept members or rounds.
func (t *Tontine) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}

// NextDueDate returns the due date one contribution period after prev.
func (t *Tontine) NextDueDate(prev time.Time) time.Time {
	n := t.FrequencyValue
	if n < 1 {
		n = 1
	}
	switch t.FrequencyType {
	case FrequencyDaily:
		return prev.AddDate(0, 0, n)
	case FrequencyWeekly:
		return prev.AddDate(0, 0, 7*n)
	case FrequencyMonthly:
		return prev.AddDate(0, n, 0)
	case FrequencyYearly:
		return prev.AddDate(n, 0, 0)
	default:
		return prev
	}
}

// validTransitions encodes the tontine status machine. COMPLETED is reached
// when the last round completes (or by admin force); CANCELLED from any
// pre-completion state.
var validTransitions = map[Status][]Status{
	StatusDraft:     {StatusActive, StatusCancelled},
	StatusActive:    {StatusSuspended, StatusCompleted, StatusCancelled},
	StatusSuspended: {StatusActive, StatusCompleted, StatusCancelled},
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

// CreateRequest holds the fields needed to create a new tontine.
type CreateRequest struct {
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	AmountPerRound      int64     `json:"amount_per_round"`
	StartDate           time.Time `json:"start_date"`
	MaxParticipants     int       `json:"max_participants,omitempty"`
	FrequencyType       Frequency `json:"frequency_type"`
	FrequencyValue      int       `json:"frequency_value"`
	AllowMultipleShares bool      `json:"allow_multiple_shares"`
	MaxSharesPerUser    int       `json:"max_shares_per_user,omitempty"`
}

// Filter narrows tontine listings.
type Filter struct {
	Status    Status
	CreatorID string
	Limit     int
	Offset    int
}
