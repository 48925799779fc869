// Package participant defines the Participant domain entity: one member's
// stake in a tontine.
package participant

import (
	"fmt"
	"time"

	"github.com/rpams/tontine-core/internal/domain"
)

// Participant links a user to a tontine with a share count. Participants are
// never hard-deleted; deactivation preserves payment and round references.
type Participant struct {
	ID             string    `json:"id"`
	TontineID      string    `json:"tontine_id"`
	UserID         string    `json:"user_id"`
	SharesCount    int       `json:"shares_count"`
	TotalCommitted int64     `json:"total_committed"`
	IsActive       bool      `json:"is_active"`
	JoinedAt       time.Time `json:"joined_at"`
}

// JoinRequest holds the fields needed to join a tontine via invite code.
type JoinRequest struct {
	SharesCount int `json:"shares_count,omitempty"`
}

// Validate checks the join request. A zero share count defaults to 1 at the
// service layer, so only negatives and zero-after-default are rejected here.
func (r *JoinRequest) Validate() error {
	if r.SharesCount < 0 {
		return fmt.Errorf("%w: shares_count must be >= 1", domain.ErrValidation)
	}
	return nil
}

// TotalShares sums the share counts of the given participants.
func TotalShares(ps []Participant) int {
	total := 0
	for i := range ps {
		total += ps[i].SharesCount
	}
	return total
}

// IndexByID builds the participantId -> position map for a loaded roster,
// so position lookups are O(1) instead of a list scan per item.
func IndexByID(ps []Participant) map[string]int {
	idx := make(map[string]int, len(ps))
	for i := range ps {
		idx[ps[i].ID] = i
	}
	return idx
}
