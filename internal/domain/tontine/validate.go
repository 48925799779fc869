package tontine

import (
	"fmt"

	"github.com/rpams/tontine-core/internal/domain"
)

var validFrequencies = map[Frequency]bool{
	FrequencyDaily:   true,
	FrequencyWeekly:  true,
	FrequencyMonthly: true,
	FrequencyYearly:  true,
}

var validStatuses = map[Status]bool{
	StatusDraft:     true,
	StatusActive:    true,
	StatusSuspended: true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// ValidStatus reports whether s is a known tontine status.
func ValidStatus(s Status) bool {
	return validStatuses[s]
}

// Validate checks that a CreateRequest has all required fields and
// valid values. Returns domain.ErrValidation-wrapped errors.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if r.AmountPerRound <= 0 {
		return fmt.Errorf("%w: amount_per_round must be positive", domain.ErrValidation)
	}
	if !validFrequencies[r.FrequencyType] {
		return fmt.Errorf("%w: invalid frequency_type %q", domain.ErrValidation, r.FrequencyType)
	}
	if r.FrequencyValue < 1 {
		return fmt.Errorf("%w: frequency_value must be >= 1", domain.ErrValidation)
	}
	if r.MaxParticipants != 0 && r.MaxParticipants < 2 {
		return fmt.Errorf("%w: max_participants must be >= 2", domain.ErrValidation)
	}
	if r.StartDate.IsZero() {
		return fmt.Errorf("%w: start_date is required", domain.ErrValidation)
	}
	if r.AllowMultipleShares && r.MaxSharesPerUser < 1 {
		return fmt.Errorf("%w: max_shares_per_user must be >= 1 when multiple shares are allowed", domain.ErrValidation)
	}
	return nil
}
