package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/participant"
	"github.com/rpams/tontine-core/internal/domain/round"
	"github.com/rpams/tontine-core/internal/port/database"
)

// RotationService plans winner assignment: the default joinedAt-ordered
// rotation and admin-driven reordering.
type RotationService struct {
	store database.Store
}

// NewRotationService creates a RotationService.
func NewRotationService(store database.Store) *RotationService {
	return &RotationService{store: store}
}

// defaultOrder returns active participant IDs ordered by joinedAt
// ascending. Deterministic: ties break on participant ID.
func defaultOrder(ps []participant.Participant) []string {
	sorted := make([]participant.Participant, len(ps))
	copy(sorted, ps)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].JoinedAt.Equal(sorted[j].JoinedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
	})
	ids := make([]string, len(sorted))
	for i := range sorted {
		ids[i] = sorted[i].ID
	}
	return ids
}

// AssignDefault produces the full roundNumber -> participantID rotation for
// the tontine: one win per active participant, joinedAt ascending. Pure with
// respect to its inputs; it mutates nothing.
func (s *RotationService) AssignDefault(ctx context.Context, tontineID string) (map[int]string, error) {
	actives, err := s.store.ListParticipants(ctx, tontineID, true)
	if err != nil {
		return nil, err
	}
	order := defaultOrder(actives)
	plan := make(map[int]string, len(order))
	for i, id := range order {
		plan[i+1] = id
	}
	return plan, nil
}

// NextWinner resolves the winner for the next round to be created: the
// earliest-joined active participant who has not already been assigned a
// round. A participant holding multiple shares still wins exactly once.
func (s *RotationService) NextWinner(ctx context.Context, tontineID string) (string, error) {
	actives, err := s.store.ListParticipants(ctx, tontineID, true)
	if err != nil {
		return "", err
	}

	// The won set must span the whole history: a paged read could hide a
	// past winner and hand them a second round.
	rounds, err := s.store.ListRounds(ctx, tontineID, round.Filter{Limit: database.AllRows})
	if err != nil {
		return "", err
	}
	won := make(map[string]bool, len(rounds))
	for i := range rounds {
		if rounds[i].Status != round.StatusCancelled && rounds[i].WinnerID != "" {
			won[rounds[i].WinnerID] = true
		}
	}

	for _, id := range defaultOrder(actives) {
		if !won[id] {
			return id, nil
		}
	}
	return "", round.ErrNoWinnerAvailable
}

// Reorder overwrites the winners of the not-yet-completed rounds: position i
// of the submitted order maps to the i-th non-completed round in ascending
// round number. The write is all-or-nothing; a partial reorder is never
// observable. Duplicate participants in the submitted order are rejected —
// each participant wins at most once per rotation.
func (s *RotationService) Reorder(ctx context.Context, tontineID string, orderedParticipantIDs []string) ([]round.WinnerAssignment, error) {
	if len(orderedParticipantIDs) == 0 {
		return nil, fmt.Errorf("%w: participant order is required", domain.ErrValidation)
	}

	seen := make(map[string]bool, len(orderedParticipantIDs))
	for _, id := range orderedParticipantIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: participant %s appears more than once in the winner order", domain.ErrValidation, id)
		}
		seen[id] = true
	}

	actives, err := s.store.ListParticipants(ctx, tontineID, true)
	if err != nil {
		return nil, err
	}
	idx := participant.IndexByID(actives)
	for _, id := range orderedParticipantIDs {
		if _, ok := idx[id]; !ok {
			return nil, fmt.Errorf("%w: participant %s is not an active member", domain.ErrValidation, id)
		}
	}

	rounds, err := s.store.ListRounds(ctx, tontineID, round.Filter{Limit: database.AllRows})
	if err != nil {
		return nil, err
	}
	var open []round.Round
	for i := range rounds {
		if !rounds[i].Terminal() {
			open = append(open, rounds[i])
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].RoundNumber < open[j].RoundNumber })

	if len(orderedParticipantIDs) > len(open) {
		return nil, fmt.Errorf("%w: order has %d entries but only %d rounds remain open", domain.ErrValidation, len(orderedParticipantIDs), len(open))
	}

	assignments := make([]round.WinnerAssignment, len(orderedParticipantIDs))
	for i, pid := range orderedParticipantIDs {
		assignments[i] = round.WinnerAssignment{
			RoundID:       open[i].ID,
			RoundNumber:   open[i].RoundNumber,
			ParticipantID: pid,
		}
	}

	if err := s.store.ReorderWinners(ctx, tontineID, assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}
