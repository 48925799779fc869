package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/participant"
	"github.com/rpams/tontine-core/internal/domain/tontine"
	"github.com/rpams/tontine-core/internal/domain/user"
	"github.com/rpams/tontine-core/internal/port/database"
	"github.com/rpams/tontine-core/internal/port/messagequeue"
)

// EnrollmentService admits participants into tontines and handles the
// narrow self-service leave path.
type EnrollmentService struct {
	store    database.Store
	queue    messagequeue.Queue
	tontines *TontineService
}

// NewEnrollmentService creates an EnrollmentService.
func NewEnrollmentService(store database.Store, queue messagequeue.Queue, tontines *TontineService) *EnrollmentService {
	return &EnrollmentService{store: store, queue: queue, tontines: tontines}
}

// Join admits a user into a tontine with the given share count (0 defaults
// to 1). It enforces single active membership per user, capacity limits,
// and the per-user share cap, then records the participant with an
// estimated total commitment.
func (s *EnrollmentService) Join(ctx context.Context, tontineID, userID string, sharesCount int) (*participant.Participant, error) {
	req := participant.JoinRequest{SharesCount: sharesCount}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if sharesCount == 0 {
		sharesCount = 1
	}

	t, err := s.store.GetTontine(ctx, tontineID)
	if err != nil {
		return nil, err
	}
	if t.Terminal() {
		return nil, fmt.Errorf("%w: tontine is not joinable in status %q", domain.ErrStateConflict, t.Status)
	}

	if _, err := s.store.GetActiveParticipantByUser(ctx, tontineID, userID); err == nil {
		return nil, fmt.Errorf("%w: user is already a member", domain.ErrStateConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if !t.AllowMultipleShares && sharesCount != 1 {
		return nil, fmt.Errorf("%w: this tontine allows exactly one share per member", domain.ErrValidation)
	}
	if t.AllowMultipleShares && sharesCount > t.MaxSharesPerUser {
		return nil, fmt.Errorf("%w: shares_count %d exceeds the per-user limit of %d", domain.ErrStateConflict, sharesCount, t.MaxSharesPerUser)
	}

	actives, err := s.store.ListParticipants(ctx, tontineID, true)
	if err != nil {
		return nil, err
	}
	if t.MaxParticipants > 0 {
		if len(actives) >= t.MaxParticipants {
			return nil, fmt.Errorf("%w: tontine is full", domain.ErrStateConflict)
		}
		if t.AllowMultipleShares {
			if participant.TotalShares(actives)+sharesCount > t.MaxParticipants*t.MaxSharesPerUser {
				return nil, fmt.Errorf("%w: total shares would exceed capacity", domain.ErrStateConflict)
			}
		}
	}

	// Committed total is an estimate: the rotation length is not final
	// until activation freezes the roster.
	plannedRounds := t.MaxParticipants
	if plannedRounds == 0 {
		plannedRounds = len(actives) + 1
	}

	p := &participant.Participant{
		ID:             uuid.New().String(),
		TontineID:      tontineID,
		UserID:         userID,
		SharesCount:    sharesCount,
		TotalCommitted: t.AmountPerRound * int64(sharesCount) * int64(plannedRounds),
		IsActive:       true,
		JoinedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Concurrent double join lost the race on the partial unique
			// index.
			return nil, fmt.Errorf("%w: user is already a member", domain.ErrStateConflict)
		}
		return nil, err
	}
	return p, nil
}

// JoinByCode resolves an invite code through the registry's lookup rules
// (terminal tontines hidden, capacity enforced) and joins the tontine.
func (s *EnrollmentService) JoinByCode(ctx context.Context, code, userID string, sharesCount int) (*participant.Participant, error) {
	t, err := s.tontines.LookupByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	p, err := s.Join(ctx, t.ID, userID, sharesCount)
	if err != nil {
		return nil, err
	}
	publishEvent(ctx, s.queue, messagequeue.SubjectInviteAccepted, p)
	return p, nil
}

// Leave deactivates the caller's own participant row, and only while the
// tontine is still DRAFT: once money moves, removal is an administrative
// action, not a self-service one.
func (s *EnrollmentService) Leave(ctx context.Context, participantID string, caller *user.User) error {
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	if caller == nil || (p.UserID != caller.ID && !caller.Role.AtLeast(user.RoleModerator)) {
		return fmt.Errorf("leave tontine: %w", domain.ErrUnauthorized)
	}

	t, err := s.store.GetTontine(ctx, p.TontineID)
	if err != nil {
		return err
	}
	if t.Status != tontine.StatusDraft && !caller.Role.AtLeast(user.RoleModerator) {
		return fmt.Errorf("%w: cannot leave a tontine that is no longer in draft", domain.ErrStateConflict)
	}

	return s.store.SetParticipantActive(ctx, participantID, false)
}
