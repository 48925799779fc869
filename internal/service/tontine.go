package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/participant"
	"github.com/rpams/tontine-core/internal/domain/tontine"
	"github.com/rpams/tontine-core/internal/invite"
	"github.com/rpams/tontine-core/internal/port/database"
	"github.com/rpams/tontine-core/internal/port/messagequeue"
)

// TontineService is the registry: creation, capacity and status rules,
// invite code allocation, and membership gating.
type TontineService struct {
	store  database.Store
	queue  messagequeue.Queue
	rounds *RoundService
}

// NewTontineService creates a TontineService. rounds drives round 1
// creation at activation time.
func NewTontineService(store database.Store, queue messagequeue.Queue, rounds *RoundService) *TontineService {
	return &TontineService{store: store, queue: queue, rounds: rounds}
}

// Create validates the request, allocates a unique invite code, and persists
// the tontine in DRAFT. Allocation and creation share one transaction (the
// code's unique constraint), so two concurrent creations can never claim the
// same code; collisions retry with a fresh code up to invite.MaxAttempts.
func (s *TontineService) Create(ctx context.Context, req tontine.CreateRequest, creatorID string) (*tontine.Tontine, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.AllowMultipleShares {
		req.MaxSharesPerUser = 1
	}

	for attempt := 1; attempt <= invite.MaxAttempts; attempt++ {
		code, err := invite.Generate()
		if err != nil {
			return nil, err
		}
		t, err := s.store.CreateTontine(ctx, req, creatorID, code)
		if errors.Is(err, domain.ErrConflict) {
			slog.Warn("invite code collision, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("allocate invite code after %d attempts: %w", invite.MaxAttempts, domain.ErrCodeSpaceExhausted)
}

// Get returns a tontine by ID.
func (s *TontineService) Get(ctx context.Context, id string) (*tontine.Tontine, error) {
	return s.store.GetTontine(ctx, id)
}

// List returns tontines matching the filter.
func (s *TontineService) List(ctx context.Context, f tontine.Filter) ([]tontine.Tontine, error) {
	if f.Status != "" && !tontine.ValidStatus(f.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, f.Status)
	}
	return s.store.ListTontines(ctx, f)
}

// Participants returns the tontine's roster.
func (s *TontineService) Participants(ctx context.Context, tontineID string, activeOnly bool) ([]participant.Participant, error) {
	if _, err := s.store.GetTontine(ctx, tontineID); err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, tontineID, activeOnly)
}

// Activate moves a DRAFT or SUSPENDED tontine to ACTIVE and opens round 1
// if no round exists yet. Requires at least two active participants.
func (s *TontineService) Activate(ctx context.Context, id string) (*tontine.Tontine, error) {
	t, err := s.store.GetTontine(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tontine.CanTransition(t.Status, tontine.StatusActive) {
		return nil, fmt.Errorf("%w: cannot activate tontine in status %q", domain.ErrStateConflict, t.Status)
	}

	actives, err := s.store.ListParticipants(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if len(actives) < 2 {
		return nil, fmt.Errorf("%w: activation requires at least 2 active participants, have %d", domain.ErrStateConflict, len(actives))
	}

	err = s.store.UpdateTontineStatus(ctx, id, []tontine.Status{tontine.StatusDraft, tontine.StatusSuspended}, tontine.StatusActive)
	if err != nil {
		return nil, err
	}
	t.Status = tontine.StatusActive

	// First activation opens round 1; re-activation after a suspension
	// resumes the existing rounds.
	if _, err := s.store.GetLastRound(ctx, id); errors.Is(err, domain.ErrNotFound) {
		if _, err := s.rounds.OpenNextRound(ctx, t); err != nil {
			return nil, fmt.Errorf("open round 1: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.queue, messagequeue.SubjectTontineActivated, t)
	return t, nil
}

// LookupByInviteCode resolves a trimmed, case-insensitive invite code to a
// joinable tontine. Terminal tontines surface as not found; a tontine at
// capacity surfaces as a state conflict.
func (s *TontineService) LookupByInviteCode(ctx context.Context, code string) (*tontine.Tontine, error) {
	normalized := invite.Normalize(code)
	if normalized == "" {
		return nil, fmt.Errorf("%w: invite code is required", domain.ErrValidation)
	}

	t, err := s.store.GetTontineByInviteCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if t.Terminal() {
		return nil, fmt.Errorf("lookup invite code: %w", domain.ErrNotFound)
	}
	if t.MaxParticipants > 0 {
		actives, err := s.store.ListParticipants(ctx, t.ID, true)
		if err != nil {
			return nil, err
		}
		if len(actives) >= t.MaxParticipants {
			return nil, fmt.Errorf("%w: tontine is full", domain.ErrStateConflict)
		}
	}
	return t, nil
}

// SetStatus applies an administrative status change: SUSPENDED, CANCELLED,
// or forced COMPLETED. Forcing completion cancels all open payments of
// in-flight rounds in the same transaction.
func (s *TontineService) SetStatus(ctx context.Context, id string, to tontine.Status) (*tontine.Tontine, error) {
	switch to {
	case tontine.StatusSuspended, tontine.StatusCancelled, tontine.StatusCompleted:
	default:
		return nil, fmt.Errorf("%w: status %q cannot be set directly", domain.ErrValidation, to)
	}

	t, err := s.store.GetTontine(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tontine.CanTransition(t.Status, to) {
		return nil, fmt.Errorf("%w: cannot move tontine from %q to %q", domain.ErrStateConflict, t.Status, to)
	}

	if to == tontine.StatusCompleted {
		if err := s.store.ForceCompleteTontine(ctx, id); err != nil {
			return nil, err
		}
		t.Status = to
		publishEvent(ctx, s.queue, messagequeue.SubjectTontineCompleted, t)
		return t, nil
	}

	if err := s.store.UpdateTontineStatus(ctx, id, []tontine.Status{t.Status}, to); err != nil {
		return nil, err
	}
	t.Status = to
	return t, nil
}
