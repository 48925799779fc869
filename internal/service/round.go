package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/participant"
	"github.com/rpams/tontine-core/internal/domain/round"
	"github.com/rpams/tontine-core/internal/domain/tontine"
	"github.com/rpams/tontine-core/internal/port/database"
	"github.com/rpams/tontine-core/internal/port/messagequeue"
)

// RoundService drives the round state machine: creation, collection,
// completion, and cancellation. Advancement is caller-triggered — there is
// no scheduler loop in the core; an external cron can call these endpoints.
type RoundService struct {
	store    database.Store
	queue    messagequeue.Queue
	rotation *RotationService
	ledger   *LedgerService
	feeBps   int64
}

// NewRoundService creates a RoundService. feeBps is the platform fee in
// basis points withheld from each distribution (0 disables the fee).
func NewRoundService(store database.Store, queue messagequeue.Queue, rotation *RotationService, ledger *LedgerService, feeBps int64) *RoundService {
	return &RoundService{store: store, queue: queue, rotation: rotation, ledger: ledger, feeBps: feeBps}
}

// Get returns a round by ID.
func (s *RoundService) Get(ctx context.Context, id string) (*round.Round, error) {
	return s.store.GetRound(ctx, id)
}

// List returns a tontine's rounds matching the filter.
func (s *RoundService) List(ctx context.Context, tontineID string, f round.Filter) ([]round.Round, error) {
	if _, err := s.store.GetTontine(ctx, tontineID); err != nil {
		return nil, err
	}
	return s.store.ListRounds(ctx, tontineID, f)
}

// OpenNextRound creates the next PENDING round for the tontine: number
// lastRoundNumber+1, due one contribution period after the previous due
// date (or the start date for round 1), expecting amountPerRound for every
// active share. The winner must be resolvable before creation.
func (s *RoundService) OpenNextRound(ctx context.Context, t *tontine.Tontine) (*round.Round, error) {
	actives, err := s.store.ListParticipants(ctx, t.ID, true)
	if err != nil {
		return nil, err
	}

	rotationLen := t.MaxParticipants
	if rotationLen == 0 {
		rotationLen = len(actives)
	}

	nextNumber := 1
	dueDate := t.StartDate
	last, err := s.store.GetLastRound(ctx, t.ID)
	switch {
	case err == nil:
		nextNumber = last.RoundNumber + 1
		dueDate = t.NextDueDate(last.DueDate)
	case errors.Is(err, domain.ErrNotFound):
		// First round of the rotation.
	default:
		return nil, err
	}

	if nextNumber > rotationLen {
		return nil, round.ErrAtCapacity
	}

	winnerID, err := s.rotation.NextWinner(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	r := &round.Round{
		ID:             uuid.New().String(),
		TontineID:      t.ID,
		RoundNumber:    nextNumber,
		ExpectedAmount: t.AmountPerRound * int64(participant.TotalShares(actives)),
		DueDate:        dueDate,
		Status:         round.StatusPending,
		WinnerID:       winnerID,
	}
	if err := s.store.CreateRound(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// OpenNext is the handler-facing form of OpenNextRound, resolving the
// tontine and requiring it to be ACTIVE.
func (s *RoundService) OpenNext(ctx context.Context, tontineID string) (*round.Round, error) {
	t, err := s.store.GetTontine(ctx, tontineID)
	if err != nil {
		return nil, err
	}
	if t.Status != tontine.StatusActive {
		return nil, fmt.Errorf("%w: rounds can only be opened on an active tontine", domain.ErrStateConflict)
	}
	return s.OpenNextRound(ctx, t)
}

// BeginCollection moves a PENDING round to COLLECTING and issues one
// payment per active participant in the same transaction. At most one
// round per tontine may collect at a time.
func (s *RoundService) BeginCollection(ctx context.Context, roundID string) (*round.Round, error) {
	r, err := s.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if r.Status != round.StatusPending {
		return nil, fmt.Errorf("%w: cannot begin collection on a %q round", domain.ErrStateConflict, r.Status)
	}

	payments, err := s.ledger.IssuePayments(ctx, r)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.BeginRoundCollection(ctx, roundID, time.Now().UTC(), payments)
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.queue, messagequeue.SubjectPaymentsDue, updated)
	return updated, nil
}

// Complete moves a COLLECTING round to COMPLETED once every issued payment
// is terminal, distributes the collected amount net of the platform fee,
// and opens the next round — or completes the tontine when the rotation is
// finished. The status-guarded update makes completion at-most-once: a
// payout is never distributed twice.
func (s *RoundService) Complete(ctx context.Context, roundID string) (*round.Round, error) {
	completed, err := s.store.CompleteRound(ctx, roundID, s.feeBps, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.queue, messagequeue.SubjectRoundCompleted, completed)

	t, err := s.store.GetTontine(ctx, completed.TontineID)
	if err != nil {
		return completed, err
	}

	_, err = s.OpenNextRound(ctx, t)
	if errors.Is(err, round.ErrAtCapacity) || errors.Is(err, round.ErrNoWinnerAvailable) {
		// Rotation fully planned. The tontine itself only finishes once no
		// open round remains; pre-opened rounds still have to run.
		err = nil
		rounds, listErr := s.store.ListRounds(ctx, t.ID, round.Filter{Limit: database.AllRows})
		if listErr != nil {
			return completed, listErr
		}
		done := true
		for i := range rounds {
			if !rounds[i].Terminal() {
				done = false
				break
			}
		}
		if done {
			err = s.store.UpdateTontineStatus(ctx, t.ID, []tontine.Status{tontine.StatusActive}, tontine.StatusCompleted)
			if err == nil {
				t.Status = tontine.StatusCompleted
				publishEvent(ctx, s.queue, messagequeue.SubjectTontineCompleted, t)
			}
		}
	}
	if err != nil {
		return completed, fmt.Errorf("advance after round %d: %w", completed.RoundNumber, err)
	}
	return completed, nil
}

// Cancel aborts a PENDING or COLLECTING round as an administrative escape
// hatch, cancelling its outstanding payments.
func (s *RoundService) Cancel(ctx context.Context, roundID, reason string) (*round.Round, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: a cancellation reason is required", domain.ErrValidation)
	}
	return s.store.CancelRound(ctx, roundID, reason)
}
