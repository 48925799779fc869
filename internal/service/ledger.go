package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/payment"
	"github.com/rpams/tontine-core/internal/domain/round"
	"github.com/rpams/tontine-core/internal/domain/user"
	"github.com/rpams/tontine-core/internal/port/database"
	"github.com/rpams/tontine-core/internal/port/messagequeue"
)

// LedgerService owns payment records: issuance, settlement, and the atomic
// collected-amount accounting on the parent round.
type LedgerService struct {
	store database.Store
	queue messagequeue.Queue
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(store database.Store, queue messagequeue.Queue) *LedgerService {
	return &LedgerService{store: store, queue: queue}
}

// IssuePayments builds one PENDING payment per active participant of the
// round's tontine, each for amountPerRound x the participant's share count.
// Persistence is idempotent per (participant, round): re-invocation never
// duplicates payments.
func (s *LedgerService) IssuePayments(ctx context.Context, r *round.Round) ([]payment.Payment, error) {
	t, err := s.store.GetTontine(ctx, r.TontineID)
	if err != nil {
		return nil, err
	}
	actives, err := s.store.ListParticipants(ctx, r.TontineID, true)
	if err != nil {
		return nil, err
	}

	payments := make([]payment.Payment, 0, len(actives))
	for i := range actives {
		p := actives[i]
		payments = append(payments, payment.Payment{
			ID:            uuid.New().String(),
			UserID:        p.UserID,
			ParticipantID: p.ID,
			RoundID:       r.ID,
			Amount:        t.AmountPerRound * int64(p.SharesCount),
			Status:        payment.StatusPending,
			DueDate:       r.DueDate,
		})
	}
	return payments, nil
}

// Get returns a payment by ID.
func (s *LedgerService) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return s.store.GetPayment(ctx, id)
}

// List returns payments matching the filter.
func (s *LedgerService) List(ctx context.Context, f payment.Filter) ([]payment.Payment, error) {
	if f.Status != "" && !payment.ValidStatus(f.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, f.Status)
	}
	return s.store.ListPayments(ctx, f)
}

// Intent returns the caller's own pending payment for a round — the record
// a payment provider flow settles against. Payments are issued when the
// round begins collecting, so the intent is a lookup, not a write.
func (s *LedgerService) Intent(ctx context.Context, roundID, userID string) (*payment.Payment, error) {
	payments, err := s.store.ListPayments(ctx, payment.Filter{
		RoundID: roundID,
		UserID:  userID,
		Status:  payment.StatusPending,
	})
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, fmt.Errorf("no pending payment for round: %w", domain.ErrNotFound)
	}
	return &payments[0], nil
}

// MarkPaid settles a PENDING payment. The status write and the parent
// round's collected-amount increment are a single atomic unit in the store,
// because multiple payments for one round settle concurrently. Callers may
// only settle their own payments unless they hold the moderator role.
func (s *LedgerService) MarkPaid(ctx context.Context, id string, req payment.SettleRequest, caller *user.User) (*payment.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller == nil || (p.UserID != caller.ID && !caller.Role.AtLeast(user.RoleModerator)) {
		return nil, fmt.Errorf("settle payment: %w", domain.ErrUnauthorized)
	}

	settled, err := s.store.MarkPaymentPaid(ctx, id, req, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.queue, messagequeue.SubjectPaymentReceived, settled)
	return settled, nil
}

// MarkFailed moves a PENDING payment to FAILED.
func (s *LedgerService) MarkFailed(ctx context.Context, id string) (*payment.Payment, error) {
	return s.store.MarkPaymentFailed(ctx, id)
}

// Reset is the admin override returning a FAILED or PAID payment to
// PENDING. Reversing a PAID payment decrements the round's collected
// amount symmetrically in the same transaction.
func (s *LedgerService) Reset(ctx context.Context, id string) (*payment.Payment, error) {
	return s.store.ResetPayment(ctx, id)
}
