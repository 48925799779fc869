// Package database defines the database store port (interface).
//
// The persistence collaborator must offer atomic single-row updates,
// multi-row transactions, and uniqueness constraints (invite codes,
// one active membership per user, one payment per participant per round).
package database

import (
	"context"
	"time"

	"github.com/rpams/tontine-core/internal/domain/participant"
	"github.com/rpams/tontine-core/internal/domain/payment"
	"github.com/rpams/tontine-core/internal/domain/round"
	"github.com/rpams/tontine-core/internal/domain/tontine"
	"github.com/rpams/tontine-core/internal/domain/user"
)

// AllRows on a list filter's Limit disables paging. Invariant-bearing
// internal reads (winner rotation, round completion, stats) pass it so a
// page boundary can never hide rows from the computation; the HTTP list
// endpoints keep the default page.
const AllRows = -1

// Store is the port interface for database operations.
type Store interface {
	// Tontines.
	//
	// CreateTontine persists the tontine and claims its invite code in one
	// transaction; a code collision surfaces as domain.ErrConflict so the
	// caller can retry with a fresh code.
	CreateTontine(ctx context.Context, req tontine.CreateRequest, creatorID, inviteCode string) (*tontine.Tontine, error)
	GetTontine(ctx context.Context, id string) (*tontine.Tontine, error)
	GetTontineByInviteCode(ctx context.Context, code string) (*tontine.Tontine, error)
	ListTontines(ctx context.Context, f tontine.Filter) ([]tontine.Tontine, error)
	// UpdateTontineStatus performs a status-guarded conditional update:
	// the write only lands when the current status is one of from.
	UpdateTontineStatus(ctx context.Context, id string, from []tontine.Status, to tontine.Status) error
	// ForceCompleteTontine marks the tontine completed and cancels every
	// open payment of its non-terminal rounds in a single transaction.
	ForceCompleteTontine(ctx context.Context, id string) error

	// Participants.
	CreateParticipant(ctx context.Context, p *participant.Participant) error
	GetParticipant(ctx context.Context, id string) (*participant.Participant, error)
	GetActiveParticipantByUser(ctx context.Context, tontineID, userID string) (*participant.Participant, error)
	ListParticipants(ctx context.Context, tontineID string, activeOnly bool) ([]participant.Participant, error)
	SetParticipantActive(ctx context.Context, id string, active bool) error

	// Rounds.
	CreateRound(ctx context.Context, r *round.Round) error
	GetRound(ctx context.Context, id string) (*round.Round, error)
	ListRounds(ctx context.Context, tontineID string, f round.Filter) ([]round.Round, error)
	// GetLastRound returns the round with the highest number, or
	// domain.ErrNotFound when the tontine has no rounds yet.
	GetLastRound(ctx context.Context, tontineID string) (*round.Round, error)
	// BeginRoundCollection moves the round PENDING -> COLLECTING and bulk
	// inserts its payments in one transaction. The insert is idempotent per
	// (participant_id, round_id). round.ErrAlreadyCollecting is returned
	// when a sibling round is already collecting.
	BeginRoundCollection(ctx context.Context, roundID string, startedAt time.Time, payments []payment.Payment) (*round.Round, error)
	// CompleteRound moves the round COLLECTING -> COMPLETED with a
	// status-guarded update so a payout is never distributed twice. The
	// distributed amount is computed from the collected amount net of
	// feeBps basis points inside the same transaction.
	// round.ErrPaymentsOutstanding is returned while any payment of the
	// round is still pending. The round row stays locked for the duration
	// so a concurrent payment reset cannot slip a payment back to PENDING
	// between the outstanding check and the status write.
	CompleteRound(ctx context.Context, roundID string, feeBps int64, completedAt time.Time) (*round.Round, error)
	// CancelRound cancels a PENDING or COLLECTING round and marks its
	// outstanding payments cancelled in the same transaction.
	CancelRound(ctx context.Context, roundID, reason string) (*round.Round, error)
	// ReorderWinners overwrites winner assignments across the given rounds
	// all-or-nothing. round.ErrRoundCompleted aborts the whole batch when
	// any targeted round has already distributed its payout.
	ReorderWinners(ctx context.Context, tontineID string, assignments []round.WinnerAssignment) error

	// Payments.
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
	ListPayments(ctx context.Context, f payment.Filter) ([]payment.Payment, error)
	// MarkPaymentPaid settles a pending payment and increments the parent
	// round's collected amount as one atomic unit. payment.ErrAlreadySettled
	// is returned when the payment is no longer pending.
	MarkPaymentPaid(ctx context.Context, id string, req payment.SettleRequest, paidAt time.Time) (*payment.Payment, error)
	MarkPaymentFailed(ctx context.Context, id string) (*payment.Payment, error)
	// ResetPayment returns a FAILED or PAID payment to PENDING, decrementing
	// the round's collected amount symmetrically when reversing a PAID one.
	ResetPayment(ctx context.Context, id string) (*payment.Payment, error)

	// Users.
	UpsertUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	UpdateUserRole(ctx context.Context, id string, role user.Role) error
}
