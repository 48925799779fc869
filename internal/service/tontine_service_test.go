package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/payment"
	"github.com/rpams/tontine-core/internal/domain/round"
	"github.com/rpams/tontine-core/internal/domain/tontine"
	"github.com/rpams/tontine-core/internal/invite"
	"github.com/rpams/tontine-core/internal/port/messagequeue"
)

func TestTontineService_Create(t *testing.T) {
	r := newRig(0)
	ctx := context.Background()

	created, err := r.tontines.Create(ctx, validCreateRequest(), "creator-1")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.Status != tontine.StatusDraft {
		t.Errorf("status = %q, want draft", created.Status)
	}
	if len(created.InviteCode) != invite.CodeLength {
		t.Errorf("invite code %q, want %d chars", created.InviteCode, invite.CodeLength)
	}
	if created.MaxSharesPerUser != 1 {
		t.Errorf("MaxSharesPerUser = %d, want 1 when multiple shares are off", created.MaxSharesPerUser)
	}
	if created.CreatorID != "creator-1" {
		t.Errorf("creator = %q", created.CreatorID)
	}
}

func TestTontineService_Create_ValidationError(t *testing.T) {
	r := newRig(0)
	req := validCreateRequest()
	req.AmountPerRound = 0

	_, err := r.tontines.Create(context.Background(), req, "creator-1")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestTontineService_Create_CodeSpaceExhausted(t *testing.T) {
	r := newRig(0)
	// Every insert collides, as if the code space were saturated.
	r.store.createTontineErr = fmt.Errorf("invite code taken: %w", domain.ErrConflict)

	_, err := r.tontines.Create(context.Background(), validCreateRequest(), "creator-1")
	if !errors.Is(err, domain.ErrCodeSpaceExhausted) {
		t.Fatalf("error = %v, want ErrCodeSpaceExhausted", err)
	}
	if n := len(r.store.tontines); n != 0 {
		t.Errorf("tontines persisted = %d, want 0 after exhausted retries", n)
	}
}

func TestTontineService_Activate(t *testing.T) {
	r := newRig(0)
	ctx := context.Background()
	created, _ := r.tontines.Create(ctx, validCreateRequest(), "creator-1")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.seedParticipant(ctx, created.ID, "alice", 1, base)
	r.seedParticipant(ctx, created.ID, "bob", 1, base.Add(time.Hour))

	activated, err := r.tontines.Activate(ctx, created.ID)
	if err != nil {
		t.Fatalf("Activate() error: %v", err)
	}
	if activated.Status != tontine.StatusActive {
		t.Errorf("status = %q, want active", activated.Status)
	}

	// Activation opens round 1, due on the start date, won by the earliest
	// joiner.
	first, err := r.store.GetLastRound(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetLastRound() error: %v", err)
	}
	if first.RoundNumber != 1 {
		t.Errorf("round number = %d, want 1", first.RoundNumber)
	}
	if !first.DueDate.Equal(created.StartDate) {
		t.Errorf("due date = %v, want start date %v", first.DueDate, created.StartDate)
	}
	if first.WinnerID != "p-alice" {
		t.Errorf("winner = %q, want p-alice", first.WinnerID)
	}
	if first.ExpectedAmount != 2000 {
		t.Errorf("expected amount = %d, want 2000", first.ExpectedAmount)
	}
	if r.queue.published(messagequeue.SubjectTontineActivated) != 1 {
		t.Error("expected a tontines.activated event")
	}
}

func TestTontineService_Activate_RequiresTwoParticipants(t *testing.T) {
	r := newRig(0)
	ctx := context.Background()
	created, _ := r.tontines.Create(ctx, validCreateRequest(), "creator-1")
	r.seedParticipant(ctx, created.ID, "alice", 1, time.Now().UTC())

	_, err := r.tontines.Activate(ctx, created.ID)
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("error = %v, want ErrStateConflict", err)
	}
}

func TestTontineService_Activate_ResumeKeepsRounds(t *testing.T) {
	r := newRig(0)
	ctx := context.Background()
	created, _ := r.tontines.Create(ctx, validCreateRequest(), "creator-1")
	base := time.Now().UTC()
	r.seedParticipant(ctx, created.ID, "alice", 1, base)
	r.seedParticipant(ctx, created.ID, "bob", 1, base.Add(time.Minute))

	if _, err := r.tontines.Activate(ctx, created.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := r.tontines.SetStatus(ctx, created.ID, tontine.StatusSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if _, err := r.tontines.Activate(ctx, created.ID); err != nil {
		t.Fatalf("re-activate: %v", err)
	}

	rounds, _ := r.store.ListRounds(ctx, created.ID, round.Filter{})
	if len(rounds) != 1 {
		t.Errorf("rounds after resume = %d, want 1 (no duplicate round 1)", len(rounds))
	}
}

func TestTontineService_LookupByInviteCode(t *testing.T) {
	r := newRig(0)
	ctx := context.Background()
	created, _ := r.tontines.Create(ctx, validCreateRequest(), "creator-1")

	// Lookup is case-insensitive and tolerant of surrounding whitespace.
	raw := "  " + created.InviteCode + "  "
	found, err := r.tontines.LookupByInviteCode(ctx, raw)
	if err != nil {
		t.Fatalf("LookupByInviteCode() error: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found %q, want %q", found.ID, created.ID)
	}

	if _, err := r.tontines.LookupByInviteCode(ctx, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty code error = %v, want ErrValidation", err)
	}
	if _, err := r.tontines.LookupByInviteCode(ctx, "NOPE1234"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown code error = %v, want ErrNotFound", err)
	}
}

func TestTontineService_LookupByInviteCode_TerminalHidden(t *testing.T) {
	r := newRig(0)
	ctx := context.Background()
	created, _ := r.tontines.Create(ctx, validCreateRequest(), "creator-1")
	if _, err := r.tontines.SetStatus(ctx, created.ID, tontine.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := r.tontines.LookupByInviteCode(ctx, created.InviteCode)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound for a cancelled tontine", err)
	}
}

func TestTontineService_LookupByInviteCode_Full(t *testing.T) {
	r := newRig(0)
	ctx := context.Background()
	req := validCreateRequest()
	req.MaxParticipants = 2
	created, _ := r.tontines.Create(ctx, req, "creator-1")
	base := time.Now().UTC()
	r.seedParticipant(ctx, created.ID, "alice", 1, base)
	r.seedParticipant(ctx, created.ID, "bob", 1, base.Add(time.Minute))

	_, err := r.tontines.LookupByInviteCode(ctx, created.InviteCode)
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("error = %v, want ErrStateConflict when at capacity", err)
	}
}

func TestTontineService_SetStatus_ForceComplete(t *testing.T) {
	r := newRig(0)
	ctx := context.Background()
	created, _ := r.tontines.Create(ctx, validCreateRequest(), "creator-1")
	base := time.Now().UTC()
	r.seedParticipant(ctx, created.ID, "alice", 1, base)
	r.seedParticipant(ctx, created.ID, "bob", 1, base.Add(time.Minute))
	if _, err := r.tontines.Activate(ctx, created.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	first, _ := r.store.GetLastRound(ctx, created.ID)
	if _, err := r.rounds.BeginCollection(ctx, first.ID); err != nil {
		t.Fatalf("begin collection: %v", err)
	}

	forced, err := r.tontines.SetStatus(ctx, created.ID, tontine.StatusCompleted)
	if err != nil {
		t.Fatalf("SetStatus(completed) error: %v", err)
	}
	if forced.Status != tontine.StatusCompleted {
		t.Errorf("status = %q, want completed", forced.Status)
	}

	// Forced completion cancels the in-flight round's open payments.
	payments, _ := r.store.ListPayments(ctx, payment.Filter{RoundID: first.ID})
	for _, p := range payments {
		if p.Status != payment.StatusCancelled {
			t.Errorf("payment %s status = %q, want cancelled", p.ID, p.Status)
		}
	}
	if r.queue.published(messagequeue.SubjectTontineCompleted) != 1 {
		t.Error("expected a tontines.completed event")
	}
}

func TestTontineService_SetStatus_RejectsDirectStates(t *testing.T) {
	r := newRig(0)
	ctx := context.Background()
	created, _ := r.tontines.Create(ctx, validCreateRequest(), "creator-1")

	for _, to := range []tontine.Status{tontine.StatusDraft, tontine.StatusActive} {
		if _, err := r.tontines.SetStatus(ctx, created.ID, to); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("SetStatus(%q) error = %v, want ErrValidation", to, err)
		}
	}
	// Draft cannot be suspended.
	if _, err := r.tontines.SetStatus(ctx, created.ID, tontine.StatusSuspended); !errors.Is(err, domain.ErrStateConflict) {
		t.Errorf("suspend draft error = %v, want ErrStateConflict", err)
	}
}
