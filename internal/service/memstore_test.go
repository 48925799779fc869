package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/participant"
	"github.com/rpams/tontine-core/internal/domain/payment"
	"github.com/rpams/tontine-core/internal/domain/round"
	"github.com/rpams/tontine-core/internal/domain/tontine"
	"github.com/rpams/tontine-core/internal/domain/user"
	"github.com/rpams/tontine-core/internal/port/cache"
	"github.com/rpams/tontine-core/internal/port/database"
	"github.com/rpams/tontine-core/internal/port/messagequeue"
)

var (
	_ database.Store     = (*mockStore)(nil)
	_ messagequeue.Queue = (*mockQueue)(nil)
	_ cache.Cache        = (*mockCache)(nil)
)

// mockStore is an in-memory implementation of database.Store faithful to
// the port's transactional contracts (guarded updates, atomic increments),
// so lifecycle scenarios run end to end without a database.
type mockStore struct {
	mu           sync.Mutex
	tontines     map[string]*tontine.Tontine
	participants map[string]*participant.Participant
	rounds       map[string]*round.Round
	payments     map[string]*payment.Payment
	users        map[string]*user.User

	// Error hooks — set these to inject failures.
	createTontineErr error
	createRoundErr   error
	markPaidErr      error
}

func newMockStore() *mockStore {
	return &mockStore{
		tontines:     make(map[string]*tontine.Tontine),
		participants: make(map[string]*participant.Participant),
		rounds:       make(map[string]*round.Round),
		payments:     make(map[string]*payment.Payment),
		users:        make(map[string]*user.User),
	}
}

// --- Tontines ---

func (m *mockStore) CreateTontine(_ context.Context, req tontine.CreateRequest, creatorID, inviteCode string) (*tontine.Tontine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createTontineErr != nil {
		return nil, m.createTontineErr
	}
	for _, t := range m.tontines {
		if t.InviteCode == inviteCode {
			return nil, fmt.Errorf("invite code taken: %w", domain.ErrConflict)
		}
	}
	now := time.Now().UTC()
	t := &tontine.Tontine{
		ID:                  uuid.New().String(),
		Name:                req.Name,
		Description:         req.Description,
		AmountPerRound:      req.AmountPerRound,
		Status:              tontine.StatusDraft,
		StartDate:           req.StartDate,
		MaxParticipants:     req.MaxParticipants,
		FrequencyType:       req.FrequencyType,
		FrequencyValue:      req.FrequencyValue,
		AllowMultipleShares: req.AllowMultipleShares,
		MaxSharesPerUser:    req.MaxSharesPerUser,
		InviteCode:          inviteCode,
		CreatorID:           creatorID,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	m.tontines[t.ID] = t
	cp := *t
	return &cp, nil
}

func (m *mockStore) GetTontine(_ context.Context, id string) (*tontine.Tontine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tontines[id]
	if !ok {
		return nil, fmt.Errorf("get tontine %s: %w", id, domain.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *mockStore) GetTontineByInviteCode(_ context.Context, code string) (*tontine.Tontine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tontines {
		if t.InviteCode == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get tontine by code: %w", domain.ErrNotFound)
}

func (m *mockStore) ListTontines(_ context.Context, f tontine.Filter) ([]tontine.Tontine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tontine.Tontine
	for _, t := range m.tontines {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.CreatorID != "" && t.CreatorID != f.CreatorID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

// page mirrors the postgres adapter's bounds: a zero limit falls back to
// the 50-row default page, database.AllRows lifts it. Keeping the fake
// honest here is what lets unit tests catch a paged invariant read.
func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit == database.AllRows {
		return in
	}
	if limit <= 0 {
		limit = 50
	} else if limit > 200 {
		limit = 200
	}
	if len(in) > limit {
		in = in[:limit]
	}
	return in
}

func (m *mockStore) UpdateTontineStatus(_ context.Context, id string, from []tontine.Status, to tontine.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tontines[id]
	if !ok {
		return fmt.Errorf("update tontine %s: %w", id, domain.ErrNotFound)
	}
	for _, f := range from {
		if t.Status == f {
			t.Status = to
			t.Version++
			return nil
		}
	}
	return fmt.Errorf("%w: tontine %s is %q", domain.ErrStateConflict, id, t.Status)
}

func (m *mockStore) ForceCompleteTontine(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tontines[id]
	if !ok {
		return fmt.Errorf("force complete tontine %s: %w", id, domain.ErrNotFound)
	}
	t.Status = tontine.StatusCompleted
	for _, r := range m.rounds {
		if r.TontineID != id || r.Terminal() {
			continue
		}
		r.Status = round.StatusCancelled
		for _, p := range m.payments {
			if p.RoundID == r.ID && p.Status == payment.StatusPending {
				p.Status = payment.StatusCancelled
			}
		}
	}
	return nil
}

// --- Participants ---

func (m *mockStore) CreateParticipant(_ context.Context, p *participant.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.participants {
		if existing.TontineID == p.TontineID && existing.UserID == p.UserID && existing.IsActive {
			return fmt.Errorf("active membership exists: %w", domain.ErrConflict)
		}
	}
	cp := *p
	m.participants[p.ID] = &cp
	return nil
}

func (m *mockStore) GetParticipant(_ context.Context, id string) (*participant.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, fmt.Errorf("get participant %s: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) GetActiveParticipantByUser(_ context.Context, tontineID, userID string) (*participant.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.TontineID == tontineID && p.UserID == userID && p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("active participant: %w", domain.ErrNotFound)
}

func (m *mockStore) ListParticipants(_ context.Context, tontineID string, activeOnly bool) ([]participant.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []participant.Participant
	for _, p := range m.participants {
		if p.TontineID != tontineID {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (m *mockStore) SetParticipantActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return fmt.Errorf("set participant active %s: %w", id, domain.ErrNotFound)
	}
	p.IsActive = active
	return nil
}

// --- Rounds ---

func (m *mockStore) CreateRound(_ context.Context, r *round.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createRoundErr != nil {
		return m.createRoundErr
	}
	for _, existing := range m.rounds {
		if existing.TontineID == r.TontineID && existing.RoundNumber == r.RoundNumber {
			return fmt.Errorf("round number taken: %w", domain.ErrConflict)
		}
	}
	now := time.Now().UTC()
	cp := *r
	cp.Version = 1
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.rounds[r.ID] = &cp
	*r = cp
	return nil
}

func (m *mockStore) GetRound(_ context.Context, id string) (*round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return nil, fmt.Errorf("get round %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *mockStore) ListRounds(_ context.Context, tontineID string, f round.Filter) ([]round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []round.Round
	for _, r := range m.rounds {
		if r.TontineID != tontineID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return page(out, f.Limit, f.Offset), nil
}

func (m *mockStore) GetLastRound(_ context.Context, tontineID string) (*round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *round.Round
	for _, r := range m.rounds {
		if r.TontineID == tontineID && (last == nil || r.RoundNumber > last.RoundNumber) {
			last = r
		}
	}
	if last == nil {
		return nil, fmt.Errorf("last round: %w", domain.ErrNotFound)
	}
	cp := *last
	return &cp, nil
}

func (m *mockStore) BeginRoundCollection(_ context.Context, roundID string, startedAt time.Time, payments []payment.Payment) (*round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("begin collection %s: %w", roundID, domain.ErrNotFound)
	}
	for _, sibling := range m.rounds {
		if sibling.TontineID == r.TontineID && sibling.ID != r.ID && sibling.Status == round.StatusCollecting {
			return nil, round.ErrAlreadyCollecting
		}
	}
	if r.Status != round.StatusPending {
		return nil, fmt.Errorf("%w: round is %q", domain.ErrStateConflict, r.Status)
	}
	for i := range payments {
		p := payments[i]
		if m.paymentExists(p.ParticipantID, p.RoundID) {
			continue
		}
		now := time.Now().UTC()
		p.CreatedAt = now
		p.UpdatedAt = now
		m.payments[p.ID] = &p
	}
	r.Status = round.StatusCollecting
	r.CollectionStartDate = &startedAt
	r.Version++
	cp := *r
	return &cp, nil
}

func (m *mockStore) paymentExists(participantID, roundID string) bool {
	for _, p := range m.payments {
		if p.ParticipantID == participantID && p.RoundID == roundID {
			return true
		}
	}
	return false
}

func (m *mockStore) CompleteRound(_ context.Context, roundID string, feeBps int64, completedAt time.Time) (*round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("complete round %s: %w", roundID, domain.ErrNotFound)
	}
	if r.Status != round.StatusCollecting {
		return nil, fmt.Errorf("%w: round is %q, not collecting", domain.ErrStateConflict, r.Status)
	}
	for _, p := range m.payments {
		if p.RoundID == roundID && p.Status == payment.StatusPending {
			return nil, round.ErrPaymentsOutstanding
		}
	}
	r.Status = round.StatusCompleted
	r.DistributedAmount = r.CollectedAmount - r.CollectedAmount*feeBps/10000
	r.CompletedAt = &completedAt
	r.Version++
	cp := *r
	return &cp, nil
}

func (m *mockStore) CancelRound(_ context.Context, roundID, reason string) (*round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("cancel round %s: %w", roundID, domain.ErrNotFound)
	}
	if !round.CanTransition(r.Status, round.StatusCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel a %q round", domain.ErrStateConflict, r.Status)
	}
	r.Status = round.StatusCancelled
	r.CancelReason = reason
	r.Version++
	for _, p := range m.payments {
		if p.RoundID == roundID && p.Status == payment.StatusPending {
			p.Status = payment.StatusCancelled
		}
	}
	cp := *r
	return &cp, nil
}

func (m *mockStore) ReorderWinners(_ context.Context, tontineID string, assignments []round.WinnerAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Validate the whole batch before writing anything: all-or-nothing.
	for _, a := range assignments {
		r, ok := m.rounds[a.RoundID]
		if !ok || r.TontineID != tontineID {
			return fmt.Errorf("reorder round %s: %w", a.RoundID, domain.ErrNotFound)
		}
		if r.Status == round.StatusCompleted {
			return round.ErrRoundCompleted
		}
	}
	for _, a := range assignments {
		r := m.rounds[a.RoundID]
		r.WinnerID = a.ParticipantID
		r.Version++
	}
	return nil
}

// --- Payments ---

func (m *mockStore) GetPayment(_ context.Context, id string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("get payment %s: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) ListPayments(_ context.Context, f payment.Filter) ([]payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []payment.Payment
	for _, p := range m.payments {
		if f.RoundID != "" && p.RoundID != f.RoundID {
			continue
		}
		if f.ParticipantID != "" && p.ParticipantID != f.ParticipantID {
			continue
		}
		if f.UserID != "" && p.UserID != f.UserID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f.Limit, f.Offset), nil
}

func (m *mockStore) MarkPaymentPaid(_ context.Context, id string, req payment.SettleRequest, paidAt time.Time) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markPaidErr != nil {
		return nil, m.markPaidErr
	}
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("mark paid %s: %w", id, domain.ErrNotFound)
	}
	if p.Status != payment.StatusPending {
		return nil, payment.ErrAlreadySettled
	}
	p.Status = payment.StatusPaid
	p.PaidAt = &paidAt
	p.TransactionID = req.TransactionID
	p.Method = req.Method
	p.Notes = req.Notes
	if r, ok := m.rounds[p.RoundID]; ok {
		r.CollectedAmount += p.Amount
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) MarkPaymentFailed(_ context.Context, id string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("mark failed %s: %w", id, domain.ErrNotFound)
	}
	if p.Status != payment.StatusPending {
		return nil, payment.ErrAlreadySettled
	}
	p.Status = payment.StatusFailed
	cp := *p
	return &cp, nil
}

func (m *mockStore) ResetPayment(_ context.Context, id string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("reset payment %s: %w", id, domain.ErrNotFound)
	}
	switch p.Status {
	case payment.StatusPaid:
		if r, ok := m.rounds[p.RoundID]; ok {
			r.CollectedAmount -= p.Amount
		}
	case payment.StatusFailed:
	default:
		return nil, fmt.Errorf("%w: only paid or failed payments can be reset", domain.ErrStateConflict)
	}
	p.Status = payment.StatusPending
	p.PaidAt = nil
	p.TransactionID = ""
	cp := *p
	return &cp, nil
}

// --- Users ---

func (m *mockStore) UpsertUser(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *mockStore) UpdateUserRole(_ context.Context, id string, role user.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("update user role %s: %w", id, domain.ErrNotFound)
	}
	u.Role = role
	return nil
}

// --- Queue fake ---

type mockQueue struct {
	mu       sync.Mutex
	subjects []string
	fail     bool
}

func (q *mockQueue) Publish(_ context.Context, subject string, _ []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail {
		return fmt.Errorf("queue unavailable")
	}
	q.subjects = append(q.subjects, subject)
	return nil
}

func (q *mockQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Close() error { return nil }

func (q *mockQueue) published(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, s := range q.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

// --- Cache fake ---

type mockCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deletes++
	return nil
}

// --- Test rig ---

// rig wires the full service graph over the in-memory store.
type rig struct {
	store    *mockStore
	queue    *mockQueue
	tontines *TontineService
	enroll   *EnrollmentService
	rounds   *RoundService
	rotation *RotationService
	ledger   *LedgerService
	stats    *StatsService
}

func newRig(feeBps int64) *rig {
	store := newMockStore()
	queue := &mockQueue{}
	rotation := NewRotationService(store)
	ledger := NewLedgerService(store, queue)
	rounds := NewRoundService(store, queue, rotation, ledger, feeBps)
	tontines := NewTontineService(store, queue, rounds)
	enroll := NewEnrollmentService(store, queue, tontines)
	return &rig{
		store:    store,
		queue:    queue,
		tontines: tontines,
		enroll:   enroll,
		rounds:   rounds,
		rotation: rotation,
		ledger:   ledger,
		stats:    NewStatsService(store),
	}
}

func validCreateRequest() tontine.CreateRequest {
	return tontine.CreateRequest{
		Name:           "Groupe Cotonou",
		AmountPerRound: 1000,
		StartDate:      time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		FrequencyType:  tontine.FrequencyMonthly,
		FrequencyValue: 1,
	}
}

// seedParticipant inserts an active participant directly, with an explicit
// joinedAt so rotation order is deterministic in tests.
func (r *rig) seedParticipant(ctx context.Context, tontineID, userID string, shares int, joinedAt time.Time) *participant.Participant {
	p := &participant.Participant{
		ID:          "p-" + userID,
		TontineID:   tontineID,
		UserID:      userID,
		SharesCount: shares,
		IsActive:    true,
		JoinedAt:    joinedAt,
	}
	if err := r.store.CreateParticipant(ctx, p); err != nil {
		panic(err)
	}
	return p
}
