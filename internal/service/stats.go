package service

import (
	"context"
	"math"
	"time"

	"github.com/rpams/tontine-core/internal/domain/payment"
	"github.com/rpams/tontine-core/internal/domain/round"
	"github.com/rpams/tontine-core/internal/domain/tontine"
	"github.com/rpams/tontine-core/internal/port/database"
)

// StatsService derives read-only metrics. It reads, never mutates.
type StatsService struct {
	store database.Store
}

// NewStatsService creates a StatsService.
func NewStatsService(store database.Store) *StatsService {
	return &StatsService{store: store}
}

// TontineStats is the aggregate snapshot for one tontine.
type TontineStats struct {
	TotalRounds          int   `json:"total_rounds"`
	CompletedRounds      int   `json:"completed_rounds"`
	CompletionPercentage int   `json:"completion_percentage"`
	CollectedTotal       int64 `json:"collected_total"`
	DistributedTotal     int64 `json:"distributed_total"`
	ActiveParticipants   int   `json:"active_participants"`
	DaysUntilNextDue     int   `json:"days_until_next_due,omitempty"`
}

// Tontine computes the aggregate stats snapshot for a tontine.
func (s *StatsService) Tontine(ctx context.Context, tontineID string) (*TontineStats, error) {
	t, err := s.store.GetTontine(ctx, tontineID)
	if err != nil {
		return nil, err
	}
	actives, err := s.store.ListParticipants(ctx, tontineID, true)
	if err != nil {
		return nil, err
	}
	rounds, err := s.store.ListRounds(ctx, tontineID, round.Filter{Limit: database.AllRows})
	if err != nil {
		return nil, err
	}

	stats := TontineStats{ActiveParticipants: len(actives)}

	// The rotation runs one round per active member, however large the
	// configured cap is: an under-filled roster still reaches 100% when
	// its last member has won. Before activation the roster is still
	// filling, so the planned size is the cap when one is set.
	stats.TotalRounds = len(actives)
	if t.Status == tontine.StatusDraft && t.MaxParticipants > stats.TotalRounds {
		stats.TotalRounds = t.MaxParticipants
	}

	now := time.Now().UTC()
	for i := range rounds {
		r := &rounds[i]
		stats.CollectedTotal += r.CollectedAmount
		stats.DistributedTotal += r.DistributedAmount
		if r.Status == round.StatusCompleted {
			stats.CompletedRounds++
		}
		if r.Status == round.StatusPending || r.Status == round.StatusCollecting {
			if d := DaysUntil(r.DueDate, now); stats.DaysUntilNextDue == 0 || d < stats.DaysUntilNextDue {
				stats.DaysUntilNextDue = d
			}
		}
	}

	stats.CompletionPercentage = CompletionPercentage(stats.CompletedRounds, stats.TotalRounds)
	return &stats, nil
}

// IsUpToDate reports whether a participant has no payment sitting in
// PENDING or FAILED past its due date.
func (s *StatsService) IsUpToDate(ctx context.Context, participantID string) (bool, error) {
	if _, err := s.store.GetParticipant(ctx, participantID); err != nil {
		return false, err
	}
	payments, err := s.store.ListPayments(ctx, payment.Filter{ParticipantID: participantID, Limit: database.AllRows})
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	for i := range payments {
		p := &payments[i]
		overdue := p.Status == payment.StatusPending || p.Status == payment.StatusFailed
		if overdue && p.DueDate.Before(now) {
			return false, nil
		}
	}
	return true, nil
}

// CompletionPercentage returns completed/total as a percentage rounded to
// the nearest integer. Zero total rounds reads as zero percent.
func CompletionPercentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// DaysUntil returns the number of whole days from now until date, rounding
// partial days up. Past dates yield zero or negative values.
func DaysUntil(date, now time.Time) int {
	return int(math.Ceil(date.Sub(now).Hours() / 24))
}
