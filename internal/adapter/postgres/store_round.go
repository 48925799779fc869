package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/payment"
	"github.com/rpams/tontine-core/internal/domain/round"
)

const roundColumns = `id, tontine_id, round_number, expected_amount, collected_amount, distributed_amount,
	due_date, collection_start_date, completed_at, status, COALESCE(cancel_reason, ''), COALESCE(winner_id::text, ''),
	version, created_at, updated_at`

func (s *Store) CreateRound(ctx context.Context, r *round.Round) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO rounds (id, tontine_id, round_number, expected_amount, due_date, status, winner_id)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid)
		 RETURNING version, created_at, updated_at`,
		r.ID, r.TontineID, r.RoundNumber, r.ExpectedAmount, r.DueDate, string(r.Status), r.WinnerID)
	if err := row.Scan(&r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return conflictWrap(err, "create round %d", r.RoundNumber)
	}
	return nil
}

func (s *Store) GetRound(ctx context.Context, id string) (*round.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id)

	r, err := scanRound(row)
	if err != nil {
		return nil, notFoundWrap(err, "get round %s", id)
	}
	return &r, nil
}

func (s *Store) ListRounds(ctx context.Context, tontineID string, f round.Filter) ([]round.Round, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+roundColumns+` FROM rounds
		 WHERE tontine_id = $1 AND ($2 = '' OR status = $2)
		 ORDER BY round_number ASC
		 LIMIT $3 OFFSET $4`,
		tontineID, string(f.Status), limitOrDefault(f.Limit, defaultPageSize, maxPageSize), f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []round.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

func (s *Store) GetLastRound(ctx context.Context, tontineID string) (*round.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM rounds
		 WHERE tontine_id = $1 ORDER BY round_number DESC LIMIT 1`, tontineID)

	r, err := scanRound(row)
	if err != nil {
		return nil, notFoundWrap(err, "get last round for tontine %s", tontineID)
	}
	return &r, nil
}

func (s *Store) BeginRoundCollection(ctx context.Context, roundID string, startedAt time.Time, payments []payment.Payment) (*round.Round, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	// The partial unique index on (tontine_id) WHERE status = 'collecting'
	// turns a concurrent second collection into a unique violation.
	row := tx.QueryRow(ctx,
		`UPDATE rounds SET status = 'collecting', collection_start_date = $2, version = version + 1, updated_at = now()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+roundColumns,
		roundID, startedAt)
	r, err := scanRound(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, round.ErrAlreadyCollecting
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("begin collection %s: %w", roundID, err)
		}
		// Zero rows: the round exists in the wrong status, or not at all.
		var status string
		if scanErr := tx.QueryRow(ctx, `SELECT status FROM rounds WHERE id = $1`, roundID).Scan(&status); scanErr != nil {
			return nil, notFoundWrap(scanErr, "begin collection %s", roundID)
		}
		return nil, fmt.Errorf("%w: round is %q, not pending", domain.ErrStateConflict, status)
	}

	// Idempotent per (participant_id, round_id): a retried call never
	// issues a second payment to the same member.
	for i := range payments {
		p := &payments[i]
		if _, err := tx.Exec(ctx,
			`INSERT INTO payments (id, user_id, participant_id, round_id, amount, status, due_date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (participant_id, round_id) DO NOTHING`,
			p.ID, p.UserID, p.ParticipantID, p.RoundID, p.Amount, string(p.Status), p.DueDate); err != nil {
			return nil, fmt.Errorf("issue payment for participant %s: %w", p.ParticipantID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, round.ErrAlreadyCollecting
		}
		return nil, fmt.Errorf("commit collection: %w", err)
	}
	return &r, nil
}

func (s *Store) CompleteRound(ctx context.Context, roundID string, feeBps int64, completedAt time.Time) (*round.Round, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	// Lock the round row first: settlement and reset transactions update
	// it too, so they serialize here and the pending count below cannot
	// miss a payment walked back to PENDING by a concurrent reset.
	var status string
	if err := tx.QueryRow(ctx,
		`SELECT status FROM rounds WHERE id = $1 FOR UPDATE`, roundID,
	).Scan(&status); err != nil {
		return nil, notFoundWrap(err, "complete round %s", roundID)
	}
	if status != string(round.StatusCollecting) {
		return nil, fmt.Errorf("%w: round is %q, not collecting", domain.ErrStateConflict, status)
	}

	var pending int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE round_id = $1 AND status = 'pending'`, roundID,
	).Scan(&pending); err != nil {
		return nil, fmt.Errorf("count pending payments for round %s: %w", roundID, err)
	}
	if pending > 0 {
		return nil, round.ErrPaymentsOutstanding
	}

	// Status-guarded: only one caller ever moves the round out of
	// collecting, so the payout is distributed at most once. The distributed
	// amount derives from collected_amount inside this same statement.
	row := tx.QueryRow(ctx,
		`UPDATE rounds SET status = 'completed',
		        distributed_amount = collected_amount - collected_amount * $2 / 10000,
		        completed_at = $3, version = version + 1, updated_at = now()
		 WHERE id = $1 AND status = 'collecting'
		 RETURNING `+roundColumns,
		roundID, feeBps, completedAt)
	r, err := scanRound(row)
	if err != nil {
		return nil, fmt.Errorf("complete round %s: %w", roundID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit completion: %w", err)
	}
	return &r, nil
}

func (s *Store) CancelRound(ctx context.Context, roundID, reason string) (*round.Round, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	row := tx.QueryRow(ctx,
		`UPDATE rounds SET status = 'cancelled', cancel_reason = $2, version = version + 1, updated_at = now()
		 WHERE id = $1 AND status IN ('pending', 'collecting')
		 RETURNING `+roundColumns,
		roundID, reason)
	r, err := scanRound(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cancel round %s: %w", roundID, err)
		}
		var status string
		if scanErr := tx.QueryRow(ctx, `SELECT status FROM rounds WHERE id = $1`, roundID).Scan(&status); scanErr != nil {
			return nil, notFoundWrap(scanErr, "cancel round %s", roundID)
		}
		return nil, fmt.Errorf("%w: cannot cancel a %q round", domain.ErrStateConflict, status)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = 'cancelled', updated_at = now()
		 WHERE round_id = $1 AND status = 'pending'`, roundID); err != nil {
		return nil, fmt.Errorf("cancel payments for round %s: %w", roundID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}
	return &r, nil
}

func (s *Store) ReorderWinners(ctx context.Context, tontineID string, assignments []round.WinnerAssignment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, a := range assignments {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM rounds WHERE id = $1 AND tontine_id = $2 FOR UPDATE`,
			a.RoundID, tontineID).Scan(&status)
		if err != nil {
			return notFoundWrap(err, "reorder round %s", a.RoundID)
		}
		if status == string(round.StatusCompleted) {
			return round.ErrRoundCompleted
		}
		if _, err := tx.Exec(ctx,
			`UPDATE rounds SET winner_id = $2, version = version + 1, updated_at = now()
			 WHERE id = $1`, a.RoundID, a.ParticipantID); err != nil {
			return fmt.Errorf("assign winner to round %s: %w", a.RoundID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

func scanRound(row scannable) (round.Round, error) {
	var r round.Round
	err := row.Scan(
		&r.ID, &r.TontineID, &r.RoundNumber, &r.ExpectedAmount, &r.CollectedAmount, &r.DistributedAmount,
		&r.DueDate, &r.CollectionStartDate, &r.CompletedAt, &r.Status, &r.CancelReason, &r.WinnerID,
		&r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}
