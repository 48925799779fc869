package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/payment"
)

const paymentColumns = `id, user_id, participant_id, round_id, amount, status, due_date, paid_at,
	COALESCE(payment_method, ''), COALESCE(transaction_id, ''), COALESCE(notes, ''), created_at, updated_at`

func (s *Store) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)

	p, err := scanPayment(row)
	if err != nil {
		return nil, notFoundWrap(err, "get payment %s", id)
	}
	return &p, nil
}

func (s *Store) ListPayments(ctx context.Context, f payment.Filter) ([]payment.Payment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE ($1 = '' OR round_id::text = $1)
		   AND ($2 = '' OR participant_id::text = $2)
		   AND ($3 = '' OR user_id = $3)
		   AND ($4 = '' OR status = $4)
		 ORDER BY created_at ASC, id ASC
		 LIMIT $5 OFFSET $6`,
		f.RoundID, f.ParticipantID, f.UserID, string(f.Status),
		limitOrDefault(f.Limit, defaultPageSize, maxPageSize), f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *Store) MarkPaymentPaid(ctx context.Context, id string, req payment.SettleRequest, paidAt time.Time) (*payment.Payment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	// Guarded on status = 'pending': concurrent settles of the same payment
	// leave exactly one winner, and the collected amount moves exactly once.
	row := tx.QueryRow(ctx,
		`UPDATE payments SET status = 'paid', paid_at = $2, payment_method = $3, transaction_id = $4,
		        notes = NULLIF($5, ''), updated_at = now()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+paymentColumns,
		id, paidAt, req.Method, req.TransactionID, req.Notes)
	p, err := scanPayment(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("mark payment paid %s: %w", id, err)
		}
		var exists bool
		if scanErr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM payments WHERE id = $1)`, id).Scan(&exists); scanErr != nil {
			return nil, fmt.Errorf("mark payment paid %s: %w", id, scanErr)
		}
		if !exists {
			return nil, fmt.Errorf("mark payment paid %s: %w", id, domain.ErrNotFound)
		}
		return nil, payment.ErrAlreadySettled
	}

	if _, err := tx.Exec(ctx,
		`UPDATE rounds SET collected_amount = collected_amount + $2, updated_at = now()
		 WHERE id = $1`, p.RoundID, p.Amount); err != nil {
		return nil, fmt.Errorf("accumulate collected amount for round %s: %w", p.RoundID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit settlement: %w", err)
	}
	return &p, nil
}

func (s *Store) MarkPaymentFailed(ctx context.Context, id string) (*payment.Payment, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE payments SET status = 'failed', updated_at = now()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+paymentColumns, id)

	p, err := scanPayment(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("mark payment failed %s: %w", id, err)
		}
		var exists bool
		if scanErr := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM payments WHERE id = $1)`, id).Scan(&exists); scanErr != nil {
			return nil, fmt.Errorf("mark payment failed %s: %w", id, scanErr)
		}
		if !exists {
			return nil, fmt.Errorf("mark payment failed %s: %w", id, domain.ErrNotFound)
		}
		return nil, payment.ErrAlreadySettled
	}
	return &p, nil
}

func (s *Store) ResetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var prior string
	err = tx.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1 FOR UPDATE`, id).Scan(&prior)
	if err != nil {
		return nil, notFoundWrap(err, "reset payment %s", id)
	}
	if prior != string(payment.StatusPaid) && prior != string(payment.StatusFailed) {
		return nil, fmt.Errorf("%w: only paid or failed payments can be reset", domain.ErrStateConflict)
	}

	row := tx.QueryRow(ctx,
		`UPDATE payments SET status = 'pending', paid_at = NULL, transaction_id = NULL, updated_at = now()
		 WHERE id = $1
		 RETURNING `+paymentColumns, id)
	p, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("reset payment %s: %w", id, err)
	}

	// Reversing a paid contribution walks the collected amount back.
	if prior == string(payment.StatusPaid) {
		if _, err := tx.Exec(ctx,
			`UPDATE rounds SET collected_amount = collected_amount - $2, updated_at = now()
			 WHERE id = $1`, p.RoundID, p.Amount); err != nil {
			return nil, fmt.Errorf("reverse collected amount for round %s: %w", p.RoundID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reset: %w", err)
	}
	return &p, nil
}

func scanPayment(row scannable) (payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID, &p.UserID, &p.ParticipantID, &p.RoundID, &p.Amount, &p.Status, &p.DueDate, &p.PaidAt,
		&p.Method, &p.TransactionID, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
