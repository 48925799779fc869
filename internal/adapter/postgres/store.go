package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/tontine"
)

// Pagination bounds applied to list queries.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const tontineColumns = `id, name, description, amount_per_round, status, start_date, end_date,
	COALESCE(max_participants, 0), frequency_type, frequency_value, allow_multiple_shares,
	max_shares_per_user, invite_code, creator_id, version, created_at, updated_at`

func (s *Store) CreateTontine(ctx context.Context, req tontine.CreateRequest, creatorID, inviteCode string) (*tontine.Tontine, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tontines (name, description, amount_per_round, status, start_date, max_participants,
		        frequency_type, frequency_value, allow_multiple_shares, max_shares_per_user, invite_code, creator_id)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), $7, $8, $9, $10, $11, $12)
		 RETURNING `+tontineColumns,
		req.Name, req.Description, req.AmountPerRound, string(tontine.StatusDraft), req.StartDate,
		req.MaxParticipants, string(req.FrequencyType), req.FrequencyValue,
		req.AllowMultipleShares, req.MaxSharesPerUser, inviteCode, creatorID)

	t, err := scanTontine(row)
	if err != nil {
		return nil, conflictWrap(err, "create tontine")
	}
	return &t, nil
}

func (s *Store) GetTontine(ctx context.Context, id string) (*tontine.Tontine, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tontineColumns+` FROM tontines WHERE id = $1`, id)

	t, err := scanTontine(row)
	if err != nil {
		return nil, notFoundWrap(err, "get tontine %s", id)
	}
	return &t, nil
}

func (s *Store) GetTontineByInviteCode(ctx context.Context, code string) (*tontine.Tontine, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tontineColumns+` FROM tontines WHERE invite_code = $1`, code)

	t, err := scanTontine(row)
	if err != nil {
		return nil, notFoundWrap(err, "get tontine by invite code")
	}
	return &t, nil
}

func (s *Store) ListTontines(ctx context.Context, f tontine.Filter) ([]tontine.Tontine, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tontineColumns+` FROM tontines
		 WHERE ($1 = '' OR status = $1) AND ($2 = '' OR creator_id = $2)
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		string(f.Status), f.CreatorID, limitOrDefault(f.Limit, defaultPageSize, maxPageSize), f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list tontines: %w", err)
	}
	defer rows.Close()

	var tontines []tontine.Tontine
	for rows.Next() {
		t, err := scanTontine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tontine: %w", err)
		}
		tontines = append(tontines, t)
	}
	return tontines, rows.Err()
}

func (s *Store) UpdateTontineStatus(ctx context.Context, id string, from []tontine.Status, to tontine.Status) error {
	fromStr := make([]string, len(from))
	for i, st := range from {
		fromStr[i] = string(st)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE tontines SET status = $2, version = version + 1, updated_at = now()
		 WHERE id = $1 AND status = ANY($3)`,
		id, string(to), fromStr)
	if err != nil {
		return fmt.Errorf("update tontine status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a status the guard rejected.
		var current string
		err := s.pool.QueryRow(ctx, `SELECT status FROM tontines WHERE id = $1`, id).Scan(&current)
		if err != nil {
			return notFoundWrap(err, "update tontine status %s", id)
		}
		return fmt.Errorf("%w: tontine %s is %q", domain.ErrStateConflict, id, current)
	}
	return nil
}

func (s *Store) ForceCompleteTontine(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tag, err := tx.Exec(ctx,
		`UPDATE tontines SET status = $2, end_date = now(), version = version + 1, updated_at = now()
		 WHERE id = $1`, id, string(tontine.StatusCompleted))
	if err != nil {
		return fmt.Errorf("force complete tontine %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("force complete tontine %s: %w", id, domain.ErrNotFound)
	}

	// Pending contributions of in-flight rounds die with the tontine.
	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = 'cancelled', updated_at = now()
		 WHERE status = 'pending' AND round_id IN (
		     SELECT id FROM rounds WHERE tontine_id = $1 AND status IN ('pending', 'collecting'))`,
		id); err != nil {
		return fmt.Errorf("cancel open payments for tontine %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE rounds SET status = 'cancelled', cancel_reason = 'tontine completed by administrator',
		        version = version + 1, updated_at = now()
		 WHERE tontine_id = $1 AND status IN ('pending', 'collecting')`,
		id); err != nil {
		return fmt.Errorf("cancel open rounds for tontine %s: %w", id, err)
	}

	return tx.Commit(ctx)
}

func scanTontine(row scannable) (tontine.Tontine, error) {
	var t tontine.Tontine
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.AmountPerRound, &t.Status, &t.StartDate, &t.EndDate,
		&t.MaxParticipants, &t.FrequencyType, &t.FrequencyValue, &t.AllowMultipleShares,
		&t.MaxSharesPerUser, &t.InviteCode, &t.CreatorID, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}
