package postgres

import (
	"context"
	"fmt"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/participant"
)

const participantColumns = `id, tontine_id, user_id, shares_count, total_committed, is_active, joined_at`

func (s *Store) CreateParticipant(ctx context.Context, p *participant.Participant) error {
	// The partial unique index on (tontine_id, user_id) WHERE is_active
	// makes concurrent double joins lose as a conflict.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participants (id, tontine_id, user_id, shares_count, total_committed, is_active, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.TontineID, p.UserID, p.SharesCount, p.TotalCommitted, p.IsActive, p.JoinedAt)
	if err != nil {
		return conflictWrap(err, "create participant")
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (*participant.Participant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = $1`, id)

	p, err := scanParticipant(row)
	if err != nil {
		return nil, notFoundWrap(err, "get participant %s", id)
	}
	return &p, nil
}

func (s *Store) GetActiveParticipantByUser(ctx context.Context, tontineID, userID string) (*participant.Participant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants
		 WHERE tontine_id = $1 AND user_id = $2 AND is_active`, tontineID, userID)

	p, err := scanParticipant(row)
	if err != nil {
		return nil, notFoundWrap(err, "get active participant for user %s", userID)
	}
	return &p, nil
}

func (s *Store) ListParticipants(ctx context.Context, tontineID string, activeOnly bool) ([]participant.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+participantColumns+` FROM participants
		 WHERE tontine_id = $1 AND (NOT $2 OR is_active)
		 ORDER BY joined_at ASC, id ASC`, tontineID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []participant.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (s *Store) SetParticipantActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE participants SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set participant active %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set participant active %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanParticipant(row scannable) (participant.Participant, error) {
	var p participant.Participant
	err := row.Scan(&p.ID, &p.TontineID, &p.UserID, &p.SharesCount, &p.TotalCommitted, &p.IsActive, &p.JoinedAt)
	return p, err
}
