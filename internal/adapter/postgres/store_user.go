package postgres

import (
	"context"
	"fmt"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/user"
)

func (s *Store) UpsertUser(ctx context.Context, u *user.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, name, avatar_url, role, enabled)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   email = EXCLUDED.email,
		   name = EXCLUDED.name,
		   avatar_url = EXCLUDED.avatar_url,
		   updated_at = now()
		 RETURNING role, enabled, created_at, updated_at`,
		u.ID, u.Email, u.Name, u.AvatarURL, string(u.Role), u.Enabled,
	).Scan(&u.Role, &u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(email, ''), COALESCE(name, ''), COALESCE(avatar_url, ''), role, enabled, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.Role, &u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get user %s", id)
	}
	return &u, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, id string, role user.Role) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, string(role))
	if err != nil {
		return fmt.Errorf("update user role %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user role %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
