package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rpams/tontine-core/internal/domain"
	"github.com/rpams/tontine-core/internal/domain/user"
	"github.com/rpams/tontine-core/internal/port/cache"
	"github.com/rpams/tontine-core/internal/port/database"
)

// AuthzService resolves user roles with an injected, TTL-bounded cache.
// Every role-changing write invalidates the cached entry explicitly; in a
// multi-process deployment the cache is per-process and eventually
// consistent within the configured TTL.
type AuthzService struct {
	store database.Store
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewAuthzService creates an AuthzService. ttl bounds role cache staleness.
func NewAuthzService(store database.Store, c cache.Cache, ttl time.Duration) *AuthzService {
	return &AuthzService{store: store, cache: c, ttl: ttl}
}

func roleCacheKey(userID string) string {
	return "role:" + userID
}

// Role returns the user's role, consulting the cache first. Users the core
// has never seen hold the base role.
func (s *AuthzService) Role(ctx context.Context, userID string) (user.Role, error) {
	key := roleCacheKey(userID)
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			if r := user.Role(data); user.ValidRoles[r] {
				return r, nil
			}
		}
	}

	// Collapse concurrent misses for the same user into one lookup.
	v, err, _ := s.group.Do(key, func() (any, error) {
		u, err := s.store.GetUser(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return user.RoleUser, nil
		}
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			if err := s.cache.Set(ctx, key, []byte(u.Role), s.ttl); err != nil {
				slog.Warn("role cache set failed", "user_id", userID, "error", err)
			}
		}
		return u.Role, nil
	})
	if err != nil {
		return "", err
	}
	return v.(user.Role), nil
}

// User returns the stored user record.
func (s *AuthzService) User(ctx context.Context, userID string) (*user.User, error) {
	return s.store.GetUser(ctx, userID)
}

// SetRole changes a user's role and invalidates the cached entry in the
// same call, so the next lookup sees the new role immediately.
func (s *AuthzService) SetRole(ctx context.Context, userID string, role user.Role) error {
	if !user.ValidRoles[role] {
		return fmt.Errorf("%w: invalid role %q", domain.ErrValidation, role)
	}
	if err := s.store.UpdateUserRole(ctx, userID, role); err != nil {
		return err
	}
	s.Invalidate(ctx, userID)
	return nil
}

// Invalidate drops the cached role for a user.
func (s *AuthzService) Invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, roleCacheKey(userID)); err != nil {
		slog.Warn("role cache invalidate failed", "user_id", userID, "error", err)
	}
}

// Sync upserts the forwarded identity profile. A profile sync never touches
// the stored role; promotions go through SetRole.
func (s *AuthzService) Sync(ctx context.Context, u *user.User) error {
	if u == nil || u.ID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	return s.store.UpsertUser(ctx, u)
}
