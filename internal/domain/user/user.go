// Package user defines the user reference model for authorization and
// display. Identity itself is owned by the external auth provider; the core
// only keeps the verified id, role, and profile fields it needs.
package user

import (
	"strings"
	"time"
)

// Role represents the authorization level of a user.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ValidRoles is the set of all valid user roles.
var ValidRoles = map[Role]bool{
	RoleUser:      true,
	RoleModerator: true,
	RoleAdmin:     true,
}

// AtLeast reports whether r grants the privileges of min.
// Ordering: user < moderator < admin.
func (r Role) AtLeast(min Role) bool {
	return rank(r) >= rank(min)
}

func rank(r Role) int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleModerator:
		return 1
	case RoleUser:
		return 0
	default:
		return -1
	}
}

// User mirrors the auth provider's verified identity plus the core's role.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      Role      `json:"role"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResolveDisplayName returns the user's display name with explicit
// precedence: profile name, then the email local part, then a short id.
func ResolveDisplayName(u *User) string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	if len(u.ID) >= 8 {
		return u.ID[:8]
	}
	return u.ID
}

// ResolveAvatar returns the user's avatar URL, or empty when none is set.
// Kept as a function so the precedence order has one home if more sources
// (gravatar, provider profile) are added.
func ResolveAvatar(u *User) string {
	if u == nil {
		return ""
	}
	return u.AvatarURL
}
