// Package user defines users, roles and API keys.
package user

import "time"

// Role gates which mutating actions a user may perform.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleRequester Role = "requester"
	RoleReviewer  Role = "reviewer"
	RoleCommittee Role = "committee"
	RoleVendor    Role = "vendor"
)

// User is an authenticated principal.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	VendorID  string    `json:"vendor_id,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey is a bcrypt-hashed credential bound to a user. The plaintext key is
// shown once at creation and never stored.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	Hash       string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}
