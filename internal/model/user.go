package model

import "time"

// Role is the authorization role of a user account.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is the authentication principal. Email is stored lowercased and the
// password hash never leaves the backend.
type User struct {
	ID                string
	Name              string
	Email             string
	PasswordHash      []byte
	Role              Role
	IsActive          bool
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ChangedPasswordAfter reports whether the password was changed after the
// given token issue time. Tokens issued before a password change are stale.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	return u.PasswordChangedAt != nil && u.PasswordChangedAt.After(issuedAt)
}
