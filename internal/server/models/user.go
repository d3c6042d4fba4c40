// Package models contains the persisted entities of the marketplace.
package models

import "time"

// Roles a user can hold. Role is assigned at registration and is immutable
// through this service.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User is an account record. PasswordHash holds a bcrypt hash; the raw
// password is never persisted. Accounts are soft-deactivated via Active,
// never hard-deleted.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleBuyer || role == RoleSeller || role == RoleAdmin
}
