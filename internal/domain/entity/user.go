// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus enumerates the lifecycle states of a user account.
type UserStatus string

const (
	// UserStatusActive marks an account that may authenticate.
	UserStatusActive UserStatus = "ACTIVE"
	// UserStatusInactive marks an account that has been disabled.
	UserStatusInactive UserStatus = "INACTIVE"
	// UserStatusSuspended marks an account that has been suspended by an administrator.
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User represents a back-office account. The credential core only reads and
// writes PasswordHash, Status and LastLoginAt; the remaining fields are owned
// by the user-management subsystem.
type User struct {
	ID           uuid.UUID
	Email        string // Unique login identifier.
	Name         string
	PasswordHash string // bcrypt hash, never the plaintext.
	Avatar       string
	Phone        string
	Status       UserStatus
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the account is allowed to authenticate.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
