// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers
// and the infrastructure layer.
package repository

import (
	"context"
	"time"

	"backoffice/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for user persistence.
var (
	// ErrUserNotFound is returned when a user lookup matches no row.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when creating a user with an email that
	// already exists.
	ErrEmailTaken = errors.New("email already taken")
)

// UserRepository covers the slice of the user-management subsystem that the
// credential core consumes: lookup, creation on registration, and the three
// fields this core is allowed to write.
type UserRepository interface {
	// FindByEmail retrieves a user by their unique email address.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByID retrieves a user by id.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// Create persists a new user. Returns ErrEmailTaken when the email
	// collides with an existing row.
	Create(ctx context.Context, user *entity.User) error

	// UpdatePasswordHash overwrites the stored password hash for a user.
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error

	// UpdateLastLogin records the time of the user's latest successful login.
	UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
}
