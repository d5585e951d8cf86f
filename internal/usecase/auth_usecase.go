// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"backoffice/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new account.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
	Phone    string
}

// LoginInput defines the data required to log in.
type LoginInput struct {
	Email    string
	Password string
}

// RefreshInput carries the presented refresh token.
type RefreshInput struct {
	RefreshToken string
}

// --- Output DTOs ---

// AuthOutput returns the issued token pair together with the account it
// belongs to. Register and Login share this shape.
type AuthOutput struct {
	AccessToken  string
	RefreshToken string
	User         *entity.User
}

// RefreshOutput returns the replacement token pair after a rotation.
type RefreshOutput struct {
	AccessToken  string
	RefreshToken string
}

// AuthUsecase defines the interface for credential and session operations.
// This is the contract that the delivery layer depends on.
type AuthUsecase interface {
	// Register creates a new account and opens its first session.
	Register(ctx context.Context, input RegisterInput) (*AuthOutput, error)

	// Login verifies credentials and opens a session.
	Login(ctx context.Context, input LoginInput) (*AuthOutput, error)

	// Refresh rotates a refresh token, replacing the presented session row
	// with a new one. The old token is unusable afterwards.
	Refresh(ctx context.Context, input RefreshInput) (*RefreshOutput, error)

	// Logout closes every session of the user. Idempotent.
	Logout(ctx context.Context, userID uuid.UUID) error

	// CurrentUser returns the account behind an authenticated request.
	CurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error)

	// CleanupExpiredSessions removes refresh token rows past their expiry and
	// reports the count. Invoked by the periodic maintenance worker.
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}
