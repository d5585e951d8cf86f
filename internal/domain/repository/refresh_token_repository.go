package repository

import (
	"context"
	"time"

	"backoffice/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for refresh token persistence.
var (
	// ErrRefreshTokenNotFound is returned when a refresh token is not found.
	// During rotation this means the token was never issued or was already
	// rotated away; callers must treat the request as revoked, never issue a
	// replacement.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)

// RefreshTokenRepository defines the interface for refresh token session rows.
// One row is one issued refresh token; rows are only ever inserted and
// deleted, never updated in place, so rotation leaves no history behind and
// deletion semantics stay uniform.
type RefreshTokenRepository interface {
	// Create persists a new refresh token. A unique-constraint collision on
	// the token column is a fatal storage error, not a control-flow case:
	// tokens are drawn from a space where collisions are negligible.
	Create(ctx context.Context, token *entity.RefreshToken) error

	// FindByToken retrieves a refresh token record by its raw token string.
	FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error)

	// Delete removes one row by token string. Returns ErrRefreshTokenNotFound
	// when no row existed.
	Delete(ctx context.Context, token string) error

	// DeleteAllForUser removes every row for a user and reports how many rows
	// were removed. Used on logout and after a password reset; idempotent.
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// DeleteExpired removes all rows past their expiry and reports the count.
	// Safe to run periodically and concurrently with rotation.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Rotate atomically replaces oldToken with a new row. If the old row does
	// not exist the rotation aborts with ErrRefreshTokenNotFound and no new
	// row is created. Both halves run on the repository's connection, so when
	// the repository is transaction-bound the delete and insert commit or roll
	// back together. Concurrent rotations of the same old token resolve to
	// exactly one winner: the loser's delete affects zero rows.
	Rotate(ctx context.Context, oldToken string, userID uuid.UUID, newToken string, newExpiresAt time.Time) (*entity.RefreshToken, error)
}
