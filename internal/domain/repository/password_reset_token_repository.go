package repository

import (
	"context"
	"time"

	"backoffice/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for password reset token persistence.
var (
	// ErrResetTokenNotFound is returned when no row matches a token hash.
	ErrResetTokenNotFound = errors.New("password reset token not found")
	// ErrResetTokenNotClaimable is returned by Claim when the conditional
	// update matched no row: the token is unknown, already used, or expired.
	// Callers classify the exact cause with a follow-up FindByHash.
	ErrResetTokenNotClaimable = errors.New("password reset token not claimable")
)

// PasswordResetTokenRepository persists single-use password reset tokens.
// Rows store only the SHA-256 hash of the raw token.
type PasswordResetTokenRepository interface {
	// Create inserts a new reset token row.
	Create(ctx context.Context, token *entity.PasswordResetToken) error

	// FindByHash retrieves a row by token hash regardless of its state.
	// Used to classify a failed claim precisely.
	FindByHash(ctx context.Context, tokenHash string) (*entity.PasswordResetToken, error)

	// DeleteAllForUser removes every reset token row for a user. Called before
	// inserting a replacement so at most one live token exists per user.
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// Claim marks the row matching tokenHash as used, if and only if it is
	// still unused and unexpired, in one conditional UPDATE. The storage
	// layer's row-level atomicity is the sole race-prevention mechanism:
	// of N concurrent claims of the same token exactly one succeeds. Returns
	// the claimed row, or ErrResetTokenNotClaimable when zero rows matched.
	Claim(ctx context.Context, tokenHash string, now time.Time) (*entity.PasswordResetToken, error)

	// DeleteExpired removes all rows past expiry regardless of use-state and
	// reports the count. Never touches unexpired rows, so it is safe to run
	// concurrently with claims.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
