package usecase

import (
	"context"

	"backoffice/internal/domain/entity"
)

// --- Input DTOs ---

// ForgotPasswordInput carries the email a reset link was requested for.
type ForgotPasswordInput struct {
	Email string
}

// ResetPasswordInput carries the raw reset token and the replacement password.
type ResetPasswordInput struct {
	Token    string
	Password string
}

// VerifyResetTokenInput carries a raw reset token for a non-consuming check.
type VerifyResetTokenInput struct {
	Token string
}

// PasswordResetUsecase defines the interface for the single-use password
// reset flow. A token travels out-of-band to the user, is claimed exactly
// once, and claiming it invalidates every open session of the account.
type PasswordResetUsecase interface {
	// ForgotPassword issues a reset token for the account behind the email,
	// invalidating any previously issued token for that account. Returns the
	// raw token for out-of-band delivery, or an empty string when no account
	// matches the email. The delivery layer returns the same generic response
	// either way so the endpoint cannot be used to probe for accounts.
	ForgotPassword(ctx context.Context, input ForgotPasswordInput) (string, error)

	// ResetPassword consumes a reset token and overwrites the account's
	// password. Exactly one of N concurrent calls with the same token
	// succeeds; the claim also closes every session of the account.
	ResetPassword(ctx context.Context, input ResetPasswordInput) (*entity.User, error)

	// VerifyToken classifies a token (valid, invalid, used, expired) without
	// consuming it. Used for "is this link still good" checks.
	VerifyToken(ctx context.Context, input VerifyResetTokenInput) (*entity.User, error)

	// CleanupExpiredTokens removes reset token rows past their expiry,
	// regardless of use-state, and reports the count. Invoked by the periodic
	// maintenance worker.
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}
