package entity

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken represents a long-lived, authorized user session.
// It is used to obtain a new access token after the old one expires, without
// requiring credentials. The row is deleted on logout, consumed (replaced)
// on rotation, and swept once expired.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID // Links this session to the User it belongs to.
	Token     string    // The signed refresh token string, unique per row.
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// PasswordResetToken represents a single-use, time-boxed password reset link.
// Only a SHA-256 hash of the raw token is ever stored; the raw token is handed
// to the user out-of-band and cannot be recovered from the row.
//
// A row moves through exactly one of two terminal transitions: it is either
// claimed (UsedAt set, never cleared) or it expires. Creating a new token for
// a user deletes all of that user's prior rows, so at most one live token
// exists per user.
type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // SHA-256 hex digest of the raw token, unique per row.
	ExpiresAt time.Time
	UsedAt    *time.Time // Nil while unused; set exactly once by the claim.
	CreatedAt time.Time
}

// Used reports whether the token has already been consumed.
func (t *PasswordResetToken) Used() bool {
	return t.UsedAt != nil
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
