package service

import (
	"time"

	"github.com/google/uuid"
)

// TokenClaims is the decoded content of an access or refresh token.
type TokenClaims struct {
	UserID    uuid.UUID
	Email     string // Only present on access tokens.
	TokenType string // "access" or "refresh".
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService defines the interface for issuing and decoding the signed,
// expiring token pair. Access and refresh tokens carry a type discriminator
// that is enforced on every decode: an access token can never be replayed as
// a refresh token, and vice versa. The service persists nothing; the caller
// stores the refresh token using the expiry returned by IssueTokenPair.
type TokenService interface {
	// IssueAccess creates a signed access token carrying the user id and email.
	IssueAccess(userID uuid.UUID, email string) (string, error)

	// IssueRefresh creates a signed refresh token carrying only the user id.
	IssueRefresh(userID uuid.UUID) (string, error)

	// IssueTokenPair creates both tokens and returns the refresh token's
	// expiry for the caller to persist alongside it.
	IssueTokenPair(userID uuid.UUID, email string) (accessToken, refreshToken string, refreshExpiresAt time.Time, err error)

	// DecodeAccess verifies signature, expiry and type of an access token.
	DecodeAccess(token string) (*TokenClaims, error)

	// DecodeRefresh verifies signature, expiry and type of a refresh token.
	DecodeRefresh(token string) (*TokenClaims, error)
}
