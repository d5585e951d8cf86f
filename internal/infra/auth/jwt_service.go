// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"backoffice/config"
	"backoffice/internal/domain/service"
)

// Token type discriminators. The type claim is the sole thing separating an
// access token from a refresh token and is enforced on every decode.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	accessSecret  string        // Secret key for signing access tokens.
	refreshSecret string        // Secret key for signing refresh tokens.
	accessTTL     time.Duration // Time-to-live for access tokens.
	refreshTTL    time.Duration // Time-to-live for refresh tokens.
}

// NewJWTService is the constructor for jwtService.
// It takes configuration values to create a new token service instance.
func NewJWTService(cfg *config.Config, logger *slog.Logger) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" {
		return nil, errors.New("jwt access secret must be provided")
	}

	refreshSecret := cfg.SecretKey.Refresh
	if refreshSecret == "" {
		// Sharing one secret means a leaked access token differs from a
		// refresh token only by its type claim. Operators should set a
		// distinct refresh secret.
		if logger != nil {
			logger.Warn("jwt refresh secret not configured, falling back to access secret")
		}
		refreshSecret = cfg.SecretKey.Access
	}

	return &jwtService{
		accessSecret:  cfg.SecretKey.Access,
		refreshSecret: refreshSecret,
		accessTTL:     cfg.Auth.AccessTokenTTL,
		refreshTTL:    cfg.Auth.RefreshTokenTTL,
	}, nil
}

// IssueAccess creates a signed access token carrying the user id and email.
func (s *jwtService) IssueAccess(userID uuid.UUID, email string) (string, error) {
	return s.issueToken(userID, email, s.accessTTL, s.accessSecret, tokenTypeAccess)
}

// IssueRefresh creates a signed refresh token carrying only the user id.
func (s *jwtService) IssueRefresh(userID uuid.UUID) (string, error) {
	return s.issueToken(userID, "", s.refreshTTL, s.refreshSecret, tokenTypeRefresh)
}

// IssueTokenPair creates both tokens and returns the refresh expiry for the
// caller to persist. The service itself persists nothing.
func (s *jwtService) IssueTokenPair(userID uuid.UUID, email string) (string, string, time.Time, error) {
	accessToken, err := s.IssueAccess(userID, email)
	if err != nil {
		return "", "", time.Time{}, err
	}

	refreshToken, err := s.IssueRefresh(userID)
	if err != nil {
		return "", "", time.Time{}, err
	}

	return accessToken, refreshToken, time.Now().Add(s.refreshTTL), nil
}

// DecodeAccess verifies signature, expiry and the access type discriminator.
func (s *jwtService) DecodeAccess(tokenString string) (*service.TokenClaims, error) {
	return s.decodeToken(tokenString, s.accessSecret, tokenTypeAccess)
}

// DecodeRefresh verifies signature, expiry and the refresh type discriminator.
func (s *jwtService) DecodeRefresh(tokenString string) (*service.TokenClaims, error) {
	return s.decodeToken(tokenString, s.refreshSecret, tokenTypeRefresh)
}

// issueToken is a private helper to create a JWT with specific claims.
func (s *jwtService) issueToken(userID uuid.UUID, email string, ttl time.Duration, secret, tokenType string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID.String(),         // Subject (who the token is for)
		"iat":  now.Unix(),              // Issued At
		"exp":  now.Add(ttl).Unix(),     // Expiration Time
		"type": tokenType,               // Type of token (access or refresh)
	}
	// Only the access token carries the email for stateless identification.
	if email != "" {
		claims["email"] = email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}

// decodeToken verifies a token against a secret and the expected type claim.
func (s *jwtService) decodeToken(tokenString, secret, expectedType string) (*service.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token")
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected token claims format")
	}

	tokenType, _ := mapClaims["type"].(string)
	if tokenType != expectedType {
		return nil, errors.Errorf("unexpected token type %q", tokenType)
	}

	subject, _ := mapClaims["sub"].(string)
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, errors.Wrap(err, "invalid subject claim")
	}

	claims := &service.TokenClaims{
		UserID:    userID,
		TokenType: tokenType,
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}
