// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"backoffice/config"
	deliverycontext "backoffice/internal/delivery/context"
	"backoffice/internal/domain/entity"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/repository"
	"backoffice/internal/domain/service"
	"backoffice/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager         repository.TransactionManager
	userRepo          repository.UserRepository
	refreshTokenRepo  repository.RefreshTokenRepository
	hasher            service.PasswordHasher
	tokenService      service.TokenService
	passwordMinLength int
	logger            *slog.Logger
}

// AuthServiceParams holds dependencies for authService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager        repository.TransactionManager
	UserRepo         repository.UserRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	Hasher           service.PasswordHasher
	TokenService     service.TokenService
	Config           *config.Config
	Logger           *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	passwordMinLength := 8
	if params.Config != nil && params.Config.Auth != nil && params.Config.Auth.PasswordMinLength > 0 {
		passwordMinLength = params.Config.Auth.PasswordMinLength
	}

	return &authService{
		txManager:         params.TxManager,
		userRepo:          params.UserRepo,
		refreshTokenRepo:  params.RefreshTokenRepo,
		hasher:            params.Hasher,
		tokenService:      params.TokenService,
		passwordMinLength: passwordMinLength,
		logger:            params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates a new account and opens its first session, all within one
// transaction so a storage failure never leaves an account without a session
// it believes it has.
func (srv *authService) Register(ctx context.Context, input usecase.RegisterInput) (*usecase.AuthOutput, error) {
	srv.log(ctx).Info("Starting registration", slog.String("email", input.Email))

	if err := validatePasswordLength(input.Password, srv.passwordMinLength); err != nil {
		return nil, err
	}

	passwordHash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password during registration", slog.Any("error", err))

		return nil, domainerrors.ErrPasswordHashFailed.WrapMessage("failed to hash password")
	}

	newUser := &entity.User{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: passwordHash,
		Phone:        input.Phone,
		Status:       entity.UserStatusActive,
	}

	var output *usecase.AuthOutput
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.NewUserRepository().Create(ctx, newUser); err != nil {
			if errors.Is(err, repository.ErrEmailTaken) {
				return domainerrors.ErrEmailConflict
			}

			return errors.Wrap(err, "failed to create user")
		}

		out, err := srv.openSession(ctx, repoFactory.NewRefreshTokenRepository(), newUser)
		if err != nil {
			return err
		}
		output = out

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Registration failed", slog.String("email", input.Email), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Debug("Registration completed", slog.Any("userID", newUser.ID))

	return output, nil
}

// Login verifies credentials, opens a session and records the login time.
// Unknown email and wrong password collapse into the same error so the
// endpoint cannot be used to probe for accounts.
func (srv *authService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.AuthOutput, error) {
	user, err := srv.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			srv.log(ctx).Info("Login attempt for unknown email", slog.String("email", input.Email))

			return nil, domainerrors.ErrInvalidCredentials
		}

		return nil, errors.Wrap(err, "failed to find user by email")
	}

	if !srv.hasher.Check(input.Password, user.PasswordHash) {
		srv.log(ctx).Info("Login attempt with wrong password", slog.Any("userID", user.ID))

		return nil, domainerrors.ErrInvalidCredentials
	}

	if !user.IsActive() {
		srv.log(ctx).Warn("Login attempt on inactive account", slog.Any("userID", user.ID), slog.String("status", string(user.Status)))

		return nil, domainerrors.ErrAccountNotActive
	}

	now := time.Now()

	var output *usecase.AuthOutput
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		out, err := srv.openSession(ctx, repoFactory.NewRefreshTokenRepository(), user)
		if err != nil {
			return err
		}
		output = out

		if err := repoFactory.NewUserRepository().UpdateLastLogin(ctx, user.ID, now); err != nil {
			return errors.Wrap(err, "failed to update last login")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	user.LastLoginAt = &now

	srv.log(ctx).Debug("Login completed", slog.Any("userID", user.ID))

	return output, nil
}

// openSession issues a token pair and persists the refresh half.
func (srv *authService) openSession(ctx context.Context, refreshTokenRepo repository.RefreshTokenRepository, user *entity.User) (*usecase.AuthOutput, error) {
	accessToken, refreshToken, refreshExpiresAt, err := srv.tokenService.IssueTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue token pair")
	}

	session := &entity.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: refreshExpiresAt,
	}
	if err := refreshTokenRepo.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to persist refresh token")
	}

	return &usecase.AuthOutput{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// Refresh rotates a refresh token. The stored row is the source of truth: a
// token that decodes fine but has no row was already rotated or logged out,
// and is rejected without a replacement.
func (srv *authService) Refresh(ctx context.Context, input usecase.RefreshInput) (*usecase.RefreshOutput, error) {
	claims, err := srv.tokenService.DecodeRefresh(input.RefreshToken)
	if err != nil {
		srv.log(ctx).Info("Refresh rejected: token failed to decode", slog.Any("error", err))

		return nil, domainerrors.ErrRefreshTokenInvalid
	}

	stored, err := srv.refreshTokenRepo.FindByToken(ctx, input.RefreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			srv.log(ctx).Warn("Refresh rejected: token not on record", slog.Any("userID", claims.UserID))

			return nil, domainerrors.ErrRefreshTokenRevoked
		}

		return nil, errors.Wrap(err, "failed to find refresh token")
	}

	now := time.Now()
	if stored.Expired(now) {
		srv.deleteTokenQuietly(ctx, input.RefreshToken)

		return nil, domainerrors.ErrRefreshTokenExpired
	}

	user, err := srv.userRepo.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// The backing account is gone; the token is dead. Refresh
			// failures all stay in the 401 family.
			srv.deleteTokenQuietly(ctx, input.RefreshToken)

			return nil, domainerrors.ErrRefreshTokenRevoked
		}

		return nil, errors.Wrap(err, "failed to find user for refresh token")
	}

	if !user.IsActive() {
		srv.deleteTokenQuietly(ctx, input.RefreshToken)

		return nil, domainerrors.ErrAccountNotActive
	}

	accessToken, refreshToken, refreshExpiresAt, err := srv.tokenService.IssueTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue token pair")
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		_, err := repoFactory.NewRefreshTokenRepository().Rotate(ctx, input.RefreshToken, user.ID, refreshToken, refreshExpiresAt)
		if err != nil {
			if errors.Is(err, repository.ErrRefreshTokenNotFound) {
				// A concurrent rotation of the same token won the race.
				return domainerrors.ErrRefreshTokenRevoked
			}

			return errors.Wrap(err, "failed to rotate refresh token")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Debug("Refresh token rotated", slog.Any("userID", user.ID))

	return &usecase.RefreshOutput{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// deleteTokenQuietly removes a refresh token row encountered in a
// non-servable state. The row is already unusable, so a failure here only
// delays the periodic sweep and is logged rather than surfaced.
func (srv *authService) deleteTokenQuietly(ctx context.Context, token string) {
	err := srv.refreshTokenRepo.Delete(ctx, token)
	if err != nil && !errors.Is(err, repository.ErrRefreshTokenNotFound) {
		srv.log(ctx).Warn("Failed to delete stale refresh token", slog.Any("error", err))
	}
}

// Logout closes every session of the user. Succeeds even when no session
// existed.
func (srv *authService) Logout(ctx context.Context, userID uuid.UUID) error {
	count, err := srv.refreshTokenRepo.DeleteAllForUser(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "failed to delete refresh tokens on logout")
	}

	srv.log(ctx).Info("Logout completed", slog.Any("userID", userID), slog.Int64("sessionsClosed", count))

	return nil
}

// CurrentUser returns the account behind an authenticated request.
func (srv *authService) CurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by id")
	}

	return user, nil
}

// CleanupExpiredSessions removes refresh token rows past their expiry.
func (srv *authService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	count, err := srv.refreshTokenRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete expired refresh tokens")
	}

	return count, nil
}

// validatePasswordLength enforces the configured minimum password length.
// The transport-layer validator applies the same floor, so this only fires
// for callers that bypass it (e.g. future internal flows).
func validatePasswordLength(password string, minLength int) error {
	if len(password) < minLength {
		return domainerrors.ErrValidationFailed.WithDetails(
			fmt.Sprintf("password must be at least %d characters", minLength),
		)
	}

	return nil
}
