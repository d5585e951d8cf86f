package impl

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"time"

	"backoffice/config"
	deliverycontext "backoffice/internal/delivery/context"
	"backoffice/internal/domain/entity"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/repository"
	"backoffice/internal/domain/service"
	"backoffice/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// resetTokenBytes is the entropy of a raw reset token before encoding.
const resetTokenBytes = 32

// passwordResetService implements the PasswordResetUsecase interface.
type passwordResetService struct {
	txManager         repository.TransactionManager
	userRepo          repository.UserRepository
	refreshTokenRepo  repository.RefreshTokenRepository
	resetTokenRepo    repository.PasswordResetTokenRepository
	hasher            service.PasswordHasher
	resetTokenTTL     time.Duration
	passwordMinLength int
	logger            *slog.Logger
}

// PasswordResetServiceParams holds dependencies for passwordResetService, injected by Fx.
type PasswordResetServiceParams struct {
	fx.In

	TxManager        repository.TransactionManager
	UserRepo         repository.UserRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	ResetTokenRepo   repository.PasswordResetTokenRepository
	Hasher           service.PasswordHasher
	Config           *config.Config
	Logger           *slog.Logger
}

// NewPasswordResetService is the constructor for passwordResetService.
func NewPasswordResetService(params PasswordResetServiceParams) usecase.PasswordResetUsecase {
	resetTokenTTL := 30 * time.Minute
	passwordMinLength := 8
	if params.Config != nil && params.Config.Auth != nil {
		if params.Config.Auth.ResetTokenTTL > 0 {
			resetTokenTTL = params.Config.Auth.ResetTokenTTL
		}
		if params.Config.Auth.PasswordMinLength > 0 {
			passwordMinLength = params.Config.Auth.PasswordMinLength
		}
	}

	return &passwordResetService{
		txManager:         params.TxManager,
		userRepo:          params.UserRepo,
		refreshTokenRepo:  params.RefreshTokenRepo,
		resetTokenRepo:    params.ResetTokenRepo,
		hasher:            params.Hasher,
		resetTokenTTL:     resetTokenTTL,
		passwordMinLength: passwordMinLength,
		logger:            params.Logger,
	}
}

func (srv *passwordResetService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ForgotPassword issues a reset token when the email belongs to an account.
// For an unknown email it returns an empty token and no error, so the
// delivery layer can answer identically in both cases.
func (srv *passwordResetService) ForgotPassword(ctx context.Context, input usecase.ForgotPasswordInput) (string, error) {
	user, err := srv.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			srv.log(ctx).Info("Password reset requested for unknown email", slog.String("email", input.Email))

			return "", nil
		}

		return "", errors.Wrap(err, "failed to find user by email")
	}

	rawToken, err := srv.createToken(ctx, user)
	if err != nil {
		return "", err
	}

	srv.log(ctx).Info("Password reset token issued", slog.Any("userID", user.ID))

	return rawToken, nil
}

// createToken generates a fresh raw token and stores only its digest. The
// delete of prior rows and the insert of the new one share a transaction, so
// the account always ends the call with exactly one live token.
func (srv *passwordResetService) createToken(ctx context.Context, user *entity.User) (string, error) {
	rawToken, tokenHash, err := generateResetToken()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate reset token")
	}

	row := &entity.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(srv.resetTokenTTL),
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		resetTokenRepo := repoFactory.NewPasswordResetTokenRepository()

		if _, err := resetTokenRepo.DeleteAllForUser(ctx, user.ID); err != nil {
			return errors.Wrap(err, "failed to invalidate prior reset tokens")
		}

		if err := resetTokenRepo.Create(ctx, row); err != nil {
			return errors.Wrap(err, "failed to create reset token")
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return rawToken, nil
}

// ResetPassword consumes a reset token and overwrites the account's password.
// The conditional claim, the user update and the session invalidation share
// one transaction: a claim must never survive without the password change it
// paid for, and a changed password must never leave old sessions alive.
func (srv *passwordResetService) ResetPassword(ctx context.Context, input usecase.ResetPasswordInput) (*entity.User, error) {
	if err := validatePasswordLength(input.Password, srv.passwordMinLength); err != nil {
		return nil, err
	}

	passwordHash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password during reset", slog.Any("error", err))

		return nil, domainerrors.ErrPasswordHashFailed.WrapMessage("failed to hash password")
	}

	tokenHash := hashResetToken(input.Token)
	now := time.Now()

	var user *entity.User
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		resetTokenRepo := repoFactory.NewPasswordResetTokenRepository()

		claimed, err := resetTokenRepo.Claim(ctx, tokenHash, now)
		if err != nil {
			if errors.Is(err, repository.ErrResetTokenNotClaimable) {
				return srv.classifyUnclaimable(ctx, resetTokenRepo, tokenHash, now)
			}

			return errors.Wrap(err, "failed to claim reset token")
		}

		user, err = repoFactory.NewUserRepository().FindByID(ctx, claimed.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				// Rolling back un-claims the token; a reset must never
				// succeed without a real account to update.
				return domainerrors.ErrDataIntegrity.WrapMessage("reset token references a missing user")
			}

			return errors.Wrap(err, "failed to find user for reset token")
		}

		if err := repoFactory.NewUserRepository().UpdatePasswordHash(ctx, user.ID, passwordHash); err != nil {
			return errors.Wrap(err, "failed to update password hash")
		}

		if _, err := repoFactory.NewRefreshTokenRepository().DeleteAllForUser(ctx, user.ID); err != nil {
			return errors.Wrap(err, "failed to invalidate sessions after reset")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	user.PasswordHash = passwordHash

	srv.log(ctx).Info("Password reset completed", slog.Any("userID", user.ID))

	return user, nil
}

// classifyUnclaimable re-reads the row by hash alone to report precisely why
// a claim matched nothing. The classification is read-only and may race a
// concurrent claim; the claim itself already lost, so precision here is a
// courtesy, not a correctness requirement.
func (srv *passwordResetService) classifyUnclaimable(ctx context.Context, resetTokenRepo repository.PasswordResetTokenRepository, tokenHash string, now time.Time) error {
	row, err := resetTokenRepo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return domainerrors.ErrResetTokenInvalid
		}

		return errors.Wrap(err, "failed to classify reset token")
	}

	switch {
	case row.Used():
		return domainerrors.ErrResetTokenUsed
	case row.Expired(now):
		return domainerrors.ErrResetTokenExpired
	default:
		// Unreachable for a row the conditional update just skipped.
		return domainerrors.ErrResetTokenInvalid
	}
}

// VerifyToken classifies a token without consuming it.
func (srv *passwordResetService) VerifyToken(ctx context.Context, input usecase.VerifyResetTokenInput) (*entity.User, error) {
	tokenHash := hashResetToken(input.Token)
	now := time.Now()

	row, err := srv.resetTokenRepo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return nil, domainerrors.ErrResetTokenInvalid
		}

		return nil, errors.Wrap(err, "failed to find reset token")
	}

	switch {
	case row.Used():
		return nil, domainerrors.ErrResetTokenUsed
	case row.Expired(now):
		return nil, domainerrors.ErrResetTokenExpired
	}

	user, err := srv.userRepo.FindByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrDataIntegrity.WrapMessage("reset token references a missing user")
		}

		return nil, errors.Wrap(err, "failed to find user for reset token")
	}

	return user, nil
}

// CleanupExpiredTokens removes reset token rows past their expiry.
func (srv *passwordResetService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	count, err := srv.resetTokenRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete expired reset tokens")
	}

	return count, nil
}

// generateResetToken draws a fresh raw token and returns it with its digest.
func generateResetToken() (rawToken, tokenHash string, err error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}

	rawToken = base64.RawURLEncoding.EncodeToString(buf)

	return rawToken, hashResetToken(rawToken), nil
}

// hashResetToken maps a raw token to its stored form. Unlike password
// hashing this must be deterministic so the same raw token always finds the
// same row; SHA-256 keeps the stored value irreversible.
func hashResetToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))

	return hex.EncodeToString(sum[:])
}
