package postgres

import (
	"context"
	"time"

	"backoffice/internal/domain/entity"
	"backoffice/internal/domain/repository"
	"backoffice/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type passwordResetTokenRepository struct {
	db *gorm.DB
}

// NewPasswordResetTokenRepository creates a password reset token repository
// on the given GORM handle.
func NewPasswordResetTokenRepository(db *gorm.DB) repository.PasswordResetTokenRepository {
	return &passwordResetTokenRepository{db: db}
}

func (r *passwordResetTokenRepository) Create(ctx context.Context, token *entity.PasswordResetToken) error {
	row := toPasswordResetTokenModel(token)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrUserNotFound
		}

		return errors.Wrap(err, "failed to create password reset token")
	}

	token.ID = row.ID
	token.CreatedAt = row.CreatedAt

	return nil
}

func (r *passwordResetTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*entity.PasswordResetToken, error) {
	var row model.PasswordResetTokenModel
	err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrResetTokenNotFound
		}
		return nil, errors.Wrap(err, "failed to find password reset token")
	}

	return toPasswordResetTokenEntity(&row), nil
}

func (r *passwordResetTokenRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.PasswordResetTokenModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete password reset tokens for user")
	}

	return result.RowsAffected, nil
}

// Claim performs the single conditional UPDATE that enforces single use. The
// predicate re-checks use-state and expiry inside the statement, so under
// concurrent claims of one token the row transitions to used exactly once and
// every other claimant sees zero rows affected.
func (r *passwordResetTokenRepository) Claim(ctx context.Context, tokenHash string, now time.Time) (*entity.PasswordResetToken, error) {
	result := r.db.WithContext(ctx).
		Model(&model.PasswordResetTokenModel{}).
		Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", tokenHash, now).
		Update("used_at", now)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to claim password reset token")
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrResetTokenNotClaimable
	}

	var row model.PasswordResetTokenModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&row).Error; err != nil {
		return nil, errors.Wrap(err, "failed to read claimed password reset token")
	}

	return toPasswordResetTokenEntity(&row), nil
}

func (r *passwordResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.PasswordResetTokenModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete expired password reset tokens")
	}

	return result.RowsAffected, nil
}

func toPasswordResetTokenEntity(row *model.PasswordResetTokenModel) *entity.PasswordResetToken {
	return &entity.PasswordResetToken{
		ID:        row.ID,
		UserID:    row.UserID,
		TokenHash: row.TokenHash,
		ExpiresAt: row.ExpiresAt,
		UsedAt:    row.UsedAt,
		CreatedAt: row.CreatedAt,
	}
}

func toPasswordResetTokenModel(token *entity.PasswordResetToken) *model.PasswordResetTokenModel {
	return &model.PasswordResetTokenModel{
		ID:        token.ID,
		UserID:    token.UserID,
		TokenHash: token.TokenHash,
		ExpiresAt: token.ExpiresAt,
		UsedAt:    token.UsedAt,
	}
}
