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

type refreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a refresh token repository on the given
// GORM handle.
func NewRefreshTokenRepository(db *gorm.DB) repository.RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *entity.RefreshToken) error {
	row := toRefreshTokenModel(token)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrUserNotFound
		}

		return errors.Wrap(err, "failed to create refresh token")
	}

	token.ID = row.ID
	token.CreatedAt = row.CreatedAt

	return nil
}

func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	var row model.RefreshTokenModel
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRefreshTokenNotFound
		}
		return nil, errors.Wrap(err, "failed to find refresh token")
	}

	return toRefreshTokenEntity(&row), nil
}

func (r *refreshTokenRepository) Delete(ctx context.Context, token string) error {
	result := r.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&model.RefreshTokenModel{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete refresh token")
	}
	if result.RowsAffected == 0 {
		return repository.ErrRefreshTokenNotFound
	}

	return nil
}

func (r *refreshTokenRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.RefreshTokenModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete refresh tokens for user")
	}

	return result.RowsAffected, nil
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.RefreshTokenModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete expired refresh tokens")
	}

	return result.RowsAffected, nil
}

// Rotate deletes the old row and inserts the replacement on the same handle.
// The zero-rows delete check is what makes concurrent rotations of one token
// resolve to a single winner: the row can only be deleted once.
func (r *refreshTokenRepository) Rotate(ctx context.Context, oldToken string, userID uuid.UUID, newToken string, newExpiresAt time.Time) (*entity.RefreshToken, error) {
	result := r.db.WithContext(ctx).
		Where("token = ?", oldToken).
		Delete(&model.RefreshTokenModel{})
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to delete rotated refresh token")
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrRefreshTokenNotFound
	}

	row := &model.RefreshTokenModel{
		UserID:    userID,
		Token:     newToken,
		ExpiresAt: newExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to create rotated refresh token")
	}

	return toRefreshTokenEntity(row), nil
}

func toRefreshTokenEntity(row *model.RefreshTokenModel) *entity.RefreshToken {
	return &entity.RefreshToken{
		ID:        row.ID,
		UserID:    row.UserID,
		Token:     row.Token,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
	}
}

func toRefreshTokenModel(token *entity.RefreshToken) *model.RefreshTokenModel {
	return &model.RefreshTokenModel{
		ID:        token.ID,
		UserID:    token.UserID,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	}
}
