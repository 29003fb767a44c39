package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

type AdminTokenRepo interface {
	Create(ctx context.Context, tx *gorm.DB, token *types.AdminToken) (*types.AdminToken, error)
	GetByAccessToken(ctx context.Context, tx *gorm.DB, accessToken string) (*types.AdminToken, error)
	GetByRefreshToken(ctx context.Context, tx *gorm.DB, refreshToken string) (*types.AdminToken, error)
	DeleteByAdminID(ctx context.Context, tx *gorm.DB, adminID uuid.UUID) error
	DeleteExpired(ctx context.Context, tx *gorm.DB, now time.Time) error
}

type adminTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdminTokenRepo(db *gorm.DB, baseLog *logger.Logger) AdminTokenRepo {
	return &adminTokenRepo{db: db, log: baseLog.With("repo", "AdminTokenRepo")}
}

func (tr *adminTokenRepo) Create(ctx context.Context, tx *gorm.DB, token *types.AdminToken) (*types.AdminToken, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	if err := transaction.WithContext(ctx).Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

func (tr *adminTokenRepo) GetByAccessToken(ctx context.Context, tx *gorm.DB, accessToken string) (*types.AdminToken, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	var token types.AdminToken
	if err := transaction.WithContext(ctx).
		Where("access_token = ?", accessToken).
		First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (tr *adminTokenRepo) GetByRefreshToken(ctx context.Context, tx *gorm.DB, refreshToken string) (*types.AdminToken, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	var token types.AdminToken
	if err := transaction.WithContext(ctx).
		Where("refresh_token = ?", refreshToken).
		First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (tr *adminTokenRepo) DeleteByAdminID(ctx context.Context, tx *gorm.DB, adminID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	return transaction.WithContext(ctx).
		Where("admin_user_id = ?", adminID).
		Delete(&types.AdminToken{}).Error
}

func (tr *adminTokenRepo) DeleteExpired(ctx context.Context, tx *gorm.DB, now time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	return transaction.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&types.AdminToken{}).Error
}
