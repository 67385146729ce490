package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/wyzar/wyzar_messaging/apperrors"
	"github.com/wyzar/wyzar_messaging/models"
	"gorm.io/gorm"
)

type GormDirectoryRepository struct {
	db *gorm.DB
}

func NewGormDirectoryRepository(db *gorm.DB) *GormDirectoryRepository {
	return &GormDirectoryRepository{db: db}
}

func (repo *GormDirectoryRepository) FindActiveUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := repo.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&user).Error
	if err != nil {
		return nil, storeErr("find user", err, apperrors.ErrUserNotFound)
	}
	return &user, nil
}

func (repo *GormDirectoryRepository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := repo.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, storeErr("find product", err, apperrors.ErrProductNotFound)
	}
	return &product, nil
}
