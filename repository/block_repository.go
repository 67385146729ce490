package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/wyzar/wyzar_messaging/apperrors"
	"github.com/wyzar/wyzar_messaging/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormBlockRepository struct {
	db *gorm.DB
}

func NewGormBlockRepository(db *gorm.DB) *GormBlockRepository {
	return &GormBlockRepository{db: db}
}

// Block is idempotent: blocking twice returns the original row.
func (repo *GormBlockRepository) Block(ctx context.Context, blockerID, blockedID uuid.UUID) (*models.UserBlock, error) {
	if blockerID == blockedID {
		return nil, apperrors.ErrSelfBlock
	}
	block := models.UserBlock{BlockerID: blockerID, BlockedID: blockedID}
	err := repo.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&block).Error
	if err != nil {
		return nil, storeErr("block user", err, nil)
	}

	var stored models.UserBlock
	err = repo.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		First(&stored).Error
	if err != nil {
		return nil, storeErr("load block", err, nil)
	}
	return &stored, nil
}

func (repo *GormBlockRepository) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	err := repo.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.UserBlock{}).Error
	return storeErr("unblock user", err, nil)
}

func (repo *GormBlockRepository) ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]models.UserBlock, error) {
	blocks := make([]models.UserBlock, 0)
	err := repo.db.WithContext(ctx).
		Preload("Blocked").
		Where("blocker_id = ?", blockerID).
		Order("created_at DESC").
		Find(&blocks).Error
	if err != nil {
		return nil, storeErr("list blocks", err, nil)
	}
	return blocks, nil
}

func (repo *GormBlockRepository) IsBlockedEitherWay(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&models.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, storeErr("check block", err, nil)
	}
	return count > 0, nil
}
