package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserBlock struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	BlockerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_blocks_pair,priority:1" json:"blockerId"`
	BlockedID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_blocks_pair,priority:2;index" json:"blockedId"`

	Blocked User `gorm:"foreignKey:BlockedID" json:"blocked"`

	CreatedAt time.Time `json:"createdAt"`
}

func (b *UserBlock) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
