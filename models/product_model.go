package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Product struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	SellerID uuid.UUID `gorm:"type:uuid;not null;index" json:"sellerId"`
	Title    string    `gorm:"size:255;not null" json:"title"`
	Price    float64   `gorm:"type:numeric(10,2);not null" json:"price"`
	Currency string    `gorm:"size:3;default:'USD'" json:"currency"`
	ImageURL *string   `gorm:"size:512" json:"imageUrl,omitempty"`
	Status   string    `gorm:"size:20;not null;default:'active'" json:"status"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
