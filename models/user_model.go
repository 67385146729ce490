package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the marketplace account as seen by messaging. Rows are owned by the
// identity service; this service only reads them.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	FullName  string    `gorm:"size:255;not null" json:"fullName"`
	Email     string    `gorm:"size:255;not null;unique" json:"-"`
	AvatarURL *string   `gorm:"size:255" json:"avatarUrl,omitempty"`
	Role      string    `gorm:"size:20;not null;default:'buyer'" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Active reports the account state; an unset flag takes the column default.
func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}
