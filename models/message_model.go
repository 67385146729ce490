package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is immutable after insert except for IsRead/ReadAt.
type Message struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	ConversationID uuid.UUID  `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	SenderID       uuid.UUID  `gorm:"type:uuid;not null" json:"senderId"`
	ReceiverID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"receiverId"`
	Body           string     `gorm:"type:text;not null;default:''" json:"body"`
	Attachments    []string   `gorm:"type:text;serializer:json" json:"attachments"`
	IsRead         bool       `gorm:"not null;default:false" json:"isRead"`
	ReadAt         *time.Time `json:"readAt,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Attachments == nil {
		m.Attachments = []string{}
	}
	return nil
}
