package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation groups the messages exchanged by one unordered pair of users,
// optionally about one product. ParticipantLow/ParticipantHigh hold the pair in
// byte order and ProductKey is "" when no product is attached, so the unique
// index covers every (pair, product) combination.
type Conversation struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	ParticipantLow  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_pair_product,priority:1" json:"-"`
	ParticipantHigh uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_pair_product,priority:2;index" json:"-"`
	ProductKey      string     `gorm:"size:36;not null;default:'';uniqueIndex:idx_conversation_pair_product,priority:3" json:"-"`
	ProductID       *uuid.UUID `gorm:"type:uuid;index" json:"productId,omitempty"`
	LastMessageID   *uuid.UUID `gorm:"type:uuid" json:"lastMessageId,omitempty"`
	LastMessageAt   *time.Time `gorm:"index" json:"lastMessageAt,omitempty"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
	Product      *Product                  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	LastMessage  *Message                  `gorm:"foreignKey:LastMessageID" json:"lastMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ConversationParticipant carries the per-participant unread counter. The
// counter is only ever changed with single-statement SQL updates.
type ConversationParticipant struct {
	ConversationID uuid.UUID  `gorm:"type:uuid;primaryKey" json:"conversationId"`
	UserID         uuid.UUID  `gorm:"type:uuid;primaryKey;index" json:"userId"`
	UnreadCount    int        `gorm:"not null;default:0" json:"unreadCount"`
	LastReadAt     *time.Time `json:"lastReadAt,omitempty"`

	User User `gorm:"foreignKey:UserID" json:"user"`

	CreatedAt time.Time `json:"-"`
}

// OrderedPair returns a and b in the order stored on Conversation.
func OrderedPair(a, b uuid.UUID) (low, high uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

func ProductKeyFor(productID *uuid.UUID) string {
	if productID == nil || *productID == uuid.Nil {
		return ""
	}
	return productID.String()
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantLow == userID || c.ParticipantHigh == userID
}

// OtherParticipant returns the peer of userID; it assumes HasParticipant.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.ParticipantLow == userID {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}

// UnreadFor reads the counter from preloaded Participants.
func (c *Conversation) UnreadFor(userID uuid.UUID) int {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p.UnreadCount
		}
	}
	return 0
}

func (c *Conversation) ParticipantUser(userID uuid.UUID) *User {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i].User
		}
	}
	return nil
}
