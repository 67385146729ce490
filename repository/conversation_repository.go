package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wyzar/wyzar_messaging/apperrors"
	"github.com/wyzar/wyzar_messaging/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormConversationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db, now: time.Now}
}

func (repo *GormConversationRepository) GetOrCreate(ctx context.Context, a, b uuid.UUID, productID *uuid.UUID) (*models.Conversation, bool, error) {
	if a == uuid.Nil || b == uuid.Nil {
		return nil, false, apperrors.Validation("both participants are required")
	}
	if a == b {
		return nil, false, apperrors.ErrSelfMessage
	}

	low, high := models.OrderedPair(a, b)
	key := models.ProductKeyFor(productID)
	var pid *uuid.UUID
	if key != "" {
		p := *productID
		pid = &p
	}

	// The unique index on (participant_low, participant_high, product_key)
	// decides the winner between concurrent first messages; losers fall
	// through to the read below.
	created := false
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv := models.Conversation{
			ParticipantLow:  low,
			ParticipantHigh: high,
			ProductKey:      key,
			ProductID:       pid,
		}
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		participants := []models.ConversationParticipant{
			{ConversationID: conv.ID, UserID: low},
			{ConversationID: conv.ID, UserID: high},
		}
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&participants).Error
	})
	if err != nil {
		return nil, false, storeErr("create conversation", err, nil)
	}

	var conv models.Conversation
	err = repo.db.WithContext(ctx).
		Where("participant_low = ? AND participant_high = ? AND product_key = ?", low, high, key).
		First(&conv).Error
	if err != nil {
		return nil, false, storeErr("load conversation", err, apperrors.ErrConversationNotFound)
	}
	return &conv, created, nil
}

func (repo *GormConversationRepository) Find(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := repo.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, storeErr("find conversation", err, apperrors.ErrConversationNotFound)
	}
	return &conv, nil
}

// FindDetailed loads the conversation with participants, their users, the
// product and the last message.
func (repo *GormConversationRepository) FindDetailed(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := repo.detailed(ctx).First(&conv, "id = ?", id).Error
	if err != nil {
		return nil, storeErr("find conversation", err, apperrors.ErrConversationNotFound)
	}
	return &conv, nil
}

func (repo *GormConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID, page Page) ([]models.Conversation, error) {
	limit, offset := page.limitOffset(DefaultConversationPageSize)

	var conversations []models.Conversation
	err := repo.detailed(ctx).
		Where("participant_low = ? OR participant_high = ?", userID, userID).
		Order("COALESCE(last_message_at, created_at) DESC").
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&conversations).Error
	if err != nil {
		return nil, storeErr("list conversations", err, nil)
	}
	return conversations, nil
}

func (repo *GormConversationRepository) detailed(ctx context.Context) *gorm.DB {
	return repo.db.WithContext(ctx).
		Preload("Participants.User").
		Preload("Product").
		Preload("LastMessage")
}

// MarkRead zeroes userID's counter and flips every unread message addressed to
// them. The counter row is updated first so that a concurrent Append either
// commits before it (and its message is flipped here) or increments after it
// (and its message stays unread).
func (repo *GormConversationRepository) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) (*ReadReceipt, error) {
	now := repo.now()
	receipt := &ReadReceipt{ConversationID: conversationID, UserID: userID, ReadAt: now}

	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.Select("id", "participant_low", "participant_high").First(&conv, "id = ?", conversationID).Error; err != nil {
			return storeErr("find conversation", err, apperrors.ErrConversationNotFound)
		}
		if !conv.HasParticipant(userID) {
			return apperrors.ErrNotParticipant
		}

		err := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Updates(map[string]any{"unread_count": 0, "last_read_at": now}).Error
		if err != nil {
			return err
		}

		res := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
			Updates(map[string]any{"is_read": true, "read_at": now})
		if res.Error != nil {
			return res.Error
		}
		receipt.Count = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, storeErr("mark read", err, nil)
	}
	return receipt, nil
}

func (repo *GormConversationRepository) UnreadTotal(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := repo.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(unread_count), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, storeErr("unread total", err, nil)
	}
	return total, nil
}
