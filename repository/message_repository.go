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

type GormMessageRepository struct {
	db     *gorm.DB
	limits ContentLimits
	now    func() time.Time
}

func NewGormMessageRepository(db *gorm.DB, limits ContentLimits) *GormMessageRepository {
	return &GormMessageRepository{db: db, limits: limits.withDefaults(), now: time.Now}
}

// Append inserts the message, advances the conversation's last-message
// pointer and bumps the receiver's unread counter in one transaction.
func (repo *GormMessageRepository) Append(ctx context.Context, in AppendInput) (*models.Message, error) {
	body, attachments, err := NormalizeContent(in.Body, in.Attachments, repo.limits)
	if err != nil {
		return nil, err
	}
	if in.SenderID == in.ReceiverID {
		return nil, apperrors.ErrSelfMessage
	}

	msg := &models.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Body:           body,
		Attachments:    attachments,
		CreatedAt:      repo.now(),
	}

	err = repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.Select("id", "participant_low", "participant_high").First(&conv, "id = ?", in.ConversationID).Error; err != nil {
			return storeErr("find conversation", err, apperrors.ErrConversationNotFound)
		}
		if !conv.HasParticipant(in.SenderID) || !conv.HasParticipant(in.ReceiverID) {
			return apperrors.ErrParticipantMismatch
		}

		if err := tx.Omit(clause.Associations).Create(msg).Error; err != nil {
			return err
		}

		// Conditional so that a slower commit never rewinds the pointer.
		err := tx.Model(&models.Conversation{}).
			Where("id = ? AND (last_message_at IS NULL OR last_message_at <= ?)", conv.ID, msg.CreatedAt).
			Updates(map[string]any{"last_message_id": msg.ID, "last_message_at": msg.CreatedAt}).Error
		if err != nil {
			return err
		}

		res := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", conv.ID, in.ReceiverID).
			UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrParticipantMismatch
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("append message", err, nil)
	}
	return msg, nil
}

func (repo *GormMessageRepository) List(ctx context.Context, conversationID uuid.UUID, p Pagination) ([]models.Message, error) {
	limit, offset := p.limitOffset(DefaultMessagePageSize)
	dir := "ASC"
	if p.Descending() {
		dir = "DESC"
	}

	messages := make([]models.Message, 0)
	err := repo.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at " + dir).
		Order("id " + dir).
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, storeErr("list messages", err, nil)
	}
	return messages, nil
}
