package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wyzar/wyzar_messaging/apperrors"
	"github.com/wyzar/wyzar_messaging/models"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	// GetOrCreate returns the conversation for the unordered pair (a, b) and
	// productID, creating it when absent. created reports whether this call
	// inserted it.
	GetOrCreate(ctx context.Context, a, b uuid.UUID, productID *uuid.UUID) (conv *models.Conversation, created bool, err error)
	Find(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindDetailed(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page Page) ([]models.Conversation, error)
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID) (*ReadReceipt, error)
	UnreadTotal(ctx context.Context, userID uuid.UUID) (int64, error)
}

type MessageRepository interface {
	Append(ctx context.Context, in AppendInput) (*models.Message, error)
	List(ctx context.Context, conversationID uuid.UUID, p Pagination) ([]models.Message, error)
}

type BlockRepository interface {
	Block(ctx context.Context, blockerID, blockedID uuid.UUID) (*models.UserBlock, error)
	Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error
	ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]models.UserBlock, error)
	IsBlockedEitherWay(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// DirectoryRepository reads the user and product reference tables.
type DirectoryRepository interface {
	FindActiveUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type AppendInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	ReceiverID     uuid.UUID
	Body           string
	Attachments    []string
}

type ReadReceipt struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	Count          int64     `json:"count"`
	ReadAt         time.Time `json:"readAt"`
}

// Store bundles every repository over one *gorm.DB.
type Store struct {
	Conversations ConversationRepository
	Messages      MessageRepository
	Blocks        BlockRepository
	Directory     DirectoryRepository
}

func NewStore(db *gorm.DB, limits ContentLimits) *Store {
	return &Store{
		Conversations: NewGormConversationRepository(db),
		Messages:      NewGormMessageRepository(db, limits),
		Blocks:        NewGormBlockRepository(db),
		Directory:     NewGormDirectoryRepository(db),
	}
}

// storeErr passes AppErrors through and classifies driver errors.
func storeErr(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if notFound != nil {
			return notFound
		}
		return apperrors.Wrap(apperrors.CodeNotFound, op+": record not found", err)
	}
	return apperrors.StoreUnavailable(op+" failed", err)
}
