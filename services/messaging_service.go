package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/wyzar/wyzar_messaging/apperrors"
	"github.com/wyzar/wyzar_messaging/models"
	"github.com/wyzar/wyzar_messaging/repository"
	"github.com/wyzar/wyzar_messaging/websocket"
)

// Notifier is the part of the relay the service drives. *websocket.Hub
// implements it.
type Notifier interface {
	Emit(ctx context.Context, userID uuid.UUID, ev websocket.Event) error
	StartTyping(ctx context.Context, conversationID, typist, peer uuid.UUID) bool
	StopTyping(ctx context.Context, conversationID, typist uuid.UUID) bool
}

// AttachmentPolicy decides whether an attachment URL may be stored.
type AttachmentPolicy interface {
	Allowed(raw string) bool
}

type MessagingService struct {
	store       *repository.Store
	relay       Notifier
	attachments AttachmentPolicy
	limits      repository.ContentLimits
}

// NewMessagingService builds the service. attachments may be nil, in which
// case any http(s) URL is accepted.
func NewMessagingService(store *repository.Store, relay Notifier, attachments AttachmentPolicy, limits repository.ContentLimits) *MessagingService {
	return &MessagingService{store: store, relay: relay, attachments: attachments, limits: limits}
}

type SendMessageInput struct {
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Body        string
	ProductID   *uuid.UUID
	Attachments []string
}

type SendResult struct {
	Conversation *models.Conversation
	Message      *models.Message
}

type NewMessagePayload struct {
	ConversationID uuid.UUID       `json:"conversationId"`
	Message        *models.Message `json:"message"`
}

// ConversationSummary is one row of a user's inbox.
type ConversationSummary struct {
	ID            uuid.UUID       `json:"id"`
	OtherUser     *models.User    `json:"otherUser"`
	Product       *models.Product `json:"product,omitempty"`
	LastMessage   *models.Message `json:"lastMessage,omitempty"`
	LastMessageAt *time.Time      `json:"lastMessageAt,omitempty"`
	UnreadCount   int             `json:"unreadCount"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// SendMessage validates, persists and relays one message. Nothing is written
// when any check fails.
func (s *MessagingService) SendMessage(ctx context.Context, in SendMessageInput) (*SendResult, error) {
	body, attachments, err := repository.NormalizeContent(in.Body, in.Attachments, s.limits)
	if err != nil {
		return nil, err
	}
	if err := s.checkAttachments(attachments); err != nil {
		return nil, err
	}
	if in.SenderID == in.ReceiverID {
		return nil, apperrors.ErrSelfMessage
	}
	if err := s.checkCounterpart(ctx, in.SenderID, in.ReceiverID, in.ProductID); err != nil {
		return nil, err
	}

	conv, _, err := s.store.Conversations.GetOrCreate(ctx, in.SenderID, in.ReceiverID, in.ProductID)
	if err != nil {
		return nil, err
	}
	msg, err := s.store.Messages.Append(ctx, repository.AppendInput{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Body:           body,
		Attachments:    attachments,
	})
	if err != nil {
		return nil, err
	}

	s.relay.StopTyping(ctx, conv.ID, in.SenderID)
	ev := websocket.Event{Type: websocket.EventNewMessage, Data: NewMessagePayload{ConversationID: conv.ID, Message: msg}}
	if err := s.relay.Emit(ctx, in.ReceiverID, ev); err != nil {
		log.Printf("🔥 relay new_message to %s: %v", in.ReceiverID, err)
	}
	return &SendResult{Conversation: conv, Message: msg}, nil
}

// GetOrCreateConversation opens (or reopens) the conversation between the
// caller and otherID.
func (s *MessagingService) GetOrCreateConversation(ctx context.Context, callerID, otherID uuid.UUID, productID *uuid.UUID) (*ConversationSummary, bool, error) {
	if callerID == otherID {
		return nil, false, apperrors.ErrSelfMessage
	}
	if err := s.checkCounterpart(ctx, callerID, otherID, productID); err != nil {
		return nil, false, err
	}
	conv, created, err := s.store.Conversations.GetOrCreate(ctx, callerID, otherID, productID)
	if err != nil {
		return nil, false, err
	}
	detailed, err := s.store.Conversations.FindDetailed(ctx, conv.ID)
	if err != nil {
		return nil, false, err
	}
	return summarize(detailed, callerID), created, nil
}

func (s *MessagingService) ListConversations(ctx context.Context, userID uuid.UUID, page repository.Page) ([]ConversationSummary, error) {
	convs, err := s.store.Conversations.ListForUser(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(convs))
	for i := range convs {
		out = append(out, *summarize(&convs[i], userID))
	}
	return out, nil
}

func (s *MessagingService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, p repository.Pagination) ([]models.Message, error) {
	if _, err := s.memberOf(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.Messages.List(ctx, conversationID, p)
}

// MarkRead clears the caller's unread state and tells the other participant
// when anything changed.
func (s *MessagingService) MarkRead(ctx context.Context, userID, conversationID uuid.UUID) (*repository.ReadReceipt, error) {
	conv, err := s.memberOf(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	receipt, err := s.store.Conversations.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if receipt.Count > 0 {
		peer := conv.OtherParticipant(userID)
		ev := websocket.Event{Type: websocket.EventMessagesRead, Data: receipt}
		if err := s.relay.Emit(ctx, peer, ev); err != nil {
			log.Printf("🔥 relay messages_read to %s: %v", peer, err)
		}
	}
	return receipt, nil
}

func (s *MessagingService) UnreadTotal(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.Conversations.UnreadTotal(ctx, userID)
}

func (s *MessagingService) Block(ctx context.Context, blockerID, blockedID uuid.UUID) (*models.UserBlock, error) {
	if blockerID == blockedID {
		return nil, apperrors.ErrSelfBlock
	}
	if _, err := s.store.Directory.FindActiveUser(ctx, blockedID); err != nil {
		return nil, err
	}
	return s.store.Blocks.Block(ctx, blockerID, blockedID)
}

func (s *MessagingService) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	return s.store.Blocks.Unblock(ctx, blockerID, blockedID)
}

func (s *MessagingService) ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]models.UserBlock, error) {
	return s.store.Blocks.ListBlocked(ctx, blockerID)
}

// StartTyping handles a "typing" frame from userID.
func (s *MessagingService) StartTyping(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.memberOf(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	peer := conv.OtherParticipant(userID)
	blocked, err := s.store.Blocks.IsBlockedEitherWay(ctx, userID, peer)
	if err != nil {
		return err
	}
	if blocked {
		return apperrors.ErrBlocked
	}
	s.relay.StartTyping(ctx, conv.ID, userID, peer)
	return nil
}

// StopTyping handles a "stop_typing" frame from userID.
func (s *MessagingService) StopTyping(ctx context.Context, userID, conversationID uuid.UUID) error {
	if _, err := s.memberOf(ctx, userID, conversationID); err != nil {
		return err
	}
	s.relay.StopTyping(ctx, conversationID, userID)
	return nil
}

func (s *MessagingService) memberOf(ctx context.Context, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.store.Conversations.Find(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, apperrors.ErrNotParticipant
	}
	return conv, nil
}

// checkCounterpart verifies the receiver, the optional product and the block
// list, in that order.
func (s *MessagingService) checkCounterpart(ctx context.Context, senderID, receiverID uuid.UUID, productID *uuid.UUID) error {
	if _, err := s.store.Directory.FindActiveUser(ctx, receiverID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrReceiverNotFound
		}
		return err
	}
	if productID != nil && *productID != uuid.Nil {
		if _, err := s.store.Directory.FindProduct(ctx, *productID); err != nil {
			return err
		}
	}
	blocked, err := s.store.Blocks.IsBlockedEitherWay(ctx, senderID, receiverID)
	if err != nil {
		return err
	}
	if blocked {
		return apperrors.ErrBlocked
	}
	return nil
}

func (s *MessagingService) checkAttachments(attachments []string) error {
	if s.attachments == nil {
		return nil
	}
	for _, a := range attachments {
		if !s.attachments.Allowed(a) {
			return apperrors.ErrInvalidAttachment
		}
	}
	return nil
}

func summarize(conv *models.Conversation, userID uuid.UUID) *ConversationSummary {
	other := conv.ParticipantUser(conv.OtherParticipant(userID))
	return &ConversationSummary{
		ID:            conv.ID,
		OtherUser:     other,
		Product:       conv.Product,
		LastMessage:   conv.LastMessage,
		LastMessageAt: conv.LastMessageAt,
		UnreadCount:   conv.UnreadFor(userID),
		CreatedAt:     conv.CreatedAt,
	}
}
