package handlers

import (
	"context"
	"encoding/json"
	"log"

	fws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/wyzar/wyzar_messaging/apperrors"
	"github.com/wyzar/wyzar_messaging/middleware"
	"github.com/wyzar/wyzar_messaging/repository"
	"github.com/wyzar/wyzar_messaging/services"
	"github.com/wyzar/wyzar_messaging/websocket"
)

type MessagingHandler struct {
	service   *services.MessagingService
	hub       *websocket.Hub
	jwtSecret string
}

func NewMessagingHandler(service *services.MessagingService, hub *websocket.Hub, jwtSecret string) *MessagingHandler {
	return &MessagingHandler{service: service, hub: hub, jwtSecret: jwtSecret}
}

type CreateConversationRequest struct {
	ReceiverID string `json:"receiverId" validate:"required,uuid"`
	ProductID  string `json:"productId,omitempty" validate:"omitempty,uuid"`
}

type SendMessageRequest struct {
	ReceiverID  string   `json:"receiverId" validate:"required,uuid"`
	Message     string   `json:"message"`
	ProductID   string   `json:"productId,omitempty" validate:"omitempty,uuid"`
	Attachments []string `json:"attachments,omitempty" validate:"omitempty,dive,max=2048"`
}

func (h *MessagingHandler) GetConversations(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	page := repository.Page{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", repository.DefaultConversationPageSize),
	}
	summaries, err := h.service.ListConversations(c.UserContext(), userID, page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summaries)
}

func (h *MessagingHandler) CreateConversation(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req CreateConversationRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	receiverID, _ := uuid.Parse(req.ReceiverID)

	summary, created, err := h.service.GetOrCreateConversation(c.UserContext(), userID, receiverID, optionalUUID(req.ProductID))
	if err != nil {
		return respondError(c, err)
	}
	if created {
		return c.Status(fiber.StatusCreated).JSON(summary)
	}
	return c.JSON(summary)
}

func (h *MessagingHandler) GetConversationMessages(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	conversationID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	order := c.Query("order", "asc")
	if order != "asc" && order != "desc" {
		return respondError(c, apperrors.Validation("order must be asc or desc"))
	}
	p := repository.Pagination{
		Page: repository.Page{
			Page:     c.QueryInt("page", 1),
			PageSize: c.QueryInt("page_size", repository.DefaultMessagePageSize),
		},
		Order: order,
	}

	messages, err := h.service.ListMessages(c.UserContext(), userID, conversationID, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(messages)
}

func (h *MessagingHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	receiverID, _ := uuid.Parse(req.ReceiverID)

	res, err := h.service.SendMessage(c.UserContext(), services.SendMessageInput{
		SenderID:    userID,
		ReceiverID:  receiverID,
		Body:        req.Message,
		ProductID:   optionalUUID(req.ProductID),
		Attachments: req.Attachments,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res.Message)
}

func (h *MessagingHandler) MarkConversationRead(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	conversationID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	receipt, err := h.service.MarkRead(c.UserContext(), userID, conversationID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(receipt)
}

func (h *MessagingHandler) GetUnreadCount(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	total, err := h.service.UnreadTotal(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"unreadCount": total})
}

// ServeWs runs one relay socket. The first frame must be
// {"type":"auth","token":...}; after that only typing frames are accepted.
func (h *MessagingHandler) ServeWs(c *fws.Conn) {
	userID, err := h.authenticate(c)
	if err != nil {
		log.Printf("WebSocket auth failed: %v", err)
		_ = c.WriteJSON(websocket.ErrorEvent(apperrors.MessageOf(err)))
		_ = c.Close()
		return
	}

	client := websocket.NewClient(userID, c)
	h.hub.Register(client)
	// fiber pools c once ServeWs returns, so the write loop must be gone first.
	defer func() {
		h.hub.Unregister(client)
		<-client.Exited()
	}()

	ctx := context.Background()
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if fws.IsCloseError(err, fws.CloseNormalClosure, fws.CloseGoingAway, fws.CloseAbnormalClosure) {
				log.Printf("WebSocket closed for client %s: %v", userID, err)
			} else {
				log.Printf("WebSocket read error for client %s: %v", userID, err)
			}
			return
		}
		if err := h.handleFrame(ctx, userID, data); err != nil {
			_ = h.hub.SendTo(client, websocket.ErrorEvent(apperrors.MessageOf(err)))
		}
	}
}

func (h *MessagingHandler) authenticate(c *fws.Conn) (uuid.UUID, error) {
	_, data, err := c.ReadMessage()
	if err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.CodeUnauthenticated, "Invalid or missing auth message", err)
	}
	var frame websocket.Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type != websocket.EventAuth {
		return uuid.Nil, apperrors.Unauthenticated("Invalid or missing auth message")
	}
	claims, err := middleware.ParseToken(frame.Token, h.jwtSecret)
	if err != nil {
		return uuid.Nil, err
	}
	return middleware.UserIDFromClaims(claims)
}

func (h *MessagingHandler) handleFrame(ctx context.Context, userID uuid.UUID, data []byte) error {
	var frame websocket.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return apperrors.Validation("malformed frame")
	}

	switch frame.Type {
	case websocket.EventTyping, websocket.EventStopTyping:
		conversationID, err := uuid.Parse(frame.ConversationID)
		if err != nil {
			return apperrors.Validation("invalid conversationId")
		}
		if frame.Type == websocket.EventTyping {
			return h.service.StartTyping(ctx, userID, conversationID)
		}
		return h.service.StopTyping(ctx, userID, conversationID)
	case websocket.EventAuth:
		return apperrors.Validation("already authenticated")
	default:
		return apperrors.Validation("unsupported frame type " + frame.Type)
	}
}
