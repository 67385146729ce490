package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/wyzar/wyzar_messaging/handlers"
)

func MessagingRoutes(api fiber.Router, h *handlers.MessagingHandler, protected fiber.Handler) {
	conversations := api.Group("/conversations", protected)
	conversations.Get("", h.GetConversations)
	conversations.Post("", h.CreateConversation)

	// /messages shares its prefix with the attachment routes, so protection
	// is per route here.
	messages := api.Group("/messages")
	messages.Get("/conversation/:id", protected, h.GetConversationMessages)
	messages.Put("/conversation/:id/read", protected, h.MarkConversationRead)
	messages.Post("/send", protected, h.SendMessage)
	messages.Get("/unread-count", protected, h.GetUnreadCount)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws", websocket.New(h.ServeWs))
}

func BlockRoutes(api fiber.Router, h *handlers.MessagingHandler, protected fiber.Handler) {
	blocks := api.Group("/blocks", protected)
	blocks.Get("", h.GetBlockedUsers)
	blocks.Post("/:userId", h.BlockUser)
	blocks.Delete("/:userId", h.UnblockUser)
}
