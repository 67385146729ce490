package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wyzar/wyzar_messaging/middleware"
)

func (h *MessagingHandler) GetBlockedUsers(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	blocks, err := h.service.ListBlocked(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(blocks)
}

func (h *MessagingHandler) BlockUser(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	blockedID, err := paramUUID(c, "userId")
	if err != nil {
		return respondError(c, err)
	}
	block, err := h.service.Block(c.UserContext(), userID, blockedID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(block)
}

func (h *MessagingHandler) UnblockUser(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	blockedID, err := paramUUID(c, "userId")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.service.Unblock(c.UserContext(), userID, blockedID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
