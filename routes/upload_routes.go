package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wyzar/wyzar_messaging/handlers"
)

func UploadRoutes(api fiber.Router, h *handlers.UploadHandler, protected fiber.Handler) {
	api.Get("/messages/attachments/signature", protected, h.GenerateAttachmentSignature)
}
