package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wyzar/wyzar_messaging/handlers"
	"github.com/wyzar/wyzar_messaging/middleware"
)

type Handlers struct {
	Messaging *handlers.MessagingHandler
	Upload    *handlers.UploadHandler
}

// Setup mounts every route under /api/v1.
func Setup(app *fiber.App, h Handlers, jwtSecret string) {
	api := app.Group("/api/v1")
	protected := middleware.Protected(jwtSecret)

	MessagingRoutes(api, h.Messaging, protected)
	BlockRoutes(api, h.Messaging, protected)
	UploadRoutes(api, h.Upload, protected)
}
