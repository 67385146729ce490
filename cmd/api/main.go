package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"github.com/wyzar/wyzar_messaging/apperrors"
	config "github.com/wyzar/wyzar_messaging/configs"
	"github.com/wyzar/wyzar_messaging/database"
	"github.com/wyzar/wyzar_messaging/handlers"
	"github.com/wyzar/wyzar_messaging/jobs"
	"github.com/wyzar/wyzar_messaging/repository"
	"github.com/wyzar/wyzar_messaging/routes"
	"github.com/wyzar/wyzar_messaging/services"
	"github.com/wyzar/wyzar_messaging/storage"
	"github.com/wyzar/wyzar_messaging/websocket"
)

func main() {
	settings := config.Load()
	if settings.JWTSecret == "" {
		log.Fatal("🔥 JWT_SECRET is required")
	}

	db, err := database.ConnectDB(settings.DBDriver, settings.DatabaseURL)
	if err != nil {
		log.Fatalf("🔥 %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("🔥 Failed to migrate database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubOpts := []websocket.Option{websocket.WithTypingTimeout(settings.TypingTimeout)}
	if settings.RedisURL != "" {
		backplane, err := websocket.NewRedisBackplane(settings.RedisURL, websocket.DefaultRelayChannel)
		if err != nil {
			log.Fatalf("🔥 Failed to connect relay backplane: %v", err)
		}
		hubOpts = append(hubOpts, websocket.WithBackplane(backplane))
		log.Println("✅ Redis relay backplane connected.")
	}
	hub := websocket.NewHub(hubOpts...)
	if err := hub.Start(ctx); err != nil {
		log.Fatalf("🔥 Failed to start relay: %v", err)
	}
	defer hub.Close()

	var (
		signer handlers.Signer
		policy services.AttachmentPolicy
	)
	if settings.CloudinaryURL != "" {
		cld, err := storage.NewCloudinarySigner(settings.CloudinaryURL, settings.AttachmentFolder)
		if err != nil {
			log.Fatalf("🔥 Failed to initialize Cloudinary: %v", err)
		}
		signer, policy = cld, cld
	} else {
		log.Println("Warning: CLOUDINARY_URL not set, attachment uploads disabled")
	}

	limits := repository.ContentLimits{MaxBodyLength: settings.MaxMessageLength, MaxAttachments: repository.DefaultMaxAttachments}
	service := services.NewMessagingService(repository.NewStore(db, limits), hub, policy, limits)

	c := cron.New()
	if _, err := jobs.ScheduleTypingSweep(c, hub); err != nil {
		log.Fatalf("🔥 Failed to schedule typing sweep: %v", err)
	}
	go c.Start()
	defer c.Stop()
	log.Println("✅ Cron job for typing expiry scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       "WyZar Messaging",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			return c.Status(apperrors.HTTPStatus(err)).JSON(fiber.Map{
				"error": apperrors.MessageOf(err),
				"code":  apperrors.CodeOf(err),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  settings.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Africa/Harare",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.Setup(app, routes.Handlers{
		Messaging: handlers.NewMessagingHandler(service, hub, settings.JWTSecret),
		Upload:    handlers.NewUploadHandler(signer),
	}, settings.JWTSecret)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"connections": hub.ConnectionCount(),
		})
	})

	log.Printf("✅ Server is running on port %s", settings.Port)
	if err := app.Listen(":" + settings.Port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
