package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/wyzar/wyzar_messaging/apperrors"
)

var validate = validator.New()

// respondError writes err as {"error", "code"} with the status its code maps to.
func respondError(c *fiber.Ctx, err error) error {
	status := apperrors.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("🔥 %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": apperrors.MessageOf(err),
		"code":  apperrors.CodeOf(err),
	})
}

// parseBody decodes and validates a JSON request body into req.
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.Validation("Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return apperrors.Validation(err.Error())
	}
	return nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid " + name)
	}
	return id, nil
}

// optionalUUID parses s, treating "" as absent.
func optionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
