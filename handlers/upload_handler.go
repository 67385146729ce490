package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wyzar/wyzar_messaging/apperrors"
	"github.com/wyzar/wyzar_messaging/storage"
)

// Signer produces signed direct-upload parameters. *storage.CloudinarySigner
// implements it.
type Signer interface {
	Sign() (*storage.UploadSignature, error)
}

type UploadHandler struct {
	signer Signer
}

// NewUploadHandler accepts a nil signer; the endpoint then answers 503.
func NewUploadHandler(signer Signer) *UploadHandler {
	return &UploadHandler{signer: signer}
}

// GenerateAttachmentSignature creates a signature for a frontend attachment upload.
func (h *UploadHandler) GenerateAttachmentSignature(c *fiber.Ctx) error {
	if h.signer == nil {
		return respondError(c, apperrors.ErrAttachmentsDisabled)
	}
	sig, err := h.signer.Sign()
	if err != nil {
		return respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Failed to sign upload params", err))
	}
	return c.JSON(sig)
}
