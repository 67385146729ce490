package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyzar/wyzar_messaging/storage"
)

type stubSigner struct {
	sig *storage.UploadSignature
	err error
}

func (s stubSigner) Sign() (*storage.UploadSignature, error) { return s.sig, s.err }

func get(t *testing.T, h fiber.Handler) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Get("/signature", h)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/signature", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestGenerateAttachmentSignature(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		status, body := get(t, NewUploadHandler(nil).GenerateAttachmentSignature)
		assert.Equal(t, fiber.StatusServiceUnavailable, status)
		assert.Equal(t, "STORE_UNAVAILABLE", body["code"])
	})

	t.Run("signed", func(t *testing.T) {
		signer := stubSigner{sig: &storage.UploadSignature{Signature: "abc", Timestamp: 42, APIKey: "key", CloudName: "wyzar", Folder: "f"}}
		status, body := get(t, NewUploadHandler(signer).GenerateAttachmentSignature)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "abc", body["signature"])
		assert.EqualValues(t, 42, body["timestamp"])
	})

	t.Run("signing failure", func(t *testing.T) {
		status, body := get(t, NewUploadHandler(stubSigner{err: assert.AnError}).GenerateAttachmentSignature)
		assert.Equal(t, fiber.StatusInternalServerError, status)
		assert.Equal(t, "Failed to sign upload params", body["error"])
	})
}
