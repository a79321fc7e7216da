package handler

import (
	"net/url"

	"github.com/gofiber/fiber/v3"

	"cinepasse-backoffice/internal/service"
)

// Blob serves an uploaded image.
// @Summary Serve uploaded image
// @Tags blobs
// @Produce octet-stream
// @Param name path string true "Object name"
// @Success 200
// @Failure 404 {object} ErrorResponse
// @Router /blobs/{name} [get]
func (h *Handler) Blob(c fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("*"))
	if err != nil || name == "" {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: service.MsgNotFound})
	}

	blob, err := h.blobs.Open(c.Context(), name)
	if err != nil {
		return fail(c, err)
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(blob.Data)
}
