package handlers

import (
	"github.com/gofiber/fiber/v2"

	"thriftly_backend/internal/storage"
	"thriftly_backend/models"
)

// UploadHandler handles standalone media uploads.
type UploadHandler struct {
	uploader *storage.Uploader
}

func NewUploadHandler(uploader *storage.Uploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

// UploadImage - POST /api/uploads, multipart field "image". Returns the
// stored file's URL.
func (h *UploadHandler) UploadImage(c *fiber.Ctx) error {
	name, data, present, err := readUpload(c, "image")
	if err != nil {
		return err
	}
	if !present {
		return models.NewValidationError("Image file is required")
	}
	url, mediaType, err := h.uploader.Upload(c.UserContext(), "images", name, data, false)
	if err != nil {
		return err
	}
	return created(c, fiber.Map{"url": url, "media_type": mediaType})
}
