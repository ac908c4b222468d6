// Package storage saves uploaded media to local disk or S3.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"thriftly_backend/models"
)

// Storage persists an object and returns its public URL.
type Storage interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// MediaKind classifies a filename by extension. ok is false for anything
// that is neither an image nor a video.
func MediaKind(filename string) (mediaType, contentType string, ok bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, found := imageTypes[ext]; found {
		return models.MediaImage, ct, true
	}
	if ct, found := videoTypes[ext]; found {
		return models.MediaVideo, ct, true
	}
	return "", "", false
}

// NormalizeImage shrinks images larger than maxDim on either side and
// re-encodes them as JPEG. Smaller images and formats the decoder does not
// know are returned unchanged.
func NormalizeImage(data []byte, maxDim uint) ([]byte, bool, error) {
	if maxDim == 0 {
		return data, false, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return data, false, nil
	}
	if uint(cfg.Width) <= maxDim && uint(cfg.Height) <= maxDim {
		return data, false, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image: %w", err)
	}
	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, false, fmt.Errorf("failed to re-encode resized image: %w", err)
	}
	return buf.Bytes(), true, nil
}

// Uploader validates uploads and stores them under a random name.
type Uploader struct {
	store    Storage
	maxDim   uint
	maxBytes int64
}

func NewUploader(store Storage, maxDim uint, maxBytes int64) *Uploader {
	return &Uploader{store: store, maxDim: maxDim, maxBytes: maxBytes}
}

// Upload stores data under folder and returns its URL and media type.
func (u *Uploader) Upload(ctx context.Context, folder, filename string, data []byte, allowVideo bool) (string, string, error) {
	if len(data) == 0 {
		return "", "", models.NewValidationError("No file provided")
	}
	if u.maxBytes > 0 && int64(len(data)) > u.maxBytes {
		return "", "", models.NewValidationError("File is too large")
	}
	mediaType, contentType, ok := MediaKind(filename)
	if !ok || (mediaType == models.MediaVideo && !allowVideo) {
		if allowVideo {
			return "", "", models.NewValidationError("Only images and videos are allowed")
		}
		return "", "", models.NewValidationError("Only images are allowed")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if mediaType == models.MediaImage {
		out, resized, err := NormalizeImage(data, u.maxDim)
		if err != nil {
			return "", "", models.NewValidationError("Unsupported or corrupt image")
		}
		if resized {
			data, contentType, ext = out, "image/jpeg", ".jpg"
		}
	}

	key := fmt.Sprintf("%s/%s%s", strings.Trim(folder, "/"), uuid.NewString(), ext)
	url, err := u.store.Save(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		return "", "", models.NewStorageError("save upload", err)
	}
	return url, mediaType, nil
}
