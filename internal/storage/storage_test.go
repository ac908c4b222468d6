package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"thriftly_backend/models"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMediaKind(t *testing.T) {
	tests := []struct {
		name      string
		mediaType string
		ok        bool
	}{
		{"photo.JPG", models.MediaImage, true},
		{"photo.png", models.MediaImage, true},
		{"clip.mp4", models.MediaVideo, true},
		{"clip.MOV", models.MediaVideo, true},
		{"notes.pdf", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mediaType, _, ok := MediaKind(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.mediaType, mediaType)
		})
	}
}

func TestNormalizeImage(t *testing.T) {
	small := pngBytes(t, 40, 20)
	out, resized, err := NormalizeImage(small, 100)
	require.NoError(t, err)
	assert.False(t, resized)
	assert.Equal(t, small, out)

	big := pngBytes(t, 200, 100)
	out, resized, err = NormalizeImage(big, 50)
	require.NoError(t, err)
	assert.True(t, resized)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)

	junk := []byte("not an image")
	out, resized, err = NormalizeImage(junk, 50)
	require.NoError(t, err)
	assert.False(t, resized)
	assert.Equal(t, junk, out)
}

func TestUploader_LocalStorage(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "/uploads/")
	require.NoError(t, err)
	u := NewUploader(store, 50, 1<<20)
	ctx := context.Background()

	url, mediaType, err := u.Upload(ctx, "products", "jacket.png", pngBytes(t, 200, 100), false)
	require.NoError(t, err)
	assert.Equal(t, models.MediaImage, mediaType)
	assert.True(t, strings.HasPrefix(url, "/uploads/products/"), url)
	assert.True(t, strings.HasSuffix(url, ".jpg"), "resized images are stored as jpeg")

	stored, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/")))
	require.NoError(t, err)
	assert.NotEmpty(t, stored)

	url, mediaType, err = u.Upload(ctx, "stories", "clip.mp4", []byte("fake video"), true)
	require.NoError(t, err)
	assert.Equal(t, models.MediaVideo, mediaType)
	assert.True(t, strings.HasSuffix(url, ".mp4"))

	_, _, err = u.Upload(ctx, "products", "clip.mp4", []byte("fake video"), false)
	assert.True(t, models.IsKind(err, models.KindValidation))
	_, _, err = u.Upload(ctx, "products", "x.exe", []byte("MZ"), true)
	assert.True(t, models.IsKind(err, models.KindValidation))
	_, _, err = u.Upload(ctx, "products", "x.png", nil, false)
	assert.True(t, models.IsKind(err, models.KindValidation))

	tiny := NewUploader(store, 0, 4)
	_, _, err = tiny.Upload(ctx, "products", "x.png", []byte("12345"), false)
	assert.True(t, models.IsKind(err, models.KindValidation))
}

func TestLocalStorage_KeysStayInsideDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "/uploads")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "../../etc/evil.txt", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/etc/evil.txt", url)
	_, err = os.Stat(filepath.Join(dir, "etc", "evil.txt"))
	assert.NoError(t, err)
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func TestS3Storage_Save(t *testing.T) {
	var body []byte
	client := new(mockS3)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "thriftly-media" &&
			*in.Key == "uploads/products/a.jpg" &&
			*in.ContentType == "image/jpeg"
	})).Run(func(args mock.Arguments) {
		body, _ = io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	store := NewS3StorageWithClient(client, "thriftly-media", "https://cdn.example.com/")
	url, err := store.Save(context.Background(), "products/a.jpg", "image/jpeg", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/uploads/products/a.jpg", url)
	assert.Equal(t, "data", string(body))
	client.AssertExpectations(t)

	client.On("PutObject", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()
	_, err = store.Save(context.Background(), "products/b.jpg", "image/jpeg", strings.NewReader("data"))
	assert.ErrorIs(t, err, assert.AnError)
}
