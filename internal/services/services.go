// Package services holds the marketplace domain logic. Handlers call into it
// and it talks to the database through gorm.
package services

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"thriftly_backend/models"
)

// Publisher pushes realtime events to connected clients.
type Publisher interface {
	PublishUser(ctx context.Context, userID uint, event string, data interface{}) error
	Broadcast(ctx context.Context, event string, data interface{}) error
}

// Mailer queues an outgoing plain-text email.
type Mailer interface {
	EnqueueEmail(ctx context.Context, to, subject, body string) error
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// lookupError turns a failed single-row lookup into NotFound or Storage.
func lookupError(err error, entity, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(entity)
	}
	return models.NewStorageError(op, err)
}

func exists(db *gorm.DB, model interface{}, id uint) (bool, error) {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func sendMail(ctx context.Context, m Mailer, to, subject, body string) {
	if m == nil || to == "" {
		return
	}
	if err := m.EnqueueEmail(ctx, to, subject, body); err != nil {
		slog.Warn("failed to queue email", "to", to, "subject", subject, "error", err)
	}
}
