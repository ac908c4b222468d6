package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"thriftly_backend/internal/metrics"
	"thriftly_backend/internal/ws"
	"thriftly_backend/models"
)

// NotificationService persists notifications and pushes them live to the
// addressed user. Live delivery is best effort; the stored row is what a
// client can always list.
type NotificationService struct {
	db        *gorm.DB
	publisher Publisher
	metrics   metrics.Recorder
}

func NewNotificationService(db *gorm.DB, publisher Publisher, rec metrics.Recorder) *NotificationService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &NotificationService{db: db, publisher: publisher, metrics: rec}
}

// Create stores an unread notification and then publishes it on the user's
// topic. Nothing is published if the insert fails.
func (s *NotificationService) Create(ctx context.Context, userID uint, kind models.NotificationType, text string) (*models.Notification, error) {
	n := &models.Notification{
		UserID: userID,
		Type:   kind,
		Text:   text,
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, models.NewStorageError("create notification", err)
	}
	s.metrics.Notification(string(kind))

	if s.publisher != nil {
		if err := s.publisher.PublishUser(ctx, userID, ws.NotificationEvent(userID), n); err != nil {
			slog.Warn("notification push failed", "user_id", userID, "notification_id", n.ID, "error", err)
		}
	}
	return n, nil
}

// Notify is Create for side effects: failures are logged and dropped.
func (s *NotificationService) Notify(ctx context.Context, userID uint, kind models.NotificationType, text string) {
	if _, err := s.Create(ctx, userID, kind, text); err != nil {
		slog.Warn("notification dropped", "user_id", userID, "type", kind, "error", err)
	}
}

// NotifyMessage tells the receiver of msg that a new chat message arrived.
func (s *NotificationService) NotifyMessage(ctx context.Context, msg *models.Message) error {
	db := s.db.WithContext(ctx)

	var sender models.User
	if err := db.Select("id", "username").First(&sender, msg.SenderID).Error; err != nil {
		return lookupError(err, "User", "load message sender")
	}
	var product models.Product
	if err := db.Select("id", "title").First(&product, msg.ProductID).Error; err != nil {
		return lookupError(err, "Product", "load message product")
	}

	_, err := s.Create(ctx, msg.ReceiverID, models.NotificationMessage, MessageText(sender.Username, product.Title))
	return err
}

// ListFor returns the user's notifications, newest first.
func (s *NotificationService) ListFor(ctx context.Context, userID uint) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, models.NewStorageError("list notifications", err)
	}
	return notifications, nil
}

// MarkAllRead flips every unread notification of userID to read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
	if err != nil {
		return models.NewStorageError("mark notifications read", err)
	}
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, models.NewStorageError("count notifications", err)
	}
	return count, nil
}

// Notification texts.

func MessageText(sender, product string) string {
	return fmt.Sprintf("%s sent you a message about %s", sender, product)
}

func OfferCreatedText(buyer, product string, amount decimal.Decimal) string {
	return fmt.Sprintf("%s offered Rs.%s for %s", buyer, amount.StringFixed(2), product)
}

func OfferAcceptedText(product string, amount decimal.Decimal) string {
	return fmt.Sprintf("Your offer of Rs.%s for %s was accepted", amount.StringFixed(2), product)
}

func OfferRejectedText(product string, amount decimal.Decimal) string {
	return fmt.Sprintf("Your offer of Rs.%s for %s was rejected", amount.StringFixed(2), product)
}

func SaleText(buyer, product string) string {
	return fmt.Sprintf("%s bought your item %s", buyer, product)
}

func OrderStatusText(product, status string) string {
	return fmt.Sprintf("Your order for %s is now %s", product, status)
}

func FollowText(follower string) string {
	return fmt.Sprintf("%s started following you", follower)
}

func CommentText(commenter string) string {
	return fmt.Sprintf("%s commented on your story", commenter)
}

func ReportText(reporter, reason string) string {
	return fmt.Sprintf("%s reported a story: %s", reporter, reason)
}
