package models

import "time"

type NotificationType string

const (
	NotificationMessage NotificationType = "message"
	NotificationOffer   NotificationType = "offer"
	NotificationSale    NotificationType = "sale"
	NotificationFollow  NotificationType = "follow"
	NotificationAdmin   NotificationType = "admin"
)

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	Type      NotificationType `gorm:"size:20;not null" json:"type"`
	Text      string           `gorm:"column:message;type:text;not null" json:"message"`
	IsRead    bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
