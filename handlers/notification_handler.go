package handlers

import (
	"github.com/gofiber/fiber/v2"

	"thriftly_backend/internal/services"
	"thriftly_backend/middleware"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// GetNotifications - GET /api/notifications
func (h *NotificationHandler) GetNotifications(c *fiber.Ctx) error {
	list, err := h.notifications.ListFor(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, list)
}

// GetUnreadCount - GET /api/notifications/unread
func (h *NotificationHandler) GetUnreadCount(c *fiber.Ctx) error {
	count, err := h.notifications.UnreadCount(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"unread": count})
}

// MarkAllRead - PUT /api/notifications/read
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	if err := h.notifications.MarkAllRead(c.UserContext(), middleware.UserID(c)); err != nil {
		return err
	}
	return message(c, "Notifications marked as read")
}
