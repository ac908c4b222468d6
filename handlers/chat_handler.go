package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"thriftly_backend/internal/services"
	"thriftly_backend/internal/ws"
	"thriftly_backend/middleware"
	"thriftly_backend/models"
)

type ChatHandler struct {
	hub  *ws.Hub
	chat *services.ChatService

	perSecond float64
	burst     int
}

func NewChatHandler(hub *ws.Hub, chat *services.ChatService, perSecond float64, burst int) *ChatHandler {
	return &ChatHandler{hub: hub, chat: chat, perSecond: perSecond, burst: burst}
}

// WebSocketUpgradeMiddleware ensures the client is trying to upgrade to WebSocket
func (h *ChatHandler) WebSocketUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler returns the websocket handler function
func (h *ChatHandler) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		// user_id is copied from the upgrade request's locals by RequireAuth.
		userID, ok := c.Locals("user_id").(uint)
		if !ok || userID == 0 {
			slog.Warn("websocket connection without user id")
			c.Close()
			return
		}

		client := ws.NewClient(h.hub, c, userID, h.perSecond, h.burst)
		h.hub.Register(client)

		go client.WritePump()
		client.ReadPump(context.Background())
	})
}

// GetConversations - GET /api/chat/conversations
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	conversations, err := h.chat.ConversationsFor(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, conversations)
}

// GetMessages - GET /api/chat/:room/messages. Only the room's two
// participants may read it.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	productID, a, b, err := models.ParseRoomID(c.Params("room"))
	if err != nil {
		return err
	}
	userID := middleware.UserID(c)
	if userID != a && userID != b {
		return models.NewForbiddenError("You are not part of this conversation")
	}
	messages, err := h.chat.History(c.UserContext(), a, b, productID)
	if err != nil {
		return err
	}
	return ok(c, messages)
}

// GetOnlineStatus - GET /api/users/:id/online
func (h *ChatHandler) GetOnlineStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"user_id": id, "online": h.hub.IsUserOnline(id)})
}
