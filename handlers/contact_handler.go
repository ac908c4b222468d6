package handlers

import (
	"github.com/gofiber/fiber/v2"

	"thriftly_backend/internal/services"
)

type ContactHandler struct {
	contact *services.ContactService
}

func NewContactHandler(contact *services.ContactService) *ContactHandler {
	return &ContactHandler{contact: contact}
}

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// SendMessage - POST /api/contact
func (h *ContactHandler) SendMessage(c *fiber.Ctx) error {
	var req ContactRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.contact.Send(c.UserContext(), req.Name, req.Email, req.Message); err != nil {
		return err
	}
	return message(c, "Message sent")
}
