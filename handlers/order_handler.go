package handlers

import (
	"github.com/gofiber/fiber/v2"

	"thriftly_backend/internal/services"
	"thriftly_backend/middleware"
)

type OrderHandler struct {
	orders *services.OrderService
	offers *services.OfferService
}

func NewOrderHandler(orders *services.OrderService, offers *services.OfferService) *OrderHandler {
	return &OrderHandler{orders: orders, offers: offers}
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

type RespondOfferRequest struct {
	Accept bool `json:"accept"`
}

// GetMyOrders - GET /api/orders
func (h *OrderHandler) GetMyOrders(c *fiber.Ctx) error {
	orders, err := h.orders.ListForBuyer(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, orders)
}

// GetMySales - GET /api/orders/sales
func (h *OrderHandler) GetMySales(c *fiber.Ctx) error {
	orders, err := h.orders.ListForSeller(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, orders)
}

// UpdateStatus - PUT /api/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req OrderStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	order, err := h.orders.UpdateStatus(c.UserContext(), middleware.UserID(c), id, req.Status)
	if err != nil {
		return err
	}
	return ok(c, order)
}

// GetReceivedOffers - GET /api/offers/received
func (h *OrderHandler) GetReceivedOffers(c *fiber.Ctx) error {
	offers, err := h.offers.ListReceived(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, offers)
}

// GetSentOffers - GET /api/offers/sent
func (h *OrderHandler) GetSentOffers(c *fiber.Ctx) error {
	offers, err := h.offers.ListSent(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, offers)
}

// RespondOffer - PUT /api/offers/:id
func (h *OrderHandler) RespondOffer(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req RespondOfferRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	offer, err := h.offers.Respond(c.UserContext(), middleware.UserID(c), id, req.Accept)
	if err != nil {
		return err
	}
	return ok(c, offer)
}
