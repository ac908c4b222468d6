package handlers

import (
	"github.com/gofiber/fiber/v2"

	"thriftly_backend/internal/services"
)

// AdminHandler serves the moderation dashboard. Routes are mounted behind
// RequireAdmin.
type AdminHandler struct {
	users    *services.UserService
	products *services.ProductService
	orders   *services.OrderService
	reports  *services.ReportService
}

func NewAdminHandler(users *services.UserService, products *services.ProductService, orders *services.OrderService, reports *services.ReportService) *AdminHandler {
	return &AdminHandler{users: users, products: products, orders: orders, reports: reports}
}

func (h *AdminHandler) GetUsers(c *fiber.Ctx) error {
	users, err := h.users.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, users)
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.users.DeleteUser(c.UserContext(), id); err != nil {
		return err
	}
	return message(c, "User deleted")
}

func (h *AdminHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.products.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, products)
}

func (h *AdminHandler) GetOrders(c *fiber.Ctx) error {
	orders, err := h.orders.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, orders)
}

func (h *AdminHandler) GetReports(c *fiber.Ctx) error {
	reports, err := h.reports.List(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, reports)
}

func (h *AdminHandler) ResolveReport(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.reports.Resolve(c.UserContext(), id); err != nil {
		return err
	}
	return message(c, "Report resolved")
}
