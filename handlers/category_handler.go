package handlers

import (
	"github.com/gofiber/fiber/v2"

	"thriftly_backend/internal/services"
)

type CategoryHandler struct {
	categories *services.CategoryService
}

func NewCategoryHandler(categories *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// GetCategories - GET /api/categories
func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.categories.List(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, categories)
}
