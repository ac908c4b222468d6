package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"thriftly_backend/internal/services"
	"thriftly_backend/internal/storage"
	"thriftly_backend/middleware"
	"thriftly_backend/models"
)

type ProductHandler struct {
	products *services.ProductService
	orders   *services.OrderService
	offers   *services.OfferService
	wishlist *services.WishlistService
	uploader *storage.Uploader
}

func NewProductHandler(products *services.ProductService, orders *services.OrderService, offers *services.OfferService, wishlist *services.WishlistService, uploader *storage.Uploader) *ProductHandler {
	return &ProductHandler{
		products: products,
		orders:   orders,
		offers:   offers,
		wishlist: wishlist,
		uploader: uploader,
	}
}

type OfferRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// productInput reads the listing fields of a multipart form. The image is
// uploaded only when present.
func (h *ProductHandler) productInput(c *fiber.Ctx) (services.ProductInput, error) {
	in := services.ProductInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Category:    c.FormValue("category"),
		Size:        c.FormValue("size"),
		Condition:   c.FormValue("condition"),
	}
	price, err := decimal.NewFromString(strings.TrimSpace(c.FormValue("price")))
	if err != nil {
		return in, models.NewValidationError("Invalid price")
	}
	in.Price = price

	name, data, present, err := readUpload(c, "image")
	if err != nil {
		return in, err
	}
	if present {
		url, _, err := h.uploader.Upload(c.UserContext(), "products", name, data, false)
		if err != nil {
			return in, err
		}
		in.ImageURL = url
	}
	return in, nil
}

// GetProducts - GET /api/products?category=&size=&condition=&q=&sort=&page=&limit=
func (h *ProductHandler) GetProducts(c *fiber.Ctx) error {
	filter := services.ProductFilter{
		Category:  c.Query("category"),
		Size:      c.Query("size"),
		Condition: c.Query("condition"),
		Query:     strings.TrimSpace(c.Query("q")),
		Sort:      c.Query("sort", services.SortNewest),
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", 0),
	}
	products, meta, err := h.products.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(models.SuccessResponse(products, meta))
}

// GetProduct - GET /api/products/:id
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	product, err := h.products.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, product)
}

// CreateProduct - POST /api/products (multipart, image required)
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	in, err := h.productInput(c)
	if err != nil {
		return err
	}
	product, err := h.products.Create(c.UserContext(), middleware.UserID(c), in)
	if err != nil {
		return err
	}
	return created(c, product)
}

// UpdateProduct - PUT /api/products/:id (multipart, image optional)
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	in, err := h.productInput(c)
	if err != nil {
		return err
	}
	product, err := h.products.Update(c.UserContext(), middleware.UserID(c), id, in)
	if err != nil {
		return err
	}
	return ok(c, product)
}

// DeleteProduct - DELETE /api/products/:id
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.products.Delete(c.UserContext(), middleware.UserID(c), middleware.IsAdmin(c), id); err != nil {
		return err
	}
	return message(c, "Product deleted")
}

// GetMyProducts - GET /api/me/products
func (h *ProductHandler) GetMyProducts(c *fiber.Ctx) error {
	products, err := h.products.ListBySeller(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, products)
}

// BuyProduct - POST /api/products/:id/buy. Records the order without going
// through the payment gateway.
func (h *ProductHandler) BuyProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.orders.Purchase(c.UserContext(), middleware.UserID(c), id, "")
	if err != nil {
		return err
	}
	return created(c, order)
}

// MakeOffer - POST /api/products/:id/offers
func (h *ProductHandler) MakeOffer(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req OfferRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	offer, err := h.offers.Create(c.UserContext(), middleware.UserID(c), id, req.Amount)
	if err != nil {
		return err
	}
	return created(c, offer)
}

// ToggleWishlist - POST /api/products/:id/wishlist
func (h *ProductHandler) ToggleWishlist(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	saved, err := h.wishlist.Toggle(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"saved": saved})
}
