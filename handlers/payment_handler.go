package handlers

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"thriftly_backend/internal/services"
	"thriftly_backend/middleware"
)

type PaymentHandler struct {
	payments    *services.PaymentService
	frontendURL string
}

func NewPaymentHandler(payments *services.PaymentService, frontendURL string) *PaymentHandler {
	return &PaymentHandler{payments: payments, frontendURL: strings.TrimRight(frontendURL, "/")}
}

type CheckoutRequest struct {
	ProductID uint   `json:"product_id"`
	Purpose   string `json:"purpose"`
}

// Checkout - POST /api/payments/checkout. Returns the signed form the browser
// posts to the gateway.
func (h *PaymentHandler) Checkout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	form, err := h.payments.Checkout(c.UserContext(), middleware.UserID(c), req.ProductID, req.Purpose)
	if err != nil {
		return err
	}
	return created(c, form)
}

func (h *PaymentHandler) redirect(c *fiber.Ctx, path string, query url.Values) error {
	return c.Redirect(h.frontendURL+path+"?"+query.Encode(), fiber.StatusSeeOther)
}

// EsewaSuccess - GET /api/payments/esewa/success?data=. The gateway sends the
// browser here after payment.
func (h *PaymentHandler) EsewaSuccess(c *fiber.Ctx) error {
	payment, err := h.payments.CompleteFromCallback(c.UserContext(), c.Query("data"))
	if err != nil {
		return h.redirect(c, "/payment/failure", url.Values{"reason": {clientMessage(err)}})
	}
	return h.redirect(c, "/payment/success", url.Values{
		"transaction_uuid": {payment.TransactionUUID},
		"purpose":          {payment.Purpose},
	})
}

// EsewaFailure - GET /api/payments/esewa/failure?transaction_uuid=
func (h *PaymentHandler) EsewaFailure(c *fiber.Ctx) error {
	txn := c.Query("transaction_uuid")
	if txn != "" {
		if err := h.payments.Fail(c.UserContext(), txn); err != nil {
			return h.redirect(c, "/payment/failure", url.Values{"reason": {clientMessage(err)}})
		}
	}
	return h.redirect(c, "/payment/failure", url.Values{"transaction_uuid": {txn}})
}

// GetPayment - GET /api/payments/:uuid
func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	payment, err := h.payments.Get(c.UserContext(), middleware.UserID(c), c.Params("uuid"))
	if err != nil {
		return err
	}
	return ok(c, payment)
}
