package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"thriftly_backend/internal/metrics"
	"thriftly_backend/models"
)

const (
	esewaStatusComplete = "COMPLETE"
	esewaSignedFields   = "total_amount,transaction_uuid,product_code"
)

// EsewaSettings configures the redirect-based gateway.
type EsewaSettings struct {
	FormURL     string
	ProductCode string
	SecretKey   string
	SuccessURL  string
	FailureURL  string
}

// CheckoutForm is what the browser posts to the gateway.
type CheckoutForm struct {
	Action          string            `json:"action"`
	TransactionUUID string            `json:"transaction_uuid"`
	Fields          map[string]string `json:"fields"`
}

// PaymentService runs purchases and boosts through the payment gateway.
type PaymentService struct {
	db         *gorm.DB
	esewa      EsewaSettings
	orders     *OrderService
	products   *ProductService
	boostPrice decimal.Decimal
	boostDays  int
	metrics    metrics.Recorder
}

func NewPaymentService(db *gorm.DB, esewa EsewaSettings, orders *OrderService, products *ProductService, boostPrice decimal.Decimal, boostDays int, rec metrics.Recorder) *PaymentService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &PaymentService{
		db:         db,
		esewa:      esewa,
		orders:     orders,
		products:   products,
		boostPrice: boostPrice,
		boostDays:  boostDays,
		metrics:    rec,
	}
}

// Sign returns base64(HMAC-SHA256(secret, message)).
func (s *PaymentService) Sign(message string) string {
	mac := hmac.New(sha256.New, []byte(s.esewa.SecretKey))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Checkout records a pending payment and returns the signed gateway form.
func (s *PaymentService) Checkout(ctx context.Context, userID, productID uint, purpose string) (*CheckoutForm, error) {
	db := s.db.WithContext(ctx)

	var product models.Product
	if err := db.First(&product, productID).Error; err != nil {
		return nil, lookupError(err, "Product", "load product")
	}
	if product.IsSold {
		return nil, models.NewConflictError("Product is already sold")
	}

	var amount decimal.Decimal
	switch purpose {
	case models.PaymentPurchase:
		if product.SellerID == userID {
			return nil, models.NewConflictError("You cannot buy your own product")
		}
		amount = product.Price
		offered, ok, err := acceptedPrice(db, userID, productID)
		if err != nil {
			return nil, models.NewStorageError("load accepted offer", err)
		}
		if ok {
			amount = offered
		}
	case models.PaymentBoost:
		if product.SellerID != userID {
			return nil, models.NewForbiddenError("You can only boost your own listings")
		}
		amount = s.boostPrice
	default:
		return nil, models.NewValidationError("Unknown payment purpose")
	}

	payment := &models.Payment{
		TransactionUUID: fmt.Sprintf("THRIFTLY-%s-%d", uuid.NewString(), productID),
		UserID:          userID,
		ProductID:       productID,
		Purpose:         purpose,
		Amount:          amount,
		Status:          models.PaymentPending,
	}
	if err := db.Create(payment).Error; err != nil {
		return nil, models.NewStorageError("create payment", err)
	}

	total := amount.StringFixed(2)
	fields := map[string]string{
		"amount":                  total,
		"tax_amount":              "0",
		"total_amount":            total,
		"transaction_uuid":        payment.TransactionUUID,
		"product_code":            s.esewa.ProductCode,
		"product_service_charge":  "0",
		"product_delivery_charge": "0",
		"success_url":             s.esewa.SuccessURL,
		"failure_url":             withQuery(s.esewa.FailureURL, "transaction_uuid", payment.TransactionUUID),
		"signed_field_names":      esewaSignedFields,
	}
	fields["signature"] = s.Sign(signingMessage(esewaSignedFields, fields))

	return &CheckoutForm{
		Action:          s.esewa.FormURL,
		TransactionUUID: payment.TransactionUUID,
		Fields:          fields,
	}, nil
}

func withQuery(rawURL, key, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + url.QueryEscape(value)
}

// signingMessage joins "name=value" pairs for the listed fields with commas.
func signingMessage(signedFields string, values map[string]string) string {
	names := strings.Split(signedFields, ",")
	parts := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		parts = append(parts, name+"="+values[name])
	}
	return strings.Join(parts, ",")
}

// DecodeCallback decodes and verifies the base64 JSON payload the gateway
// appends to the success URL.
func (s *PaymentService) DecodeCallback(data string) (map[string]string, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(data); err != nil {
			return nil, models.NewValidationError("Malformed payment response")
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic map[string]interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, models.NewValidationError("Malformed payment response")
	}
	values := make(map[string]string, len(generic))
	for k, v := range generic {
		values[k] = fmt.Sprint(v)
	}

	signedFields := values["signed_field_names"]
	if signedFields == "" || values["signature"] == "" {
		return nil, models.NewValidationError("Payment response is not signed")
	}
	expected := s.Sign(signingMessage(signedFields, values))
	if !hmac.Equal([]byte(expected), []byte(values["signature"])) {
		return nil, models.NewValidationError("Invalid payment signature")
	}
	return values, nil
}

var errPaymentSettled = errors.New("payment already settled")

// CompleteFromCallback settles a payment from a verified gateway response.
// Claiming the payment and creating the order or activating the boost commit
// together. When fulfilment is refused the payment is parked as
// refund_required. Replaying the callback of a completed payment is a no-op.
func (s *PaymentService) CompleteFromCallback(ctx context.Context, data string) (*models.Payment, error) {
	values, err := s.DecodeCallback(data)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var payment models.Payment
	if err := db.Where("transaction_uuid = ?", values["transaction_uuid"]).First(&payment).Error; err != nil {
		return nil, lookupError(err, "Payment", "load payment")
	}

	if values["status"] != esewaStatusComplete {
		if err := s.Fail(ctx, payment.TransactionUUID); err != nil {
			return nil, err
		}
		return nil, models.NewValidationError("Payment was not completed")
	}

	switch payment.Status {
	case models.PaymentComplete:
		return &payment, nil
	case models.PaymentFailed:
		return nil, models.NewConflictError("Payment already failed")
	case models.PaymentRefundRequired:
		return nil, models.NewConflictError("Payment could not be fulfilled and needs a refund")
	}

	paid, err := decimal.NewFromString(strings.ReplaceAll(values["total_amount"], ",", ""))
	if err != nil || !paid.Equal(payment.Amount) {
		return nil, models.NewValidationError("Payment amount does not match")
	}

	ref := values["transaction_code"]
	var order *models.Order
	var sold *models.Product
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
			Updates(map[string]interface{}{"status": models.PaymentComplete, "gateway_ref": ref})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errPaymentSettled
		}

		var err error
		switch payment.Purpose {
		case models.PaymentPurchase:
			order, sold, err = purchaseTx(tx, payment.UserID, payment.ProductID, payment.TransactionUUID)
		case models.PaymentBoost:
			_, err = activateBoostTx(tx, payment.ProductID, s.boostDays, s.products.now())
		}
		return err
	})

	switch {
	case errors.Is(err, errPaymentSettled):
		// Another callback got there first.
		if err := db.First(&payment, payment.ID).Error; err != nil {
			return nil, lookupError(err, "Payment", "load payment")
		}
		if payment.Status != models.PaymentComplete {
			return nil, models.NewConflictError("Payment could not be fulfilled and needs a refund")
		}
		return &payment, nil
	case err == nil:
	case models.KindOf(err) != "" && !models.IsKind(err, models.KindStorage):
		s.requireRefund(ctx, &payment, ref, err)
		return nil, err
	default:
		// Rolled back; the payment stays pending so the gateway can retry.
		return nil, txError(err, "complete payment")
	}

	payment.Status = models.PaymentComplete
	payment.GatewayRef = ref
	s.metrics.Payment(payment.Purpose, payment.Status)
	if order != nil {
		s.orders.afterPurchase(ctx, order, sold)
	}
	return &payment, nil
}

// requireRefund parks a paid but unfulfillable payment for manual refund.
func (s *PaymentService) requireRefund(ctx context.Context, payment *models.Payment, ref string, cause error) {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
		Updates(map[string]interface{}{"status": models.PaymentRefundRequired, "gateway_ref": ref})
	if res.Error != nil {
		slog.Error("failed to flag payment for refund",
			"transaction_uuid", payment.TransactionUUID, "error", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		s.metrics.Payment(payment.Purpose, models.PaymentRefundRequired)
	}
	slog.Warn("payment captured but not fulfilled",
		"transaction_uuid", payment.TransactionUUID, "purpose", payment.Purpose, "error", cause)
}

// Fail marks a pending payment failed.
func (s *PaymentService) Fail(ctx context.Context, txnUUID string) error {
	var payment models.Payment
	db := s.db.WithContext(ctx)
	if err := db.Where("transaction_uuid = ?", txnUUID).First(&payment).Error; err != nil {
		return lookupError(err, "Payment", "load payment")
	}
	res := db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
		Update("status", models.PaymentFailed)
	if res.Error != nil {
		return models.NewStorageError("fail payment", res.Error)
	}
	if res.RowsAffected > 0 {
		s.metrics.Payment(payment.Purpose, models.PaymentFailed)
	}
	return nil
}

// Get returns the user's own payment.
func (s *PaymentService) Get(ctx context.Context, userID uint, txnUUID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where("transaction_uuid = ? AND user_id = ?", txnUUID, userID).
		First(&payment).Error
	if err != nil {
		return nil, lookupError(err, "Payment", "load payment")
	}
	return &payment, nil
}
