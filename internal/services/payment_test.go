package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thriftly_backend/internal/metrics"
	"thriftly_backend/internal/testutil"
	"thriftly_backend/models"
)

type paymentFixture struct {
	env      *testEnv
	svc      *PaymentService
	products *ProductService
	seller   *models.User
	buyer    *models.User
	item     *models.Product
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	env := newTestEnv(t)
	products := NewProductService(env.db)
	orders := NewOrderService(env.db, env.notifications, env.mailer, metrics.Nop{})
	svc := NewPaymentService(env.db, EsewaSettings{
		FormURL:     "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
		ProductCode: "EPAYTEST",
		SecretKey:   "8gBm/:&EnhH.1/q",
		SuccessURL:  "http://localhost:5000/api/payments/esewa/success",
		FailureURL:  "http://localhost:5000/api/payments/esewa/failure",
	}, orders, products, decimal.NewFromInt(100), 7, metrics.Nop{})

	seller := testutil.CreateUser(t, env.db, "alice")
	buyer := testutil.CreateUser(t, env.db, "bob")
	return &paymentFixture{
		env:      env,
		svc:      svc,
		products: products,
		seller:   seller,
		buyer:    buyer,
		item:     testutil.CreateProduct(t, env.db, seller.ID, "Denim Jacket", 1000),
	}
}

// callback builds the base64 payload the gateway appends to the success URL.
func (f *paymentFixture) callback(t *testing.T, fields map[string]string) string {
	t.Helper()
	signed := "transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names"
	fields["product_code"] = "EPAYTEST"
	fields["signed_field_names"] = signed
	fields["signature"] = f.svc.Sign(signingMessage(signed, fields))
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestPaymentService_SignKnownVector(t *testing.T) {
	f := newPaymentFixture(t)
	got := f.svc.Sign("total_amount=100,transaction_uuid=11-201-13,product_code=EPAYTEST")
	assert.Equal(t, "5DZywcrTKD0gia/rsSMcrRHmJl+4Tbol6S+lWgdJ94E=", got)
}

func TestPaymentService_CheckoutSignsForm(t *testing.T) {
	f := newPaymentFixture(t)
	form, err := f.svc.Checkout(context.Background(), f.buyer.ID, f.item.ID, models.PaymentPurchase)
	require.NoError(t, err)

	assert.Equal(t, "1000.00", form.Fields["total_amount"])
	assert.Equal(t, form.TransactionUUID, form.Fields["transaction_uuid"])
	want := f.svc.Sign("total_amount=1000.00,transaction_uuid=" + form.TransactionUUID + ",product_code=EPAYTEST")
	assert.Equal(t, want, form.Fields["signature"])
	assert.Equal(t, "http://localhost:5000/api/payments/esewa/failure?transaction_uuid="+form.TransactionUUID, form.Fields["failure_url"])

	var p models.Payment
	require.NoError(t, f.env.db.Where("transaction_uuid = ?", form.TransactionUUID).First(&p).Error)
	assert.Equal(t, models.PaymentPending, p.Status)
}

func TestPaymentService_CheckoutGuards(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, f.seller.ID, f.item.ID, models.PaymentPurchase)
	assert.True(t, models.IsKind(err, models.KindConflict))
	_, err = f.svc.Checkout(ctx, f.buyer.ID, f.item.ID, models.PaymentBoost)
	assert.True(t, models.IsKind(err, models.KindForbidden))
	_, err = f.svc.Checkout(ctx, f.buyer.ID, f.item.ID, "gift")
	assert.True(t, models.IsKind(err, models.KindValidation))
	_, err = f.svc.Checkout(ctx, f.buyer.ID, 999, models.PaymentPurchase)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestPaymentService_PurchaseRoundTrip(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	form, err := f.svc.Checkout(ctx, f.buyer.ID, f.item.ID, models.PaymentPurchase)
	require.NoError(t, err)

	data := f.callback(t, map[string]string{
		"transaction_code": "000AWEO",
		"status":           "COMPLETE",
		"total_amount":     "1,000.0",
		"transaction_uuid": form.TransactionUUID,
	})

	payment, err := f.svc.CompleteFromCallback(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentComplete, payment.Status)
	assert.Equal(t, "000AWEO", payment.GatewayRef)

	var order models.Order
	require.NoError(t, f.env.db.Where("product_id = ?", f.item.ID).First(&order).Error)
	assert.Equal(t, f.buyer.ID, order.BuyerID)
	assert.Equal(t, form.TransactionUUID, order.TransactionUUID)

	replay, err := f.svc.CompleteFromCallback(ctx, data)
	require.NoError(t, err, "replayed callback is a no-op")
	assert.Equal(t, models.PaymentComplete, replay.Status)

	var orders int64
	require.NoError(t, f.env.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)

	got, err := f.svc.Get(ctx, f.buyer.ID, form.TransactionUUID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentComplete, got.Status)
	_, err = f.svc.Get(ctx, f.seller.ID, form.TransactionUUID)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestPaymentService_BoostRoundTrip(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	form, err := f.svc.Checkout(ctx, f.seller.ID, f.item.ID, models.PaymentBoost)
	require.NoError(t, err)
	assert.Equal(t, "100.00", form.Fields["total_amount"])

	_, err = f.svc.CompleteFromCallback(ctx, f.callback(t, map[string]string{
		"transaction_code": "000BOOST",
		"status":           "COMPLETE",
		"total_amount":     "100.0",
		"transaction_uuid": form.TransactionUUID,
	}))
	require.NoError(t, err)

	var p models.Product
	require.NoError(t, f.env.db.First(&p, f.item.ID).Error)
	require.NotNil(t, p.BoostedUntil)
	assert.True(t, p.BoostedUntil.After(time.Now().Add(6*24*time.Hour)))
	assert.False(t, p.IsSold)
}

func TestPaymentService_RejectsBadCallbacks(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	form, err := f.svc.Checkout(ctx, f.buyer.ID, f.item.ID, models.PaymentPurchase)
	require.NoError(t, err)

	_, err = f.svc.CompleteFromCallback(ctx, "not base64 !!")
	assert.True(t, models.IsKind(err, models.KindValidation))

	tampered := map[string]string{
		"transaction_code": "000X",
		"status":           "COMPLETE",
		"total_amount":     "1000.0",
		"transaction_uuid": form.TransactionUUID,
	}
	data := f.callback(t, tampered)
	raw, _ := base64.StdEncoding.DecodeString(data)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	decoded["total_amount"] = "1.0"
	raw, _ = json.Marshal(decoded)
	_, err = f.svc.CompleteFromCallback(ctx, base64.StdEncoding.EncodeToString(raw))
	assert.Equal(t, "Invalid payment signature", errMessage(err))

	_, err = f.svc.CompleteFromCallback(ctx, f.callback(t, map[string]string{
		"transaction_code": "000Y",
		"status":           "COMPLETE",
		"total_amount":     "10.0",
		"transaction_uuid": form.TransactionUUID,
	}))
	assert.Equal(t, "Payment amount does not match", errMessage(err))

	var p models.Payment
	require.NoError(t, f.env.db.Where("transaction_uuid = ?", form.TransactionUUID).First(&p).Error)
	assert.Equal(t, models.PaymentPending, p.Status)
}

func TestPaymentService_FailedCallback(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	form, err := f.svc.Checkout(ctx, f.buyer.ID, f.item.ID, models.PaymentPurchase)
	require.NoError(t, err)

	_, err = f.svc.CompleteFromCallback(ctx, f.callback(t, map[string]string{
		"transaction_code": "000Z",
		"status":           "CANCELED",
		"total_amount":     "1000.0",
		"transaction_uuid": form.TransactionUUID,
	}))
	assert.Equal(t, "Payment was not completed", errMessage(err))

	_, err = f.svc.CompleteFromCallback(ctx, f.callback(t, map[string]string{
		"transaction_code": "000Z",
		"status":           "COMPLETE",
		"total_amount":     "1000.0",
		"transaction_uuid": form.TransactionUUID,
	}))
	assert.True(t, models.IsKind(err, models.KindConflict), "failed payments stay failed")

	var p models.Product
	require.NoError(t, f.env.db.First(&p, f.item.ID).Error)
	assert.False(t, p.IsSold)
}

func TestPaymentService_SoldBetweenCheckoutAndCallback(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	carol := testutil.CreateUser(t, f.env.db, "carol")

	form, err := f.svc.Checkout(ctx, f.buyer.ID, f.item.ID, models.PaymentPurchase)
	require.NoError(t, err)

	_, err = f.svc.orders.Purchase(ctx, carol.ID, f.item.ID, "")
	require.NoError(t, err)

	data := f.callback(t, map[string]string{
		"transaction_code": "000LATE",
		"status":           "COMPLETE",
		"total_amount":     "1000.0",
		"transaction_uuid": form.TransactionUUID,
	})
	_, err = f.svc.CompleteFromCallback(ctx, data)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConflict))

	var p models.Payment
	require.NoError(t, f.env.db.Where("transaction_uuid = ?", form.TransactionUUID).First(&p).Error)
	assert.Equal(t, models.PaymentRefundRequired, p.Status)
	assert.Equal(t, "000LATE", p.GatewayRef)

	_, err = f.svc.CompleteFromCallback(ctx, data)
	assert.True(t, models.IsKind(err, models.KindConflict), "replay must not report success")

	var bobOrders int64
	require.NoError(t, f.env.db.Model(&models.Order{}).Where("buyer_id = ?", f.buyer.ID).Count(&bobOrders).Error)
	assert.Zero(t, bobOrders)

	var order models.Order
	require.NoError(t, f.env.db.Where("product_id = ?", f.item.ID).First(&order).Error)
	assert.Equal(t, carol.ID, order.BuyerID)
}
