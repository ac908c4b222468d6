package services

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"thriftly_backend/internal/metrics"
	"thriftly_backend/internal/testutil"
	"thriftly_backend/models"
)

func TestOrderService_Purchase(t *testing.T) {
	env := newTestEnv(t)
	svc := NewOrderService(env.db, env.notifications, env.mailer, metrics.Nop{})
	ctx := context.Background()

	seller := testutil.CreateUser(t, env.db, "alice")
	buyer := testutil.CreateUser(t, env.db, "bob")
	item := testutil.CreateProduct(t, env.db, seller.ID, "Denim Jacket", 1000)

	order, err := svc.Purchase(ctx, buyer.ID, item.ID, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderCreated, order.Status)
	assert.Equal(t, seller.ID, order.SellerID)
	assert.True(t, order.Amount.Equal(decimal.NewFromInt(1000)))

	var stored models.Product
	require.NoError(t, env.db.First(&stored, item.ID).Error)
	assert.True(t, stored.IsSold)

	notes := env.notificationsFor(t, seller.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationSale, notes[0].Type)
	assert.Equal(t, "bob bought your item Denim Jacket", notes[0].Text)

	env.mailer.AssertCalled(t, "EnqueueEmail", mock.Anything, "alice@example.com", "🎉 Item Sold!", mock.Anything)

	_, err = svc.Purchase(ctx, buyer.ID, item.ID, "txn-2")
	assert.True(t, models.IsKind(err, models.KindConflict))
}

func TestOrderService_PurchaseUsesAcceptedOffer(t *testing.T) {
	env := newTestEnv(t)
	offers := NewOfferService(env.db, env.notifications)
	svc := NewOrderService(env.db, env.notifications, env.mailer, metrics.Nop{})
	ctx := context.Background()

	seller := testutil.CreateUser(t, env.db, "alice")
	buyer := testutil.CreateUser(t, env.db, "bob")
	item := testutil.CreateProduct(t, env.db, seller.ID, "Denim Jacket", 1000)

	offer, err := offers.Create(ctx, buyer.ID, item.ID, decimal.NewFromInt(800))
	require.NoError(t, err)
	_, err = offers.Respond(ctx, seller.ID, offer.ID, true)
	require.NoError(t, err)

	order, err := svc.Purchase(ctx, buyer.ID, item.ID, "")
	require.NoError(t, err)
	assert.True(t, order.Amount.Equal(decimal.NewFromInt(800)), "got %s", order.Amount)
}

func TestOrderService_PurchaseGuards(t *testing.T) {
	env := newTestEnv(t)
	svc := NewOrderService(env.db, env.notifications, env.mailer, metrics.Nop{})
	ctx := context.Background()

	seller := testutil.CreateUser(t, env.db, "alice")
	item := testutil.CreateProduct(t, env.db, seller.ID, "Denim Jacket", 1000)

	_, err := svc.Purchase(ctx, seller.ID, item.ID, "")
	assert.True(t, models.IsKind(err, models.KindConflict))

	_, err = svc.Purchase(ctx, seller.ID, 4242, "")
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestOrderService_ConcurrentPurchaseSellsOnce(t *testing.T) {
	env := newTestEnv(t)
	svc := NewOrderService(env.db, env.notifications, env.mailer, metrics.Nop{})

	seller := testutil.CreateUser(t, env.db, "alice")
	buyers := []*models.User{
		testutil.CreateUser(t, env.db, "bob"),
		testutil.CreateUser(t, env.db, "carol"),
		testutil.CreateUser(t, env.db, "dave"),
	}
	item := testutil.CreateProduct(t, env.db, seller.ID, "Denim Jacket", 1000)

	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	for i, b := range buyers {
		wg.Add(1)
		go func(i int, buyerID uint) {
			defer wg.Done()
			_, errs[i] = svc.Purchase(context.Background(), buyerID, item.ID, "")
		}(i, b.ID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, models.IsKind(err, models.KindConflict), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var orders int64
	require.NoError(t, env.db.Model(&models.Order{}).Where("product_id = ?", item.ID).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	svc := NewOrderService(env.db, env.notifications, env.mailer, metrics.Nop{})
	ctx := context.Background()

	seller := testutil.CreateUser(t, env.db, "alice")
	buyer := testutil.CreateUser(t, env.db, "bob")
	item := testutil.CreateProduct(t, env.db, seller.ID, "Denim Jacket", 1000)
	order, err := svc.Purchase(ctx, buyer.ID, item.ID, "")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, buyer.ID, order.ID, models.OrderShipped)
	assert.True(t, models.IsKind(err, models.KindForbidden))

	_, err = svc.UpdateStatus(ctx, seller.ID, order.ID, models.OrderDelivered)
	assert.True(t, models.IsKind(err, models.KindValidation), "cannot skip shipped")

	updated, err := svc.UpdateStatus(ctx, seller.ID, order.ID, models.OrderShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, updated.Status)

	_, err = svc.UpdateStatus(ctx, seller.ID, order.ID, models.OrderCreated)
	assert.True(t, models.IsKind(err, models.KindValidation), "cannot move backwards")

	_, err = svc.UpdateStatus(ctx, seller.ID, order.ID, models.OrderDelivered)
	require.NoError(t, err)

	notes := env.notificationsFor(t, buyer.ID)
	require.Len(t, notes, 2)
	assert.Equal(t, "Your order for Denim Jacket is now shipped", notes[0].Text)
	assert.Equal(t, "Your order for Denim Jacket is now delivered", notes[1].Text)
}

func TestOrderService_Lists(t *testing.T) {
	env := newTestEnv(t)
	svc := NewOrderService(env.db, env.notifications, env.mailer, metrics.Nop{})
	ctx := context.Background()

	seller := testutil.CreateUser(t, env.db, "alice")
	buyer := testutil.CreateUser(t, env.db, "bob")
	first := testutil.CreateProduct(t, env.db, seller.ID, "Denim Jacket", 1000)
	second := testutil.CreateProduct(t, env.db, seller.ID, "Wool Scarf", 300)
	_, err := svc.Purchase(ctx, buyer.ID, first.ID, "")
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, buyer.ID, second.ID, "")
	require.NoError(t, err)

	bought, err := svc.ListForBuyer(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, bought, 2)
	assert.Equal(t, "Wool Scarf", bought[0].Product.Title)
	assert.Equal(t, "alice", bought[0].Seller.Username)

	sold, err := svc.ListForSeller(ctx, seller.ID)
	require.NoError(t, err)
	require.Len(t, sold, 2)
	assert.Equal(t, "bob", sold[0].Buyer.Username)

	none, err := svc.ListForBuyer(ctx, seller.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
