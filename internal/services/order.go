package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"thriftly_backend/internal/metrics"
	"thriftly_backend/models"
)

type OrderService struct {
	db            *gorm.DB
	notifications *NotificationService
	mailer        Mailer
	metrics       metrics.Recorder
}

func NewOrderService(db *gorm.DB, notifications *NotificationService, mailer Mailer, rec metrics.Recorder) *OrderService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &OrderService{db: db, notifications: notifications, mailer: mailer, metrics: rec}
}

// txError passes AppErrors returned from inside a transaction through and
// wraps anything else as a storage failure.
func txError(err error, op string) error {
	if models.KindOf(err) != "" {
		return err
	}
	return models.NewStorageError(op, err)
}

// Purchase marks the product sold and records the order in one transaction.
// The price is the buyer's accepted offer when there is one.
func (s *OrderService) Purchase(ctx context.Context, buyerID, productID uint, txnUUID string) (*models.Order, error) {
	var order *models.Order
	var product *models.Product

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, product, err = purchaseTx(tx, buyerID, productID, txnUUID)
		return err
	})
	if err != nil {
		return nil, txError(err, "purchase product")
	}
	s.afterPurchase(ctx, order, product)
	return order, nil
}

// purchaseTx does the work of Purchase inside tx.
func purchaseTx(tx *gorm.DB, buyerID, productID uint, txnUUID string) (*models.Order, *models.Product, error) {
	var product models.Product
	if err := tx.First(&product, productID).Error; err != nil {
		return nil, nil, lookupError(err, "Product", "load product")
	}
	if product.SellerID == buyerID {
		return nil, nil, models.NewConflictError("You cannot buy your own product")
	}
	if product.IsSold {
		return nil, nil, models.NewConflictError("Product is already sold")
	}

	amount := product.Price
	if offered, ok, err := acceptedPrice(tx, buyerID, productID); err != nil {
		return nil, nil, err
	} else if ok {
		amount = offered
	}

	res := tx.Model(&models.Product{}).
		Where("id = ? AND is_sold = ?", productID, false).
		Update("is_sold", true)
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil, models.NewConflictError("Product is already sold")
	}
	product.IsSold = true

	order := &models.Order{
		ProductID:       productID,
		BuyerID:         buyerID,
		SellerID:        product.SellerID,
		Amount:          amount,
		Status:          models.OrderCreated,
		TransactionUUID: txnUUID,
	}
	if err := tx.Create(order).Error; err != nil {
		return nil, nil, err
	}
	return order, &product, nil
}

// afterPurchase tells the seller about a committed order.
func (s *OrderService) afterPurchase(ctx context.Context, order *models.Order, product *models.Product) {
	s.metrics.OrderCreated()

	db := s.db.WithContext(ctx)
	var buyer, seller models.User
	if err := db.First(&buyer, order.BuyerID).Error; err != nil {
		return
	}
	if err := db.First(&seller, product.SellerID).Error; err != nil {
		return
	}
	s.notifications.Notify(ctx, seller.ID, models.NotificationSale, SaleText(buyer.Username, product.Title))
	sendMail(ctx, s.mailer, seller.Email, "🎉 Item Sold!",
		fmt.Sprintf("Good news %s! Someone bought your item %s.", seller.Username, product.Title))
}

// UpdateStatus moves an order one step forward. Only its seller may do so.
func (s *OrderService) UpdateStatus(ctx context.Context, sellerID, orderID uint, status string) (*models.Order, error) {
	db := s.db.WithContext(ctx)

	var order models.Order
	if err := db.Preload("Product").First(&order, orderID).Error; err != nil {
		return nil, lookupError(err, "Order", "load order")
	}
	if order.SellerID != sellerID {
		return nil, models.NewForbiddenError("Only the seller can update this order")
	}
	if !models.ValidOrderTransition(order.Status, status) {
		return nil, models.NewValidationError(fmt.Sprintf("Cannot move order from %s to %s", order.Status, status))
	}

	res := db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, order.Status).
		Update("status", status)
	if res.Error != nil {
		return nil, models.NewStorageError("update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewConflictError("Order was updated by someone else")
	}
	order.Status = status

	s.notifications.Notify(ctx, order.BuyerID, models.NotificationSale, OrderStatusText(order.Product.Title, status))
	return &order, nil
}

func (s *OrderService) ListForBuyer(ctx context.Context, buyerID uint) ([]models.Order, error) {
	return s.list(ctx, "list buyer orders", func(db *gorm.DB) *gorm.DB {
		return db.Preload("Seller").Where("buyer_id = ?", buyerID)
	})
}

// ListForSeller is the sales dashboard: what the seller has to ship.
func (s *OrderService) ListForSeller(ctx context.Context, sellerID uint) ([]models.Order, error) {
	return s.list(ctx, "list seller orders", func(db *gorm.DB) *gorm.DB {
		return db.Preload("Buyer").Where("seller_id = ?", sellerID)
	})
}

func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	return s.list(ctx, "list orders", func(db *gorm.DB) *gorm.DB {
		return db.Preload("Buyer").Preload("Seller")
	})
}

func (s *OrderService) list(ctx context.Context, op string, scope func(*gorm.DB) *gorm.DB) ([]models.Order, error) {
	orders := []models.Order{}
	err := scope(s.db.WithContext(ctx)).
		Preload("Product").
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, models.NewStorageError(op, err)
	}
	return orders, nil
}
