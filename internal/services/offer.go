package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"thriftly_backend/models"
)

// OfferService runs the offer state machine: pending, then accepted or
// rejected, once.
type OfferService struct {
	db            *gorm.DB
	notifications *NotificationService
}

func NewOfferService(db *gorm.DB, notifications *NotificationService) *OfferService {
	return &OfferService{db: db, notifications: notifications}
}

func (s *OfferService) Create(ctx context.Context, buyerID, productID uint, amount decimal.Decimal) (*models.Offer, error) {
	if !amount.IsPositive() {
		return nil, models.NewValidationError("Offer amount must be greater than zero")
	}

	db := s.db.WithContext(ctx)
	var product models.Product
	if err := db.First(&product, productID).Error; err != nil {
		return nil, lookupError(err, "Product", "load product")
	}
	if product.SellerID == buyerID {
		return nil, models.NewConflictError("You cannot make an offer on your own listing")
	}
	if product.IsSold {
		return nil, models.NewConflictError("Product is already sold")
	}

	offer := &models.Offer{
		ProductID: productID,
		BuyerID:   buyerID,
		SellerID:  product.SellerID,
		Amount:    amount,
		Status:    models.OfferPending,
	}
	if err := db.Create(offer).Error; err != nil {
		return nil, models.NewStorageError("create offer", err)
	}

	var buyer models.User
	if err := db.Select("id", "username").First(&buyer, buyerID).Error; err != nil {
		return nil, lookupError(err, "User", "load buyer")
	}
	s.notifications.Notify(ctx, product.SellerID, models.NotificationOffer, OfferCreatedText(buyer.Username, product.Title, amount))
	return offer, nil
}

// Respond accepts or rejects a pending offer. Only the listing's seller may
// respond, and an offer that is no longer pending is a conflict, so the buyer
// hears about the outcome exactly once.
func (s *OfferService) Respond(ctx context.Context, sellerID, offerID uint, accept bool) (*models.Offer, error) {
	db := s.db.WithContext(ctx)

	var offer models.Offer
	if err := db.Preload("Product").First(&offer, offerID).Error; err != nil {
		return nil, lookupError(err, "Offer", "load offer")
	}
	if offer.SellerID != sellerID {
		return nil, models.NewForbiddenError("Only the seller can respond to this offer")
	}
	if accept && offer.Product.IsSold {
		return nil, models.NewConflictError("Product is already sold")
	}

	status := models.OfferRejected
	if accept {
		status = models.OfferAccepted
	}
	now := time.Now().UTC()

	res := db.Model(&models.Offer{}).
		Where("id = ? AND status = ?", offerID, models.OfferPending).
		Updates(map[string]interface{}{"status": status, "responded_at": now})
	if res.Error != nil {
		return nil, models.NewStorageError("respond to offer", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewConflictError("Offer already resolved")
	}
	offer.Status = status
	offer.RespondedAt = &now

	text := OfferRejectedText(offer.Product.Title, offer.Amount)
	if accept {
		text = OfferAcceptedText(offer.Product.Title, offer.Amount)
	}
	s.notifications.Notify(ctx, offer.BuyerID, models.NotificationOffer, text)
	return &offer, nil
}

// ListReceived returns offers made on the seller's listings, newest first.
func (s *OfferService) ListReceived(ctx context.Context, sellerID uint) ([]models.Offer, error) {
	offers := []models.Offer{}
	err := s.db.WithContext(ctx).
		Preload("Product").
		Preload("Buyer").
		Where("seller_id = ?", sellerID).
		Order("created_at DESC, id DESC").
		Find(&offers).Error
	if err != nil {
		return nil, models.NewStorageError("list received offers", err)
	}
	return offers, nil
}

func (s *OfferService) ListSent(ctx context.Context, buyerID uint) ([]models.Offer, error) {
	offers := []models.Offer{}
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC, id DESC").
		Find(&offers).Error
	if err != nil {
		return nil, models.NewStorageError("list sent offers", err)
	}
	return offers, nil
}

// AcceptedPrice returns the amount of the buyer's latest accepted offer on
// productID, if any.
func (s *OfferService) AcceptedPrice(ctx context.Context, buyerID, productID uint) (decimal.Decimal, bool, error) {
	amount, ok, err := acceptedPrice(s.db.WithContext(ctx), buyerID, productID)
	if err != nil {
		return decimal.Zero, false, models.NewStorageError("load accepted offer", err)
	}
	return amount, ok, nil
}

func acceptedPrice(db *gorm.DB, buyerID, productID uint) (decimal.Decimal, bool, error) {
	var offer models.Offer
	err := db.Where("buyer_id = ? AND product_id = ? AND status = ?", buyerID, productID, models.OfferAccepted).
		Order("responded_at DESC, id DESC").
		First(&offer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return offer.Amount, true, nil
}
