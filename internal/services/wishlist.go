package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"thriftly_backend/models"
)

type WishlistService struct {
	db *gorm.DB
}

func NewWishlistService(db *gorm.DB) *WishlistService {
	return &WishlistService{db: db}
}

// Toggle adds the product to the user's wishlist, or removes it if it is
// already there. It reports whether the product is now on the list.
func (s *WishlistService) Toggle(ctx context.Context, userID, productID uint) (bool, error) {
	var added bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.Product{}, productID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewNotFoundError("Product")
		}

		var item models.WishlistItem
		err = tx.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error
		switch {
		case err == nil:
			return tx.Delete(&item).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			added = true
			return tx.Create(&models.WishlistItem{UserID: userID, ProductID: productID}).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, txError(err, "toggle wishlist")
	}
	return added, nil
}

func (s *WishlistService) List(ctx context.Context, userID uint) ([]models.WishlistItem, error) {
	items := []models.WishlistItem{}
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, models.NewStorageError("list wishlist", err)
	}
	return items, nil
}
