package services

import (
	"context"

	"gorm.io/gorm"

	"thriftly_backend/models"
	"thriftly_backend/utils"
)

type ReviewService struct {
	db *gorm.DB
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{db: db}
}

func (s *ReviewService) Create(ctx context.Context, reviewerID, sellerID uint, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, models.NewValidationError("Rating must be between 1 and 5")
	}
	if reviewerID == sellerID {
		return nil, models.NewConflictError("You cannot review yourself")
	}

	db := s.db.WithContext(ctx)
	ok, err := exists(db, &models.User{}, sellerID)
	if err != nil {
		return nil, models.NewStorageError("check seller", err)
	}
	if !ok {
		return nil, models.NewNotFoundError("Seller")
	}

	review := &models.Review{
		ReviewerID: reviewerID,
		SellerID:   sellerID,
		Rating:     rating,
		Comment:    utils.CleanText(comment),
	}
	if err := db.Omit("Reviewer").Create(review).Error; err != nil {
		return nil, models.NewStorageError("create review", err)
	}
	return review, nil
}

// List returns a seller's reviews, newest first.
func (s *ReviewService) List(ctx context.Context, sellerID uint) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.WithContext(ctx).
		Preload("Reviewer").
		Where("seller_id = ?", sellerID).
		Order("created_at DESC, id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, models.NewStorageError("list reviews", err)
	}
	for i := range reviews {
		reviews[i].ReviewerName = reviews[i].Reviewer.Username
		reviews[i].ReviewerPic = reviews[i].Reviewer.ProfilePic
	}
	return reviews, nil
}

// Summary returns the seller's average rating and review count. A seller
// without reviews averages 0.
func (s *ReviewService) Summary(ctx context.Context, sellerID uint) (models.RatingSummary, error) {
	summary, err := ratingSummary(s.db.WithContext(ctx), sellerID)
	if err != nil {
		return models.RatingSummary{}, models.NewStorageError("summarise reviews", err)
	}
	return summary, nil
}

func ratingSummary(db *gorm.DB, sellerID uint) (models.RatingSummary, error) {
	var row struct {
		Avg   *float64
		Count int64
	}
	err := db.Model(&models.Review{}).
		Select("AVG(rating) AS avg, COUNT(*) AS count").
		Where("seller_id = ?", sellerID).
		Scan(&row).Error
	if err != nil {
		return models.RatingSummary{}, err
	}
	summary := models.RatingSummary{Count: row.Count}
	if row.Avg != nil {
		summary.Avg = *row.Avg
	}
	return summary, nil
}
