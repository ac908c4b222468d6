package services

import (
	"context"

	"gorm.io/gorm"

	"thriftly_backend/models"
)

type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, models.NewStorageError("list categories", err)
	}
	return categories, nil
}
