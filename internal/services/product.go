package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"thriftly_backend/models"
	"thriftly_backend/utils"
)

const (
	SortNewest    = "newest"
	SortPriceLow  = "price_low"
	SortPriceHigh = "price_high"
)

type ProductInput struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Category    string
	Size        string
	Condition   string
	ImageURL    string
}

type ProductFilter struct {
	Category  string
	Size      string
	Condition string
	Query     string
	Sort      string
	Page      int
	Limit     int
}

type ProductService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewProductService(db *gorm.DB) *ProductService {
	return &ProductService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (in *ProductInput) clean() {
	in.Title = utils.CleanText(in.Title)
	in.Description = utils.CleanText(in.Description)
	in.Category = utils.CleanText(in.Category)
	in.Size = utils.CleanText(in.Size)
	in.Condition = utils.CleanText(in.Condition)
}

func (in *ProductInput) validate() error {
	if in.Title == "" {
		return models.NewValidationError("Title is required")
	}
	if !in.Price.IsPositive() {
		return models.NewValidationError("Price must be greater than zero")
	}
	if in.Category == "" {
		return models.NewValidationError("Category is required")
	}
	return nil
}

// Create lists a new product. A listing without an image is rejected.
func (s *ProductService) Create(ctx context.Context, sellerID uint, in ProductInput) (*models.Product, error) {
	in.clean()
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.ImageURL == "" {
		return nil, models.NewValidationError("No file provided")
	}

	product := &models.Product{
		SellerID:    sellerID,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Size:        in.Size,
		Condition:   in.Condition,
		ImageURL:    in.ImageURL,
	}
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, models.NewStorageError("create product", err)
	}
	return product, nil
}

// Get loads a product with its seller and counts the view.
func (s *ProductService) Get(ctx context.Context, id uint) (*models.Product, error) {
	db := s.db.WithContext(ctx)

	res := db.Model(&models.Product{}).Where("id = ?", id).UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return nil, models.NewStorageError("count product view", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Product")
	}

	var product models.Product
	if err := db.Preload("Seller").First(&product, id).Error; err != nil {
		return nil, lookupError(err, "Product", "load product")
	}
	return &product, nil
}

// List returns unsold products matching filter. Listings with an active boost
// come first whatever the sort.
func (s *ProductService) List(ctx context.Context, filter ProductFilter) ([]models.Product, models.PaginationMeta, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	q := s.db.WithContext(ctx).Model(&models.Product{}).Where("is_sold = ?", false)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Size != "" {
		q = q.Where("size = ?", filter.Size)
	}
	if filter.Condition != "" {
		q = q.Where("item_condition = ?", filter.Condition)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		q = q.Where("title LIKE ? OR category LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, models.PaginationMeta{}, models.NewStorageError("count products", err)
	}

	q = q.Order(clause.OrderBy{Expression: clause.Expr{
		SQL:  "CASE WHEN boosted_until IS NOT NULL AND boosted_until > ? THEN 1 ELSE 0 END DESC",
		Vars: []interface{}{s.now()},
	}})
	switch filter.Sort {
	case SortPriceLow:
		q = q.Order("price ASC")
	case SortPriceHigh:
		q = q.Order("price DESC")
	}
	q = q.Order("created_at DESC").Order("id DESC")

	products := []models.Product{}
	if err := q.Preload("Seller").Offset((page - 1) * limit).Limit(limit).Find(&products).Error; err != nil {
		return nil, models.PaginationMeta{}, models.NewStorageError("list products", err)
	}
	return products, models.NewPaginationMeta(page, limit, total), nil
}

// ListAll includes sold products; admin only.
func (s *ProductService) ListAll(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	if err := s.db.WithContext(ctx).Preload("Seller").Order("created_at DESC, id DESC").Find(&products).Error; err != nil {
		return nil, models.NewStorageError("list all products", err)
	}
	return products, nil
}

func (s *ProductService) ListBySeller(ctx context.Context, sellerID uint) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC, id DESC").
		Find(&products).Error
	if err != nil {
		return nil, models.NewStorageError("list seller products", err)
	}
	return products, nil
}

// Update edits a listing. Only the seller may, and only while it is unsold.
// An empty ImageURL keeps the current image.
func (s *ProductService) Update(ctx context.Context, userID, productID uint, in ProductInput) (*models.Product, error) {
	in.clean()
	if err := in.validate(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var product models.Product
	if err := db.First(&product, productID).Error; err != nil {
		return nil, lookupError(err, "Product", "load product")
	}
	if product.SellerID != userID {
		return nil, models.NewForbiddenError("You can only edit your own listings")
	}
	if product.IsSold {
		return nil, models.NewConflictError("Sold products cannot be edited")
	}

	product.Title = in.Title
	product.Description = in.Description
	product.Price = in.Price
	product.Category = in.Category
	product.Size = in.Size
	product.Condition = in.Condition
	if in.ImageURL != "" {
		product.ImageURL = in.ImageURL
	}
	if err := db.Omit(clause.Associations).Save(&product).Error; err != nil {
		return nil, models.NewStorageError("update product", err)
	}
	return &product, nil
}

// Delete removes a product and everything that hangs off it. The seller may
// delete an unsold listing; an admin may delete any.
func (s *ProductService) Delete(ctx context.Context, userID uint, isAdmin bool, productID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			return lookupError(err, "Product", "load product")
		}
		if product.SellerID != userID && !isAdmin {
			return models.NewForbiddenError("You can only delete your own listings")
		}
		if product.IsSold && !isAdmin {
			return models.NewConflictError("Sold products cannot be deleted")
		}
		return deleteProductsTx(tx, []uint{productID})
	})
	if err != nil {
		return txError(err, "delete product")
	}
	return nil
}

func deleteProductsTx(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	for _, model := range []interface{}{
		&models.WishlistItem{},
		&models.Offer{},
		&models.Message{},
		&models.Order{},
		&models.Payment{},
	} {
		if err := tx.Where("product_id IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", ids).Delete(&models.Product{}).Error
}

// ActivateBoost extends the product's promotion by days, starting from the
// current expiry if it has not passed yet.
func (s *ProductService) ActivateBoost(ctx context.Context, productID uint, days int) (*models.Product, error) {
	var product *models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		product, err = activateBoostTx(tx, productID, days, s.now())
		return err
	})
	if err != nil {
		return nil, txError(err, "activate boost")
	}
	return product, nil
}

func activateBoostTx(tx *gorm.DB, productID uint, days int, now time.Time) (*models.Product, error) {
	if days < 1 {
		return nil, models.NewValidationError("Boost must last at least one day")
	}

	var product models.Product
	if err := tx.First(&product, productID).Error; err != nil {
		return nil, lookupError(err, "Product", "load product")
	}

	start := now
	if product.IsBoosted(now) {
		start = product.BoostedUntil.UTC()
	}
	until := start.Add(time.Duration(days) * 24 * time.Hour)

	if err := tx.Model(&product).UpdateColumn("boosted_until", until).Error; err != nil {
		return nil, err
	}
	product.BoostedUntil = &until
	return &product, nil
}
