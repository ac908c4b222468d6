// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"thriftly_backend/config"
	"thriftly_backend/models"
)

// NewTestDB opens a private in-memory sqlite database with the full schema.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig(logger.Silent))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser inserts a verified user with the given username.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:   username,
		Email:      username + "@example.com",
		Password:   "x",
		Role:       models.RoleUser,
		IsVerified: true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func CreateAdmin(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := CreateUser(t, db, username)
	require.NoError(t, db.Model(u).Update("role", models.RoleAdmin).Error)
	u.Role = models.RoleAdmin
	return u
}

// CreateProduct inserts an unsold listing owned by sellerID.
func CreateProduct(t *testing.T, db *gorm.DB, sellerID uint, title string, price int64) *models.Product {
	t.Helper()
	p := &models.Product{
		SellerID:  sellerID,
		Title:     title,
		Price:     decimal.NewFromInt(price),
		Category:  "Clothing",
		Condition: "Good",
		ImageURL:  "item.jpg",
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
