package config

import (
	"errors"
	"log/slog"
	"strings"

	"thriftly_backend/models"

	"gorm.io/gorm"
)

var defaultCategories = []string{
	"Clothing",
	"Shoes",
	"Bags",
	"Accessories",
	"Electronics",
	"Books",
	"Home",
	"Other",
}

func SeedCategories(db *gorm.DB) error {
	for _, name := range defaultCategories {
		category := models.Category{Name: name, Slug: strings.ToLower(name)}
		if err := db.Where(models.Category{Slug: category.Slug}).FirstOrCreate(&category).Error; err != nil {
			slog.Error("failed to seed category", "name", name, "error", err)
			return err
		}
	}
	return nil
}

// SeedUsers creates a verified admin and two demo accounts sharing one
// password hash.
func SeedUsers(db *gorm.DB, passwordHash string) error {
	slog.Info("seeding users")

	users := []models.User{
		{Username: "admin", Email: "admin@thriftly.local", Password: passwordHash, Role: models.RoleAdmin, IsVerified: true},
		{Username: "user1", Email: "user1@example.com", Password: passwordHash, Role: models.RoleUser, IsVerified: true},
		{Username: "user2", Email: "user2@example.com", Password: passwordHash, Role: models.RoleUser, IsVerified: true},
	}

	for _, user := range users {
		var existing models.User
		err := db.Where("email = ?", user.Email).First(&existing).Error
		if err == nil {
			slog.Info("user already exists", "username", user.Username)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&user).Error; err != nil {
			slog.Error("failed to seed user", "username", user.Username, "error", err)
			return err
		}
		slog.Info("user seeded", "username", user.Username, "id", user.ID)
	}

	return nil
}
