package config

import (
	"log/slog"

	"thriftly_backend/models"

	"gorm.io/gorm"
)

// AllModels lists every table owned by the application.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Order{},
		&models.Offer{},
		&models.Payment{},
		&models.Message{},
		&models.Notification{},
		&models.Review{},
		&models.WishlistItem{},
		&models.Follow{},
		&models.Story{},
		&models.StoryLike{},
		&models.StoryComment{},
		&models.CommentLike{},
		&models.Report{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		slog.Error("failed to migrate database schema", "error", err)
		return err
	}

	slog.Info("database migrations completed")

	// Ensure categories are seeded even on normal migration
	return SeedCategories(db)
}

func ResetAndMigrate(db *gorm.DB, adminPasswordHash string) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		slog.Error("failed to drop tables", "error", err)
		return err
	}

	slog.Info("all tables dropped")

	if err := db.AutoMigrate(AllModels()...); err != nil {
		slog.Error("failed to auto migrate", "error", err)
		return err
	}

	if err := SeedCategories(db); err != nil {
		return err
	}
	if err := SeedUsers(db, adminPasswordHash); err != nil {
		return err
	}

	slog.Info("database reset and migration completed")
	return nil
}
