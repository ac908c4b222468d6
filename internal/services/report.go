package services

import (
	"context"

	"gorm.io/gorm"

	"thriftly_backend/models"
	"thriftly_backend/utils"
)

type ReportService struct {
	db            *gorm.DB
	notifications *NotificationService
}

func NewReportService(db *gorm.DB, notifications *NotificationService) *ReportService {
	return &ReportService{db: db, notifications: notifications}
}

// ReportStory files an abuse report and notifies every admin.
func (s *ReportService) ReportStory(ctx context.Context, reporterID, storyID uint, reason string) (*models.Report, error) {
	reason = utils.CleanText(reason)
	if reason == "" {
		return nil, models.NewValidationError("Reason is required")
	}

	db := s.db.WithContext(ctx)
	ok, err := exists(db, &models.Story{}, storyID)
	if err != nil {
		return nil, models.NewStorageError("check story", err)
	}
	if !ok {
		return nil, models.NewNotFoundError("Story")
	}
	var reporter models.User
	if err := db.Select("id", "username").First(&reporter, reporterID).Error; err != nil {
		return nil, lookupError(err, "User", "load reporter")
	}

	report := &models.Report{
		ReporterID: reporterID,
		StoryID:    storyID,
		Reason:     reason,
		Status:     models.ReportOpen,
	}
	if err := db.Omit("Reporter").Create(report).Error; err != nil {
		return nil, models.NewStorageError("create report", err)
	}

	var admins []uint
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Pluck("id", &admins).Error; err != nil {
		return nil, models.NewStorageError("load admins", err)
	}
	text := ReportText(reporter.Username, reason)
	for _, adminID := range admins {
		s.notifications.Notify(ctx, adminID, models.NotificationAdmin, text)
	}
	return report, nil
}

func (s *ReportService) List(ctx context.Context) ([]models.Report, error) {
	reports := []models.Report{}
	err := s.db.WithContext(ctx).
		Preload("Reporter").
		Order("created_at DESC, id DESC").
		Find(&reports).Error
	if err != nil {
		return nil, models.NewStorageError("list reports", err)
	}
	return reports, nil
}

func (s *ReportService) Resolve(ctx context.Context, reportID uint) error {
	res := s.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ?", reportID).
		Update("status", models.ReportResolved)
	if res.Error != nil {
		return models.NewStorageError("resolve report", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Report")
	}
	return nil
}
