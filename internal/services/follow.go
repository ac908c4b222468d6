package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"thriftly_backend/models"
)

type FollowService struct {
	db            *gorm.DB
	notifications *NotificationService
}

func NewFollowService(db *gorm.DB, notifications *NotificationService) *FollowService {
	return &FollowService{db: db, notifications: notifications}
}

func (s *FollowService) Follow(ctx context.Context, followerID, followingID uint) error {
	if followerID == followingID {
		return models.NewConflictError("You cannot follow yourself")
	}

	db := s.db.WithContext(ctx)
	var target models.User
	if err := db.Select("id").First(&target, followingID).Error; err != nil {
		return lookupError(err, "User", "load followed user")
	}

	var existing models.Follow
	err := db.Where("follower_id = ? AND following_id = ?", followerID, followingID).First(&existing).Error
	if err == nil {
		return models.NewConflictError("Already following")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewStorageError("check follow", err)
	}

	if err := db.Create(&models.Follow{FollowerID: followerID, FollowingID: followingID}).Error; err != nil {
		return models.NewStorageError("create follow", err)
	}

	var follower models.User
	if err := db.Select("id", "username").First(&follower, followerID).Error; err != nil {
		return lookupError(err, "User", "load follower")
	}
	s.notifications.Notify(ctx, followingID, models.NotificationFollow, FollowText(follower.Username))
	return nil
}

// Unfollow is idempotent.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followingID uint) error {
	err := s.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return models.NewStorageError("delete follow", err)
	}
	return nil
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, models.NewStorageError("check follow", err)
	}
	return count > 0, nil
}

func (s *FollowService) Counts(ctx context.Context, userID uint) (models.FollowCounts, error) {
	counts, err := followCounts(s.db.WithContext(ctx), userID)
	if err != nil {
		return models.FollowCounts{}, models.NewStorageError("count follows", err)
	}
	return counts, nil
}

func followCounts(db *gorm.DB, userID uint) (models.FollowCounts, error) {
	var counts models.FollowCounts
	if err := db.Model(&models.Follow{}).Where("following_id = ?", userID).Count(&counts.Followers).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&counts.Following).Error; err != nil {
		return counts, err
	}
	return counts, nil
}
