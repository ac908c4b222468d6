package services

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"thriftly_backend/internal/ws"
	"thriftly_backend/models"
	"thriftly_backend/utils"
)

// StoryService manages short-lived stories, their likes and comment threads.
type StoryService struct {
	db            *gorm.DB
	notifications *NotificationService
	publisher     Publisher
	ttl           time.Duration
	now           func() time.Time
}

func NewStoryService(db *gorm.DB, notifications *NotificationService, publisher Publisher, ttl time.Duration) *StoryService {
	return &StoryService{
		db:            db,
		notifications: notifications,
		publisher:     publisher,
		ttl:           ttl,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// StoryLikeUpdate is broadcast after a story like toggles.
type StoryLikeUpdate struct {
	StoryID uint `json:"story_id"`
	Likes   int  `json:"likes"`
}

// CommentLikeUpdate is broadcast after a comment like toggles.
type CommentLikeUpdate struct {
	StoryID   uint `json:"story_id"`
	CommentID uint `json:"comment_id"`
	Likes     int  `json:"likes"`
}

func (s *StoryService) broadcast(ctx context.Context, event string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Broadcast(ctx, event, data); err != nil {
		slog.Warn("story broadcast failed", "event", event, "error", err)
	}
}

func (s *StoryService) Create(ctx context.Context, userID uint, mediaURL, mediaType, caption string) (*models.Story, error) {
	if mediaURL == "" {
		return nil, models.NewValidationError("No file provided")
	}
	switch mediaType {
	case "":
		mediaType = models.MediaImage
	case models.MediaImage, models.MediaVideo:
	default:
		return nil, models.NewValidationError("Media must be an image or a video")
	}

	story := &models.Story{
		UserID:    userID,
		MediaURL:  mediaURL,
		MediaType: mediaType,
		Caption:   utils.CleanText(caption),
	}
	if err := s.db.WithContext(ctx).Create(story).Error; err != nil {
		return nil, models.NewStorageError("create story", err)
	}
	return story, nil
}

// List returns live stories, newest first, annotated for viewerID.
func (s *StoryService) List(ctx context.Context, viewerID uint) ([]models.Story, error) {
	db := s.db.WithContext(ctx)

	stories := []models.Story{}
	err := db.Preload("User").
		Where("created_at > ?", s.now().Add(-s.ttl)).
		Order("created_at DESC, id DESC").
		Find(&stories).Error
	if err != nil {
		return nil, models.NewStorageError("list stories", err)
	}
	if len(stories) == 0 {
		return stories, nil
	}

	ids := make([]uint, len(stories))
	for i := range stories {
		ids[i] = stories[i].ID
	}

	var counts []struct {
		StoryID uint
		Total   int64
	}
	err = db.Model(&models.StoryComment{}).
		Select("story_id, COUNT(*) AS total").
		Where("story_id IN ?", ids).
		Group("story_id").
		Scan(&counts).Error
	if err != nil {
		return nil, models.NewStorageError("count story comments", err)
	}
	commentCount := make(map[uint]int64, len(counts))
	for _, c := range counts {
		commentCount[c.StoryID] = c.Total
	}

	var liked []uint
	if viewerID != 0 {
		err = db.Model(&models.StoryLike{}).
			Where("user_id = ? AND story_id IN ?", viewerID, ids).
			Pluck("story_id", &liked).Error
		if err != nil {
			return nil, models.NewStorageError("load story likes", err)
		}
	}
	likedSet := make(map[uint]bool, len(liked))
	for _, id := range liked {
		likedSet[id] = true
	}

	for i := range stories {
		st := &stories[i]
		st.Username = st.User.Username
		st.ProfilePic = st.User.ProfilePic
		st.CommentCount = commentCount[st.ID]
		st.IsLikedByMe = likedSet[st.ID]
	}
	return stories, nil
}

// ToggleLike likes the story, or unlikes it if the user already did. The
// like row and the counter change together and the counter never drops
// below zero.
func (s *StoryService) ToggleLike(ctx context.Context, userID, storyID uint) (int, bool, error) {
	var story models.Story
	var liked bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&story, storyID).Error; err != nil {
			return lookupError(err, "Story", "load story")
		}
		var err error
		liked, err = toggleLike(tx, &models.StoryLike{}, "story_id", storyID, userID,
			func() interface{} { return &models.StoryLike{StoryID: storyID, UserID: userID} })
		if err != nil {
			return err
		}
		if err := adjustLikes(tx, &models.Story{}, storyID, liked); err != nil {
			return err
		}
		return tx.Select("likes").First(&story, storyID).Error
	})
	if err != nil {
		return 0, false, txError(err, "toggle story like")
	}

	s.broadcast(ctx, ws.EventStoryLikeUpdate, StoryLikeUpdate{StoryID: storyID, Likes: story.Likes})
	return story.Likes, liked, nil
}

// AddComment adds a comment to a story, or a reply when parentID is set. The
// story owner is notified unless they wrote it.
func (s *StoryService) AddComment(ctx context.Context, userID, storyID uint, parentID *uint, text string) (*models.StoryComment, error) {
	text = utils.CleanText(text)
	if text == "" {
		return nil, models.NewValidationError("Comment cannot be empty")
	}

	db := s.db.WithContext(ctx)
	var story models.Story
	if err := db.First(&story, storyID).Error; err != nil {
		return nil, lookupError(err, "Story", "load story")
	}
	if parentID != nil {
		var parent models.StoryComment
		if err := db.First(&parent, *parentID).Error; err != nil {
			return nil, lookupError(err, "Comment", "load parent comment")
		}
		if parent.StoryID != storyID {
			return nil, models.NewValidationError("Reply must belong to the same story")
		}
	}

	var author models.User
	if err := db.First(&author, userID).Error; err != nil {
		return nil, lookupError(err, "User", "load comment author")
	}

	comment := &models.StoryComment{
		StoryID:  storyID,
		UserID:   userID,
		ParentID: parentID,
		Text:     text,
	}
	if err := db.Omit("User").Create(comment).Error; err != nil {
		return nil, models.NewStorageError("create comment", err)
	}
	comment.Username = author.Username
	comment.ProfilePic = author.ProfilePic

	if story.UserID != userID {
		s.notifications.Notify(ctx, story.UserID, models.NotificationMessage, CommentText(author.Username))
	}
	s.broadcast(ctx, ws.EventNewComment, comment)
	return comment, nil
}

// Comments returns a story's comments oldest first as a flat list.
func (s *StoryService) Comments(ctx context.Context, storyID, viewerID uint) ([]*models.StoryComment, error) {
	db := s.db.WithContext(ctx)

	comments := []*models.StoryComment{}
	err := db.Preload("User").
		Where("story_id = ?", storyID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewStorageError("list comments", err)
	}
	if len(comments) == 0 {
		return comments, nil
	}

	likedSet := map[uint]bool{}
	if viewerID != 0 {
		ids := make([]uint, len(comments))
		for i, c := range comments {
			ids[i] = c.ID
		}
		var liked []uint
		err = db.Model(&models.CommentLike{}).
			Where("user_id = ? AND comment_id IN ?", viewerID, ids).
			Pluck("comment_id", &liked).Error
		if err != nil {
			return nil, models.NewStorageError("load comment likes", err)
		}
		for _, id := range liked {
			likedSet[id] = true
		}
	}

	for _, c := range comments {
		c.Username = c.User.Username
		c.ProfilePic = c.User.ProfilePic
		c.IsLikedByMe = likedSet[c.ID]
	}
	return comments, nil
}

// ToggleCommentLike follows the same rules as ToggleLike.
func (s *StoryService) ToggleCommentLike(ctx context.Context, userID, commentID uint) (int, bool, error) {
	var comment models.StoryComment
	var liked bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&comment, commentID).Error; err != nil {
			return lookupError(err, "Comment", "load comment")
		}
		var err error
		liked, err = toggleLike(tx, &models.CommentLike{}, "comment_id", commentID, userID,
			func() interface{} { return &models.CommentLike{CommentID: commentID, UserID: userID} })
		if err != nil {
			return err
		}
		if err := adjustLikes(tx, &models.StoryComment{}, commentID, liked); err != nil {
			return err
		}
		return tx.Select("likes").First(&comment, commentID).Error
	})
	if err != nil {
		return 0, false, txError(err, "toggle comment like")
	}

	s.broadcast(ctx, ws.EventCommentLikeUpdate, CommentLikeUpdate{
		StoryID:   comment.StoryID,
		CommentID: commentID,
		Likes:     comment.Likes,
	})
	return comment.Likes, liked, nil
}

// toggleLike deletes the (user, target) like row if present and inserts it
// otherwise. It reports whether the target is now liked.
func toggleLike(tx *gorm.DB, model interface{}, column string, targetID, userID uint, newRow func() interface{}) (bool, error) {
	res := tx.Where(column+" = ? AND user_id = ?", targetID, userID).Delete(model)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := tx.Create(newRow()).Error; err != nil {
		return false, err
	}
	return true, nil
}

func adjustLikes(tx *gorm.DB, model interface{}, id uint, liked bool) error {
	expr := gorm.Expr("CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")
	if liked {
		expr = gorm.Expr("likes + 1")
	}
	return tx.Model(model).Where("id = ?", id).UpdateColumn("likes", expr).Error
}

// BuildCommentTree nests a flat, oldest-first comment list under its parents.
// Replies whose parent is missing are promoted to the top level.
func BuildCommentTree(comments []*models.StoryComment) []*models.StoryComment {
	byID := make(map[uint]*models.StoryComment, len(comments))
	for _, c := range comments {
		c.Replies = nil
		byID[c.ID] = c
	}

	roots := []*models.StoryComment{}
	for _, c := range comments {
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok && parent != c {
				parent.Replies = append(parent.Replies, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	return roots
}

// DeleteExpired removes stories created before the cutoff along with their
// likes, comments and reports.
func (s *StoryService) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.Story{}).Where("created_at < ?", before.UTC()).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := deleteStoriesTx(tx, ids); err != nil {
			return err
		}
		deleted = int64(len(ids))
		return nil
	})
	if err != nil {
		return 0, txError(err, "delete expired stories")
	}
	return deleted, nil
}

// Expired is the cutoff for DeleteExpired given the configured lifetime.
func (s *StoryService) Expired() time.Time {
	return s.now().Add(-s.ttl)
}

func deleteStoriesTx(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	commentIDs := tx.Model(&models.StoryComment{}).Select("id").Where("story_id IN ?", ids)
	if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
		return err
	}
	for _, model := range []interface{}{&models.StoryComment{}, &models.StoryLike{}, &models.Report{}} {
		if err := tx.Where("story_id IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", ids).Delete(&models.Story{}).Error
}
