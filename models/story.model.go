package models

import "time"

const (
	MediaImage = "image"
	MediaVideo = "video"
)

type Story struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	MediaURL  string    `gorm:"not null" json:"media_url"`
	MediaType string    `gorm:"default:'image';size:10" json:"media_type"`
	Caption   string    `gorm:"type:text" json:"caption"`
	Likes     int       `gorm:"default:0" json:"likes"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`

	// Filled per viewer, not stored.
	Username     string `gorm:"-" json:"username"`
	ProfilePic   string `gorm:"-" json:"profile_pic"`
	CommentCount int64  `gorm:"-" json:"comment_count"`
	IsLikedByMe  bool   `gorm:"-" json:"is_liked_by_me"`
}

type StoryLike struct {
	ID        uint `gorm:"primaryKey"`
	StoryID   uint `gorm:"uniqueIndex:idx_story_like;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_story_like;not null"`
	CreatedAt time.Time
}

// StoryComment threads through ParentID; nil means top level.
type StoryComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StoryID   uint      `gorm:"index;not null" json:"story_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Text      string    `gorm:"column:comment;type:text;not null" json:"comment"`
	Likes     int       `gorm:"default:0" json:"likes"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`

	Username    string          `gorm:"-" json:"username"`
	ProfilePic  string          `gorm:"-" json:"profile_pic"`
	IsLikedByMe bool            `gorm:"-" json:"is_liked_by_me"`
	Replies     []*StoryComment `gorm:"-" json:"replies,omitempty"`
}

type CommentLike struct {
	ID        uint `gorm:"primaryKey"`
	CommentID uint `gorm:"uniqueIndex:idx_comment_like;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_comment_like;not null"`
	CreatedAt time.Time
}
