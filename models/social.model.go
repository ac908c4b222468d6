package models

import "time"

type WishlistItem struct {
	ID        uint      `gorm:"primaryKey" json:"wishlist_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_wishlist_user_product;not null" json:"user_id"`
	ProductID uint      `gorm:"uniqueIndex:idx_wishlist_user_product;not null" json:"product_id"`
	CreatedAt time.Time `json:"created_at"`

	Product Product `gorm:"foreignKey:ProductID" json:"product"`
}

func (WishlistItem) TableName() string {
	return "wishlist"
}

type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"uniqueIndex:idx_follow_pair;not null" json:"follower_id"`
	FollowingID uint      `gorm:"uniqueIndex:idx_follow_pair;not null" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type FollowCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

const (
	ReportOpen     = "open"
	ReportResolved = "resolved"
)

// Report is an abuse report against a story, reviewed by admins.
type Report struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReporterID uint      `gorm:"index;not null" json:"reporter_id"`
	StoryID    uint      `gorm:"index;not null" json:"story_id"`
	Reason     string    `gorm:"type:text;not null" json:"reason"`
	Status     string    `gorm:"default:'open';size:20" json:"status"`
	CreatedAt  time.Time `json:"created_at"`

	Reporter User `gorm:"foreignKey:ReporterID" json:"reporter"`
}
