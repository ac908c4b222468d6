package models

import "time"

type Review struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReviewerID uint      `gorm:"index;not null" json:"reviewer_id"`
	SellerID   uint      `gorm:"index;not null" json:"seller_id"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment"`
	CreatedAt  time.Time `json:"created_at"`

	Reviewer User `gorm:"foreignKey:ReviewerID" json:"-"`

	ReviewerName string `gorm:"-" json:"reviewer_name"`
	ReviewerPic  string `gorm:"-" json:"reviewer_profile_pic"`
}

type RatingSummary struct {
	Avg   float64 `json:"avg"`
	Count int64   `json:"count"`
}
