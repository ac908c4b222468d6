package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SellerID    uint            `gorm:"index;not null" json:"seller_id"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Category    string          `gorm:"size:50;index" json:"category"`
	Size        string          `gorm:"size:20" json:"size"`
	Condition   string          `gorm:"column:item_condition;size:30" json:"condition"`
	ImageURL    string          `json:"image_url"`
	IsSold      bool            `gorm:"default:false;index" json:"is_sold"`
	Views       int             `gorm:"default:0" json:"views"`

	// Paid promotion; listings with a future BoostedUntil sort first.
	BoostedUntil *time.Time `json:"boosted_until"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Seller User `gorm:"foreignKey:SellerID" json:"seller"`
}

func (p *Product) IsBoosted(now time.Time) bool {
	return p.BoostedUntil != nil && p.BoostedUntil.After(now)
}
