package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OfferPending  = "pending"
	OfferAccepted = "accepted"
	OfferRejected = "rejected"
)

type Offer struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	ProductID uint            `gorm:"index;not null" json:"product_id"`
	BuyerID   uint            `gorm:"index;not null" json:"buyer_id"`
	SellerID  uint            `gorm:"index;not null" json:"seller_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status    string          `gorm:"default:'pending';size:20;index" json:"status"`

	RespondedAt *time.Time `json:"responded_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Product Product `gorm:"foreignKey:ProductID" json:"product"`
	Buyer   User    `gorm:"foreignKey:BuyerID" json:"buyer"`
}
