package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderCreated   = "created"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
)

// orderStatusRank orders fulfilment states; an order only moves forward.
var orderStatusRank = map[string]int{
	OrderCreated:   0,
	OrderShipped:   1,
	OrderDelivered: 2,
}

func ValidOrderTransition(from, to string) bool {
	f, ok := orderStatusRank[from]
	if !ok {
		return false
	}
	t, ok := orderStatusRank[to]
	if !ok {
		return false
	}
	return t == f+1
}

type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ProductID       uint            `gorm:"uniqueIndex;not null" json:"product_id"`
	BuyerID         uint            `gorm:"index;not null" json:"buyer_id"`
	SellerID        uint            `gorm:"index;not null" json:"seller_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status          string          `gorm:"default:'created';size:20" json:"status"`
	TransactionUUID string          `gorm:"size:100" json:"transaction_uuid,omitempty"`

	CreatedAt time.Time `json:"order_date"`
	UpdatedAt time.Time `json:"updated_at"`

	Product Product `gorm:"foreignKey:ProductID" json:"product"`
	Buyer   User    `gorm:"foreignKey:BuyerID" json:"buyer"`
	Seller  User    `gorm:"foreignKey:SellerID" json:"seller"`
}
