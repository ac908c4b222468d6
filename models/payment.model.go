package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentPurchase = "purchase"
	PaymentBoost    = "boost"

	PaymentPending  = "pending"
	PaymentComplete = "complete"
	PaymentFailed   = "failed"
	// PaymentRefundRequired marks money taken for an order or boost that could not be applied.
	PaymentRefundRequired = "refund_required"
)

// Payment tracks one round trip through the payment gateway.
type Payment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	TransactionUUID string          `gorm:"uniqueIndex;size:100;not null" json:"transaction_uuid"`
	UserID          uint            `gorm:"index;not null" json:"user_id"`
	ProductID       uint            `gorm:"index;not null" json:"product_id"`
	Purpose         string          `gorm:"size:20;not null" json:"purpose"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status          string          `gorm:"default:'pending';size:20" json:"status"`
	GatewayRef      string          `gorm:"size:100" json:"gateway_ref"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
