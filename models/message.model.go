package models

import (
	"time"
)

// Message is immutable once written. Sender, receiver and product together
// identify the room it belongs to.
type Message struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	SenderID   uint   `gorm:"index:idx_messages_triple;not null" json:"sender_id"`
	ReceiverID uint   `gorm:"index:idx_messages_triple;not null" json:"receiver_id"`
	ProductID  uint   `gorm:"index:idx_messages_triple;not null" json:"product_id"`
	Text       string `gorm:"column:message;type:text;not null" json:"message"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Sender User `gorm:"foreignKey:SenderID" json:"-"`
}
