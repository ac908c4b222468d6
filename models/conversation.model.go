package models

import (
	"time"
)

// Conversation is derived from the message log, one per {unordered pair, product}.
// It is never stored.
type Conversation struct {
	RoomID string `json:"room"`

	OtherUserID     uint   `json:"other_user_id"`
	OtherUsername   string `json:"other_username"`
	OtherProfilePic string `json:"other_profile_pic"`
	ProductID       uint   `json:"product_id"`
	ProductTitle    string `json:"product_title"`
	ProductImageURL string `json:"product_image_url"`

	LastMessage   string    `json:"last_message"`
	LastSenderID  uint      `json:"last_sender_id"`
	LastMessageAt time.Time `json:"last_message_at"`
}
