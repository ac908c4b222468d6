package models

import (
	"fmt"
)

// RoomID names the conversation between two users about one product. The
// participant order does not matter.
func RoomID(a, b, productID uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("prod-%d-u%d-u%d", productID, a, b)
}

// ParseRoomID is the inverse of RoomID.
func ParseRoomID(room string) (productID, a, b uint, err error) {
	var n int
	n, err = fmt.Sscanf(room, "prod-%d-u%d-u%d", &productID, &a, &b)
	if err != nil || n != 3 {
		return 0, 0, 0, NewValidationError("Invalid room")
	}
	if RoomID(a, b, productID) != room {
		return 0, 0, 0, NewValidationError("Invalid room")
	}
	return productID, a, b, nil
}
