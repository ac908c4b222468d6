package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"thriftly_backend/models"
)

// Event names exchanged over the socket.
const (
	EventJoinRoom          = "join_room"
	EventLeaveRoom         = "leave_room"
	EventSendMessage       = "send_message"
	EventReceiveMessage    = "receive_message"
	EventMessageSent       = "message_sent"
	EventError             = "error"
	EventStoryLikeUpdate   = "story_like_update"
	EventNewComment        = "new_comment"
	EventCommentLikeUpdate = "comment_like_update"
)

// NotificationEvent is the per-user notification event name.
func NotificationEvent(userID uint) string {
	return fmt.Sprintf("notification_%d", userID)
}

// Event is the frame format in both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the data of a send_message event.
type SendMessagePayload struct {
	Room       string `json:"room"`
	ReceiverID uint   `json:"receiver_id"`
	ProductID  uint   `json:"product_id"`
	Message    string `json:"message"`
}

// ChatMessage is what room members receive for every persisted message.
type ChatMessage struct {
	ID         uint      `json:"id"`
	Room       string    `json:"room"`
	SenderID   uint      `json:"sender_id"`
	ReceiverID uint      `json:"receiver_id"`
	ProductID  uint      `json:"product_id"`
	Message    string    `json:"message"`
	Time       time.Time `json:"time"`
}

func newChatMessage(room string, m *models.Message) ChatMessage {
	return ChatMessage{
		ID:         m.ID,
		Room:       room,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		ProductID:  m.ProductID,
		Message:    m.Text,
		Time:       m.CreatedAt,
	}
}

type errorPayload struct {
	Message string `json:"message"`
}

func encodeEvent(name string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: name, Data: raw})
}

// envelope wraps an encoded event on the bus. Origin is the id of the client
// that caused it, which room delivery skips.
type envelope struct {
	Origin string          `json:"origin,omitempty"`
	Event  json.RawMessage `json:"event"`
}

const (
	topicAll        = "all"
	topicRoomPrefix = "room:"
	topicUserPrefix = "user:"
)

func roomTopic(room string) string { return topicRoomPrefix + room }

func userTopic(userID uint) string { return fmt.Sprintf("%s%d", topicUserPrefix, userID) }
