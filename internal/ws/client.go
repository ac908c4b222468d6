package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096 // 4KB

	sendBufferSize = 64
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection. Nil in tests.
	Conn *websocket.Conn

	// Buffered channel of outbound frames. Closed by the hub.
	Send chan []byte

	// Authenticated user behind the connection.
	UserID uint

	// Connection id, used to skip the sender on room relays.
	ID string

	limiter *rate.Limiter

	// Guarded by Hub.mutex.
	rooms  map[string]bool
	closed bool
}

// NewClient builds a client for userID. perSecond and burst bound how many
// events the client may send.
func NewClient(h *Hub, conn *websocket.Conn, userID uint, perSecond float64, burst int) *Client {
	return &Client{
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, sendBufferSize),
		UserID:  userID,
		ID:      uuid.NewString(),
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		rooms:   make(map[string]bool),
	}
}

// ReadPump pumps events from the websocket connection to the hub.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "user_id", c.UserID, "error", err)
			}
			break
		}
		c.handleMessage(ctx, message)
	}
}

// WritePump pumps frames from the hub to the websocket connection, one frame
// per event.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, message []byte) {
	var ev Event
	if err := json.Unmarshal(message, &ev); err != nil {
		c.sendError("Malformed event")
		return
	}

	switch ev.Event {
	case EventJoinRoom, EventLeaveRoom:
		var room string
		if err := json.Unmarshal(ev.Data, &room); err != nil || room == "" {
			c.sendError("Room is required")
			return
		}
		if ev.Event == EventLeaveRoom {
			c.Hub.LeaveRoom(c, room)
			return
		}
		if err := c.Hub.JoinRoom(c, room); err != nil {
			c.sendError(clientErrorMessage(err))
		}

	case EventSendMessage:
		if !c.limiter.Allow() {
			c.sendError("Too many messages, slow down")
			return
		}
		var p SendMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.sendError("Malformed message")
			return
		}
		if err := c.Hub.SendMessage(ctx, c, p); err != nil {
			slog.Debug("message rejected", "user_id", c.UserID, "error", err)
			c.sendError(clientErrorMessage(err))
		}

	default:
		c.sendError("Unknown event")
	}
}

func (c *Client) sendError(message string) {
	c.Hub.sendDirect(c, EventError, errorPayload{Message: message})
}
