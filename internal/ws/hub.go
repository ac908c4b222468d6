package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"thriftly_backend/internal/metrics"
	"thriftly_backend/internal/pubsub"
	"thriftly_backend/models"
)

// MessageStore persists chat messages before they are relayed.
type MessageStore interface {
	AppendMessage(ctx context.Context, senderID, receiverID, productID uint, text string) (*models.Message, error)
}

// Notifier creates the notification for a delivered chat message.
type Notifier interface {
	NotifyMessage(ctx context.Context, msg *models.Message) error
}

type delivery struct {
	topic   string
	payload []byte
}

// Hub maintains the set of active clients, their rooms, and fans out events
// received from the bus.
type Hub struct {
	bus     pubsub.Bus
	metrics metrics.Recorder

	// Messages and Notifier must be set before Start.
	Messages MessageStore
	Notifier Notifier

	// Registered clients. Owned by the run loop.
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	inbound    chan delivery

	// userClients and rooms are shared with client goroutines.
	userClients map[uint][]*Client
	rooms       map[string]map[*Client]bool
	mutex       sync.Mutex

	roomLocks sync.Map

	done   <-chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHub(bus pubsub.Bus, rec metrics.Recorder) *Hub {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Hub{
		bus:         bus,
		metrics:     rec,
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inbound:     make(chan delivery, 256),
		userClients: make(map[uint][]*Client),
		rooms:       make(map[string]map[*Client]bool),
	}
}

// Start subscribes to the bus and launches the run loop. It returns once the
// subscription is live.
func (h *Hub) Start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	h.cancel = cancel
	h.done = ctx.Done()

	if err := h.bus.Subscribe(ctx, h.onBus); err != nil {
		cancel()
		return err
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(ctx)
	}()
	return nil
}

// Stop ends the run loop and disconnects every client.
func (h *Hub) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.wg.Wait()

	for client := range h.clients {
		h.remove(client)
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case d := <-h.inbound:
			h.deliver(d)
		}
	}
}

// Register hands a connected client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) add(client *Client) {
	h.clients[client] = true

	h.mutex.Lock()
	h.userClients[client.UserID] = append(h.userClients[client.UserID], client)
	count := len(h.userClients[client.UserID])
	h.mutex.Unlock()

	h.metrics.ConnectionOpened()
	slog.Debug("client connected", "user_id", client.UserID, "connections", count)
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	h.mutex.Lock()
	userConns := h.userClients[client.UserID]
	for i, conn := range userConns {
		if conn == client {
			h.userClients[client.UserID] = append(userConns[:i], userConns[i+1:]...)
			break
		}
	}
	if len(h.userClients[client.UserID]) == 0 {
		delete(h.userClients, client.UserID)
	}
	for room := range client.rooms {
		h.leaveLocked(client, room)
	}
	client.closed = true
	close(client.Send)
	h.mutex.Unlock()

	h.metrics.ConnectionClosed()
	slog.Debug("client disconnected", "user_id", client.UserID)
}

// JoinRoom subscribes c to room. Only the two users encoded in the room id
// may join. Joining twice is a no-op.
func (h *Hub) JoinRoom(c *Client, room string) error {
	_, a, b, err := models.ParseRoomID(room)
	if err != nil {
		return err
	}
	if c.UserID != a && c.UserID != b {
		return models.NewForbiddenError("Not a participant of this room")
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if c.closed {
		return nil
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[c] = true
	c.rooms[room] = true
	return nil
}

func (h *Hub) LeaveRoom(c *Client, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomMembers returns the ids of users with a connection subscribed to room.
func (h *Hub) RoomMembers(room string) []uint {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	var users []uint
	seen := make(map[uint]bool)
	for c := range h.rooms[room] {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			users = append(users, c.UserID)
		}
	}
	return users
}

// IsUserOnline reports whether the user has any open connection on this node.
func (h *Hub) IsUserOnline(userID uint) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	clients, ok := h.userClients[userID]
	return ok && len(clients) > 0
}

// PublishRoom sends an event to every member of room except origin.
func (h *Hub) PublishRoom(ctx context.Context, room string, origin *Client, event string, data interface{}) error {
	var originID string
	if origin != nil {
		originID = origin.ID
	}
	return h.publish(ctx, roomTopic(room), originID, event, data)
}

// PublishUser sends an event to every connection of userID. Nobody listening
// means the event is dropped.
func (h *Hub) PublishUser(ctx context.Context, userID uint, event string, data interface{}) error {
	return h.publish(ctx, userTopic(userID), "", event, data)
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(ctx context.Context, event string, data interface{}) error {
	return h.publish(ctx, topicAll, "", event, data)
}

func (h *Hub) publish(ctx context.Context, topic, origin, event string, data interface{}) error {
	frame, err := encodeEvent(event, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Origin: origin, Event: frame})
	if err != nil {
		return err
	}
	return h.bus.Publish(ctx, topic, payload)
}

func (h *Hub) onBus(topic string, payload []byte) {
	select {
	case h.inbound <- delivery{topic: topic, payload: payload}:
	case <-h.done:
	}
}

func (h *Hub) deliver(d delivery) {
	var env envelope
	if err := json.Unmarshal(d.payload, &env); err != nil {
		slog.Warn("dropping malformed bus payload", "topic", d.topic, "error", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	switch {
	case d.topic == topicAll:
		for _, conns := range h.userClients {
			for _, c := range conns {
				h.sendLocked(c, env.Event)
			}
		}
	case strings.HasPrefix(d.topic, topicRoomPrefix):
		for c := range h.rooms[strings.TrimPrefix(d.topic, topicRoomPrefix)] {
			if env.Origin != "" && c.ID == env.Origin {
				continue
			}
			h.sendLocked(c, env.Event)
		}
	case strings.HasPrefix(d.topic, topicUserPrefix):
		id, err := strconv.ParseUint(strings.TrimPrefix(d.topic, topicUserPrefix), 10, 64)
		if err != nil {
			return
		}
		for _, c := range h.userClients[uint(id)] {
			h.sendLocked(c, env.Event)
		}
	}
}

// sendLocked never blocks. A full buffer drops the event for that client.
func (h *Hub) sendLocked(c *Client, frame []byte) {
	if c.closed {
		return
	}
	select {
	case c.Send <- frame:
	default:
		h.metrics.BroadcastDropped()
		slog.Warn("client send buffer full, event dropped", "user_id", c.UserID)
	}
}

// sendDirect writes a frame to a single client, bypassing the bus.
func (h *Hub) sendDirect(c *Client, event string, data interface{}) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		return
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.sendLocked(c, frame)
}

func (h *Hub) roomLock(room string) *sync.Mutex {
	l, _ := h.roomLocks.LoadOrStore(room, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// SendMessage persists a chat message from c and relays it to the room. The
// room lock makes store order and relay order the same.
func (h *Hub) SendMessage(ctx context.Context, c *Client, p SendMessagePayload) error {
	room := models.RoomID(c.UserID, p.ReceiverID, p.ProductID)
	if p.Room != "" && p.Room != room {
		return models.NewValidationError("Room does not match the conversation")
	}

	lock := h.roomLock(room)
	lock.Lock()
	msg, err := h.Messages.AppendMessage(ctx, c.UserID, p.ReceiverID, p.ProductID, p.Message)
	if err != nil {
		lock.Unlock()
		return err
	}
	out := newChatMessage(room, msg)
	if err := h.PublishRoom(ctx, room, c, EventReceiveMessage, out); err != nil {
		slog.Warn("chat broadcast failed", "room", room, "message_id", msg.ID, "error", err)
	}
	lock.Unlock()

	h.metrics.ChatMessage()
	if err := h.JoinRoom(c, room); err != nil {
		slog.Warn("sender could not join room", "room", room, "error", err)
	}
	h.sendDirect(c, EventMessageSent, out)

	if h.Notifier != nil {
		if err := h.Notifier.NotifyMessage(ctx, msg); err != nil {
			slog.Warn("message notification failed", "message_id", msg.ID, "error", err)
		}
	}
	return nil
}

func clientErrorMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Kind != models.KindStorage {
		return appErr.Message
	}
	return "Message could not be delivered"
}
