// Package pubsub carries realtime events between the processes that hold
// websocket connections. Delivery is best effort: a message published while
// nobody listens is dropped.
package pubsub

import (
	"context"
	"sync"
)

// Handler receives every message published on any topic.
type Handler func(topic string, payload []byte)

type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers h and returns once the subscription is live. h keeps
	// receiving messages until ctx is done.
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

// MemoryBus delivers synchronously to in-process subscribers, in publish
// order.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[int]Handler)}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		h(topic, payload)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, h Handler) error {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.handlers = make(map[int]Handler)
	b.mu.Unlock()
	return nil
}
