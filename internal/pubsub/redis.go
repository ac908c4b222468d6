package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "thriftly:"

// RedisBus fans events out through Redis PUBLISH so every API process sees
// them. Redis pub/sub keeps per-publisher order, which is all the hub needs.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// ConnectRedis initializes a Redis client and verifies it with a PING.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, channelPrefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, h Handler) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis psubscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					slog.Warn("redis subscription channel closed")
					return
				}
				h(strings.TrimPrefix(msg.Channel, channelPrefix), []byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
