package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_DeliversInOrder(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	require.NoError(t, bus.Subscribe(ctx, func(topic string, payload []byte) {
		got = append(got, topic+"="+string(payload))
	}))

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, bus.Publish(ctx, "room:1", []byte(p)))
	}

	assert.Equal(t, []string{"room:1=a", "room:1=b", "room:1=c"}, got)
}

func TestMemoryBus_PublishWithoutSubscribersIsDropped(t *testing.T) {
	bus := NewMemoryBus()
	assert.NoError(t, bus.Publish(context.Background(), "user:9", []byte("x")))
}

func TestMemoryBus_UnsubscribeOnCancel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	require.NoError(t, bus.Subscribe(ctx, func(string, []byte) { calls++ }))
	require.NoError(t, bus.Publish(context.Background(), "all", nil))
	assert.Equal(t, 1, calls)

	cancel()
	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.handlers) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "all", nil))
	assert.Equal(t, 1, calls)
}
