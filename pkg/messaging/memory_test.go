package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	b := NewMemoryBroker(4)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "notifications.u1")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "notifications.u1", Message{Type: "examination", Payload: "done"}))
	require.NoError(t, b.Publish(ctx, "notifications.u2", Message{Type: "ignored"}))

	select {
	case raw := <-ch:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "examination", msg.Type)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	select {
	case raw := <-ch:
		t.Fatalf("unexpected message %s", raw)
	default:
	}
}

func TestMemoryBroker_CancelUnsubscribes(t *testing.T) {
	b := NewMemoryBroker(1)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx, "c")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestMemoryBroker_Closed(t *testing.T) {
	b := NewMemoryBroker(1)
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(context.Background(), "c", "x"), ErrClosed)
	_, err := b.Subscribe(context.Background(), "c")
	assert.ErrorIs(t, err, ErrClosed)
}
