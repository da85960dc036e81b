package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/chatflow/internal/display"
	"github.com/gosuda/chatflow/internal/store/memory"
)

var _ display.Broker = (*memory.PubSub)(nil)

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPubSub_FanOut(t *testing.T) {
	t.Parallel()

	ps := memory.New(4)
	ctx := context.Background()

	a, cleanupA, err := ps.Subscribe(ctx, "chat:1")
	require.NoError(t, err)
	defer cleanupA()
	b, cleanupB, err := ps.Subscribe(ctx, "chat:1")
	require.NoError(t, err)
	defer cleanupB()
	other, cleanupOther, err := ps.Subscribe(ctx, "chat:2")
	require.NoError(t, err)
	defer cleanupOther()

	require.NoError(t, ps.Publish(ctx, "chat:1", []byte("hello")))

	assert.Equal(t, "hello", string(receive(t, a)))
	assert.Equal(t, "hello", string(receive(t, b)))
	assert.Empty(t, other)
}

func TestPubSub_PublishWithoutSubscribers(t *testing.T) {
	t.Parallel()

	ps := memory.New(0)
	assert.NoError(t, ps.Publish(context.Background(), "chat:none", []byte("x")))
}

func TestPubSub_SlowSubscriberDropsMessages(t *testing.T) {
	t.Parallel()

	ps := memory.New(1)
	ctx := context.Background()

	ch, cleanup, err := ps.Subscribe(ctx, "c")
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, ps.Publish(ctx, "c", []byte("first")))
	require.NoError(t, ps.Publish(ctx, "c", []byte("second")))

	assert.Equal(t, "first", string(receive(t, ch)))
	assert.Empty(t, ch)
}

func TestPubSub_CleanupAndContext(t *testing.T) {
	t.Parallel()

	ps := memory.New(1)

	ch, cleanup, err := ps.Subscribe(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, 1, ps.Subscribers("c"))

	cleanup()
	cleanup()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, ps.Subscribers("c"))

	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err = ps.Subscribe(ctx, "c")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed on context cancel")
	}
	assert.Eventually(t, func() bool { return ps.Subscribers("c") == 0 }, time.Second, 10*time.Millisecond)
}

func TestPubSub_Close(t *testing.T) {
	t.Parallel()

	ps := memory.New(1)
	ch, cleanup, err := ps.Subscribe(context.Background(), "c")
	require.NoError(t, err)

	require.NoError(t, ps.Close())
	_, ok := <-ch
	assert.False(t, ok)
	cleanup()

	require.ErrorIs(t, ps.Publish(context.Background(), "c", nil), memory.ErrClosed)
	_, _, err = ps.Subscribe(context.Background(), "c")
	require.ErrorIs(t, err, memory.ErrClosed)
	require.ErrorIs(t, ps.Ping(context.Background()), memory.ErrClosed)
	require.NoError(t, ps.Close())
}
