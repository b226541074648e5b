package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/script-runner/pkg/queue"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	// Start miniredis
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	// Create queue client
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	redisURL := "redis://" + mr.Addr()

	client, err := NewClient(redisURL, logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create queue client: %v", err)
	}

	return client, mr
}

func newTestQueue(t *testing.T) (*RunQueue, *miniredis.Miniredis) {
	t.Helper()
	client, mr := setupTestRedis(t)
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRunQueue(client, logger), mr
}

func TestRunQueue_FIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for _, name := range []string{"hero", "alice", "bob"} {
		require.NoError(t, q.EnqueueRequest(ctx, &queue.Request{
			RequestID:  "req-" + name,
			Character:  name,
			Script:     "rest",
			EnqueuedAt: time.Now(),
		}))
	}

	depth, err := q.RequestQueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	for _, name := range []string{"hero", "alice", "bob"} {
		req, err := q.DequeueRequest(ctx)
		require.NoError(t, err)
		require.NotNil(t, req)
		assert.Equal(t, name, req.Character)
		assert.Equal(t, "req-"+name, req.RequestID)
		assert.Equal(t, "rest", req.Script)
	}

	req, err := q.DequeueRequest(ctx)
	require.NoError(t, err)
	assert.Nil(t, req, "empty queue returns nil")
}

func TestRunQueue_BlockingDequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueRequest(ctx, &queue.Request{RequestID: "r1", Character: "hero", Fresh: true}))

	req, err := q.BlockingDequeueRequest(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.True(t, req.Fresh)
	assert.Empty(t, req.Script)
}

func TestRunQueue_BlockingDequeueCancelled(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := q.BlockingDequeueRequest(ctx, 5*time.Second)
	assert.NoError(t, err)
	assert.Nil(t, req)
}

func TestRunQueue_BadPayload(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.Push(requestsKey, "{not json")
	require.NoError(t, err)

	_, err = q.DequeueRequest(context.Background())
	assert.Error(t, err)
}

func TestRunQueue_Control(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	c, err := q.TakeControl(ctx, "hero")
	require.NoError(t, err)
	assert.Empty(t, c)

	require.NoError(t, q.SetControl(ctx, "hero", queue.ControlPause))
	require.NoError(t, q.SetControl(ctx, "hero", queue.ControlStop))
	assert.True(t, mr.Exists("script-control:hero"))

	c, err = q.TakeControl(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, queue.ControlStop, c)

	c, err = q.TakeControl(ctx, "hero")
	require.NoError(t, err)
	assert.Empty(t, c, "control is consumed once")

	require.NoError(t, q.SetControl(ctx, "hero", queue.ControlPause))
	require.NoError(t, q.ClearControl(ctx, "hero"))
	assert.False(t, mr.Exists("script-control:hero"))
}
