package events

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/script-runner/pkg/state"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcaster_ObserverEvents(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := Subscribe(ctx, rdb, "hero")
	require.NoError(t, err)

	b := NewBroadcaster(rdb, testLogger())

	b.OnLog("hero", "Moved to (2,0)")
	ev := receive(t, events)
	assert.Equal(t, EventTypeLog, ev.Type)
	assert.Equal(t, "hero", ev.Character)
	assert.Equal(t, "Moved to (2,0)", ev.Data["line"])

	st := state.NewExecutionState("hero", "rest")
	st.Status = state.StatusPaused
	st.CurrentLine = 3
	b.OnStateChange(st)
	ev = receive(t, events)
	assert.Equal(t, EventTypeState, ev.Type)
	assert.Equal(t, "paused", ev.Data["status"])
	assert.Equal(t, 3.0, ev.Data["current_line"])

	b.OnLevelUp("hero", "mining", 4, 5)
	ev = receive(t, events)
	assert.Equal(t, EventTypeLevelUp, ev.Type)
	assert.Equal(t, "mining", ev.Data["skill"])
	assert.Equal(t, 5.0, ev.Data["to"])
}

func TestBroadcaster_OtherCharacterNotDelivered(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := Subscribe(ctx, rdb, "hero")
	require.NoError(t, err)

	b := NewBroadcaster(rdb, testLogger())
	b.OnLog("villain", "not for hero")
	require.NoError(t, b.PublishRequestQueued(ctx, "hero", "req-1"))

	ev := receive(t, events)
	assert.Equal(t, EventTypeRequestQueued, ev.Type)
	assert.Equal(t, "req-1", ev.RequestID)
}

func TestBroadcaster_PublishFailureIsSwallowed(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	b := NewBroadcaster(rdb, testLogger())
	b.timeout = 200 * time.Millisecond
	mr.Close()

	assert.NotPanics(t, func() { b.OnLog("hero", "lost") })
	assert.Error(t, b.PublishRequestQueued(context.Background(), "hero", "req-2"))
}

func TestSubscribe_ClosesOnCancel(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := Subscribe(ctx, rdb, "hero")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not close")
	}
}
