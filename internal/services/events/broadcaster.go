package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/script-runner/pkg/executor"
	"github.com/jwebster45206/script-runner/pkg/state"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRequestQueued EventType = "request.queued"
	EventTypeLog           EventType = "script.log"
	EventTypeState         EventType = "script.state"
	EventTypeLevelUp       EventType = "script.level_up"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	Character string         `json:"character"`
	RequestID string         `json:"request_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel returns the pub/sub channel carrying events for one character.
func Channel(character string) string {
	return fmt.Sprintf("script-events:%s", character)
}

// Broadcaster publishes interpreter events to Redis Pub/Sub for SSE
// distribution. Publishing is fire-and-forget: failures are logged only.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
	timeout     time.Duration
}

// Ensure Broadcaster implements executor.Observer
var _ executor.Observer = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
		timeout:     2 * time.Second,
	}
}

// OnLog publishes a script.log event.
func (b *Broadcaster) OnLog(character, line string) {
	b.publish(Event{
		Type:      EventTypeLog,
		Character: character,
		Data:      map[string]any{"line": line},
	})
}

// OnStateChange publishes a script.state event.
func (b *Broadcaster) OnStateChange(st *state.ExecutionState) {
	data := map[string]any{
		"status":       st.Status,
		"current_line": st.CurrentLine,
		"run_id":       st.RunID.String(),
		"metrics":      st.Metrics,
	}
	if st.Error != "" {
		data["error"] = st.Error
	}
	b.publish(Event{
		Type:      EventTypeState,
		Character: st.Character,
		Data:      data,
	})
}

// OnLevelUp publishes a script.level_up event.
func (b *Broadcaster) OnLevelUp(character, skill string, from, to int) {
	b.publish(Event{
		Type:      EventTypeLevelUp,
		Character: character,
		Data: map[string]any{
			"skill": skill,
			"from":  from,
			"to":    to,
		},
	})
}

// PublishRequestQueued publishes a request.queued event
func (b *Broadcaster) PublishRequestQueued(ctx context.Context, character, requestID string) error {
	return b.publishToCharacter(ctx, Event{
		Type:      EventTypeRequestQueued,
		Character: character,
		RequestID: requestID,
		Data:      map[string]any{"status": "queued"},
	})
}

func (b *Broadcaster) publish(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	_ = b.publishToCharacter(ctx, event)
}

// publishToCharacter publishes an event to the character-specific channel
func (b *Broadcaster) publishToCharacter(ctx context.Context, event Event) error {
	channel := Channel(event.Character)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)

	return nil
}

// Subscribe streams decoded events for character until ctx is cancelled. The
// returned channel is closed when the subscription ends.
func Subscribe(ctx context.Context, redisClient *redis.Client, character string) (<-chan Event, error) {
	sub := redisClient.Subscribe(ctx, Channel(character))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
