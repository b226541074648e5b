package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/script-runner/pkg/queue"
)

const requestsKey = "run-requests"

// controlTTL bounds how long an unconsumed control signal lingers.
const controlTTL = 10 * time.Minute

// RunQueue holds pending run requests and per-character control signals.
type RunQueue struct {
	client *Client
	logger *slog.Logger
}

func NewRunQueue(client *Client, logger *slog.Logger) *RunQueue {
	return &RunQueue{
		client: client,
		logger: logger,
	}
}

func controlKey(character string) string {
	return fmt.Sprintf("script-control:%s", character)
}

// EnqueueRequest adds a run request to the end of the global queue
func (q *RunQueue) EnqueueRequest(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, requestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	q.logger.Debug("Run request enqueued", "request_id", req.RequestID, "character", req.Character)
	return nil
}

// DequeueRequest removes and returns the next request from the global queue
// Returns nil if queue is empty
func (q *RunQueue) DequeueRequest(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Queue is empty
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	req, err := queue.FromJSON([]byte(result))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// BlockingDequeueRequest waits up to timeout for a request. It returns nil, nil
// when the wait times out or ctx ends.
func (q *RunQueue) BlockingDequeueRequest(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	req, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// RequestQueueDepth returns the number of requests in the global queue
func (q *RunQueue) RequestQueueDepth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}

// SetControl posts a control signal for a character, replacing any pending one.
func (q *RunQueue) SetControl(ctx context.Context, character string, c queue.Control) error {
	if err := q.client.rdb.Set(ctx, controlKey(character), string(c), controlTTL).Err(); err != nil {
		return fmt.Errorf("failed to set control: %w", err)
	}
	q.logger.Info("Control signal posted", "character", character, "control", c)
	return nil
}

// TakeControl returns and clears the pending control signal, or "" if none.
func (q *RunQueue) TakeControl(ctx context.Context, character string) (queue.Control, error) {
	val, err := q.client.rdb.GetDel(ctx, controlKey(character)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read control: %w", err)
	}
	return queue.Control(val), nil
}

// ClearControl drops any pending control signal.
func (q *RunQueue) ClearControl(ctx context.Context, character string) error {
	if err := q.client.rdb.Del(ctx, controlKey(character)).Err(); err != nil {
		return fmt.Errorf("failed to clear control: %w", err)
	}
	return nil
}
