package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/script-runner/internal/services/queue"
	queuePkg "github.com/jwebster45206/script-runner/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second
	lockTTL       = 30 * time.Second
	requeueDelay  = time.Second
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var refreshScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Worker processes run requests from the queue, one character at a time per
// worker.
type Worker struct {
	id          string
	queue       *queue.RunQueue
	processor   *ScriptProcessor
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(runQueue *queue.RunQueue, processor *ScriptProcessor, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       runQueue,
		processor:   processor,
		redisClient: redisClient,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the worker's lock owner identity.
func (w *Worker) ID() string {
	return w.id
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				w.pause(time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker. A script in progress is paused at its
// next suspension point and can be resumed by a later request.
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

func (w *Worker) pause(d time.Duration) {
	select {
	case <-w.ctx.Done():
	case <-time.After(d):
	}
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.BlockingDequeueRequest(w.ctx, workerTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		// Queue is empty or timeout occurred - this is normal
		return nil
	}

	w.log.Info("Received request from queue",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"character", req.Character,
	)

	locked, err := w.acquireLock(req.Character)
	if err != nil {
		return fmt.Errorf("failed to acquire character lock: %w", err)
	}
	if !locked {
		// Another worker is running this character; try again later
		w.log.Info("Character already locked, re-queueing request",
			"worker_id", w.id,
			"request_id", req.RequestID,
			"character", req.Character,
		)
		if err := w.queue.EnqueueRequest(context.WithoutCancel(w.ctx), req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		w.pause(requeueDelay)
		return nil
	}
	defer w.releaseLock(req.Character)

	return w.processRequest(req)
}

// processRequest runs the script while keeping the lock alive.
func (w *Worker) processRequest(req *queuePkg.Request) error {
	start := time.Now()
	ctx := context.WithoutCancel(w.ctx)

	// A signal posted before this run started does not apply to it.
	if err := w.queue.ClearControl(ctx, req.Character); err != nil {
		w.log.Warn("Failed to clear stale control", "error", err, "character", req.Character)
	}

	keepAlive, stopKeepAlive := context.WithCancel(ctx)
	defer stopKeepAlive()
	go w.refreshLock(keepAlive, req.Character)

	st, err := w.processor.Process(ctx, req, w.queue, w.ctx.Done())
	if err != nil {
		if errors.Is(err, ErrNoScript) {
			w.log.Warn("Nothing to resume", "character", req.Character, "request_id", req.RequestID)
			return nil
		}
		return fmt.Errorf("script for %s failed: %w", req.Character, err)
	}

	w.log.Info("Script run finished",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"character", req.Character,
		"status", st.Status,
		"actions", st.Metrics.ActionsExecuted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func lockKey(character string) string {
	return fmt.Sprintf("character-lock:%s", character)
}

// acquireLock attempts to acquire a lock for a character
// Returns true if lock was acquired, false if already locked
func (w *Worker) acquireLock(character string) (bool, error) {
	return w.redisClient.SetNX(w.ctx, lockKey(character), w.id, lockTTL).Result()
}

// refreshLock extends the lock until ctx is done.
func (w *Worker) refreshLock(ctx context.Context, character string) {
	ticker := time.NewTicker(lockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := refreshScript.Run(ctx, w.redisClient, []string{lockKey(character)}, w.id, lockTTL.Milliseconds()).Err()
			if err != nil && !errors.Is(err, context.Canceled) {
				w.log.Error("Failed to refresh character lock", "error", err, "character", character)
			}
		}
	}
}

// releaseLock releases the lock for a character
func (w *Worker) releaseLock(character string) {
	// Only delete if we own the lock
	ctx := context.WithoutCancel(w.ctx)
	if err := releaseScript.Run(ctx, w.redisClient, []string{lockKey(character)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release character lock", "error", err, "character", character)
	}
}
