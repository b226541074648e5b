package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/script-runner/pkg/state"
	"github.com/jwebster45206/script-runner/pkg/storage"
)

const (
	stateKeyPrefix = "execution-state:"
	historySuffix  = ":history"
)

// RedisStorage implements the Storage interface using Redis. The current
// snapshot lives under execution-state:<character>; earlier snapshots are kept
// newest-first in a capped list under execution-state:<character>:history.
type RedisStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	backups int
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance. redisURL may be a
// redis:// URL or a bare host:port.
func NewRedisStorage(redisURL string, backups int, logger *slog.Logger) *RedisStorage {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	return NewRedisStorageWithClient(redis.NewClient(opt), backups, logger)
}

// NewRedisStorageWithClient wraps an existing client.
func NewRedisStorageWithClient(client *redis.Client, backups int, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{
		client:  client,
		logger:  logger,
		backups: max(backups, 0),
	}
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func stateKey(character string) string {
	return stateKeyPrefix + character
}

// SaveExecutionState pushes the current snapshot onto the history list and
// replaces it in one transaction.
func (r *RedisStorage) SaveExecutionState(ctx context.Context, st *state.ExecutionState) error {
	if st == nil {
		return errors.New("execution state cannot be nil")
	}
	st.TruncateLog()
	data, err := json.Marshal(st)
	if err != nil {
		r.logger.Error("Failed to marshal execution state", "character", st.Character, "error", err)
		return fmt.Errorf("failed to marshal execution state: %w", err)
	}

	key := stateKey(st.Character)
	prev, err := r.client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Error("Failed to read execution state", "character", st.Character, "error", err)
		return fmt.Errorf("failed to read execution state: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != "" && r.backups > 0 {
			pipe.LPush(ctx, key+historySuffix, prev)
			pipe.LTrim(ctx, key+historySuffix, 0, int64(r.backups-1))
		}
		pipe.Set(ctx, key, data, 0)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save execution state", "character", st.Character, "error", err)
		return fmt.Errorf("failed to save execution state: %w", err)
	}
	return nil
}

// LoadExecutionState returns the current snapshot or, if it cannot be decoded,
// the newest decodable one from the history list.
func (r *RedisStorage) LoadExecutionState(ctx context.Context, character string) (*state.ExecutionState, error) {
	key := stateKey(character)

	var candidates []string
	cur, err := r.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		candidates = append(candidates, cur)
	case !errors.Is(err, redis.Nil):
		r.logger.Error("Failed to load execution state", "character", character, "error", err)
		return nil, fmt.Errorf("failed to load execution state: %w", err)
	}

	history, err := r.client.LRange(ctx, key+historySuffix, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load execution state history: %w", err)
	}
	candidates = append(candidates, history...)

	for i, data := range candidates {
		var st state.ExecutionState
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			r.logger.Warn("Skipping corrupt execution state", "character", character, "index", i, "error", err)
			continue
		}
		if err := st.Validate(); err != nil {
			r.logger.Warn("Skipping invalid execution state", "character", character, "index", i, "error", err)
			continue
		}
		st.Normalize()
		return &st, nil
	}

	if len(candidates) == 0 {
		r.logger.Debug("Execution state not found", "character", character)
	}
	return nil, nil
}

func (r *RedisStorage) DeleteExecutionState(ctx context.Context, character string) error {
	key := stateKey(character)
	if err := r.client.Del(ctx, key, key+historySuffix).Err(); err != nil {
		r.logger.Error("Failed to delete execution state", "character", character, "error", err)
		return fmt.Errorf("failed to delete execution state: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListCharacters(ctx context.Context) ([]string, error) {
	names := []string{}
	iter := r.client.Scan(ctx, 0, stateKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, historySuffix) {
			continue
		}
		names = append(names, strings.TrimPrefix(key, stateKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
