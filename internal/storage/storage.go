package storage

import (
	"fmt"
	"log/slog"

	"github.com/jwebster45206/script-runner/internal/config"
	"github.com/jwebster45206/script-runner/pkg/storage"
)

// New returns the ExecutionState backend selected by cfg.StateBackend.
func New(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StateBackend {
	case "", "file":
		return NewFileStorage(cfg.StateDir, cfg.StateBackups, logger), nil
	case "redis":
		return NewRedisStorage(cfg.RedisURL, cfg.StateBackups, logger), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}
