package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STATE_BACKEND", "STATE_BACKUPS", "MAX_LOOP_ITERATIONS", "COOLDOWN_MARGIN_MS", "ARTIFACTS_TOKEN", "LOG_LEVEL", "GAME_DATA_CACHE_MINUTES"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "file", cfg.StateBackend)
	assert.Equal(t, 3, cfg.StateBackups)
	assert.Equal(t, 10000, cfg.MaxLoopIterations)
	assert.Equal(t, 500*time.Millisecond, cfg.CooldownMargin)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.GameDataTTL)
	assert.Error(t, cfg.RequireGameAPI())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STATE_BACKEND", "Redis")
	t.Setenv("STATE_BACKUPS", "5")
	t.Setenv("MAX_LOOP_ITERATIONS", "not-a-number")
	t.Setenv("COOLDOWN_MARGIN_MS", "1200")
	t.Setenv("ARTIFACTS_TOKEN", "secret")
	t.Setenv("ARTIFACTS_API_URL", "http://localhost:9000/")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GAME_DATA_CACHE_MINUTES", "5")

	cfg := Load()
	assert.Equal(t, "redis", cfg.StateBackend)
	assert.Equal(t, 5, cfg.StateBackups)
	assert.Equal(t, 10000, cfg.MaxLoopIterations)
	assert.Equal(t, 1200*time.Millisecond, cfg.CooldownMargin)
	assert.Equal(t, "http://localhost:9000", cfg.ArtifactsAPIURL)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.GameDataTTL)
	assert.NoError(t, cfg.RequireGameAPI())
}
