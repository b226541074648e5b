package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL string

	// Game API
	ArtifactsAPIURL string
	ArtifactsToken  string
	GameDataTTL     time.Duration // map and item lookups cached in Redis

	// Execution state storage
	StateBackend string // "file" or "redis"
	StateDir     string
	StateBackups int

	// Interpreter limits
	MaxLoopIterations int
	CooldownMargin    time.Duration

	WorkerID string
}

func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		ArtifactsAPIURL:   strings.TrimRight(getEnv("ARTIFACTS_API_URL", "https://api.artifactsmmo.com"), "/"),
		ArtifactsToken:    getEnv("ARTIFACTS_TOKEN", ""),
		GameDataTTL:       time.Duration(getEnvInt("GAME_DATA_CACHE_MINUTES", 60)) * time.Minute,
		StateBackend:      strings.ToLower(getEnv("STATE_BACKEND", "file")),
		StateDir:          getEnv("STATE_DIR", "./data/state"),
		StateBackups:      getEnvInt("STATE_BACKUPS", 3),
		MaxLoopIterations: getEnvInt("MAX_LOOP_ITERATIONS", 10000),
		CooldownMargin:    time.Duration(getEnvInt("COOLDOWN_MARGIN_MS", 500)) * time.Millisecond,
		WorkerID:          getEnv("WORKER_ID", ""),
	}
}

// RequireGameAPI reports missing settings for commands that call the game API.
func (c *Config) RequireGameAPI() error {
	if c.ArtifactsToken == "" {
		return errors.New("ARTIFACTS_TOKEN is not set")
	}
	if c.ArtifactsAPIURL == "" {
		return errors.New("ARTIFACTS_API_URL is not set")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}
