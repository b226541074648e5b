package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jwebster45206/script-runner/pkg/game"
)

// GameDataAPI is a game client that can also answer static lookups.
type GameDataAPI interface {
	game.API
	game.Locator
	game.SlotResolver
}

// CachedGameData answers map and item lookups from a cache before asking the
// game API. Character and Do pass straight through. Cache errors are logged
// and the lookup falls back to the API.
type CachedGameData struct {
	GameDataAPI
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

var _ GameDataAPI = (*CachedGameData)(nil)

// NewCachedGameData wraps api with cache; entries live for ttl.
func NewCachedGameData(api GameDataAPI, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedGameData {
	return &CachedGameData{
		GameDataAPI: api,
		cache:       cache,
		ttl:         ttl,
		logger:      logger,
	}
}

type cachedLocation struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func locateKey(code string) string { return "game-data:locate:" + code }

func slotKey(code string) string { return "game-data:slot:" + code }

func (c *CachedGameData) Locate(ctx context.Context, code string) (int, int, error) {
	var loc cachedLocation
	if c.lookup(ctx, locateKey(code), &loc) {
		return loc.X, loc.Y, nil
	}

	x, y, err := c.GameDataAPI.Locate(ctx, code)
	if err != nil {
		return 0, 0, err
	}
	c.store(ctx, locateKey(code), cachedLocation{X: x, Y: y})
	return x, y, nil
}

func (c *CachedGameData) ItemSlot(ctx context.Context, code string) (string, error) {
	var slot string
	if c.lookup(ctx, slotKey(code), &slot) {
		return slot, nil
	}

	slot, err := c.GameDataAPI.ItemSlot(ctx, code)
	if err != nil {
		return "", err
	}
	c.store(ctx, slotKey(code), slot)
	return slot, nil
}

func (c *CachedGameData) lookup(ctx context.Context, key string, v any) bool {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Game data cache read failed", "key", key, "error", err)
		return false
	}
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		c.logger.Warn("Discarding unreadable game data cache entry", "key", key, "error", err)
		_ = c.cache.Del(ctx, key)
		return false
	}
	c.logger.Debug("Game data cache hit", "key", key)
	return true
}

func (c *CachedGameData) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("Game data cache write failed", "key", key, "error", err)
	}
}
