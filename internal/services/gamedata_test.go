package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/script-runner/pkg/game"
)

func TestCachedGameData_Locate(t *testing.T) {
	ctx := context.Background()
	api := game.NewMockAPI(game.NewTestCharacter("hero"))
	api.Places["bank"] = game.Point{X: 4, Y: 1}
	cache := NewMockCache()
	data := NewCachedGameData(api, cache, time.Hour, testLogger())

	x, y, err := data.Locate(ctx, "bank")
	require.NoError(t, err)
	assert.Equal(t, [2]int{4, 1}, [2]int{x, y})
	require.Len(t, cache.SetCalls, 1)
	assert.Equal(t, "game-data:locate:bank", cache.SetCalls[0].Key)
	assert.Equal(t, time.Hour, cache.SetCalls[0].TTL)

	// Served from the cache once the API no longer knows the place.
	delete(api.Places, "bank")
	x, y, err = data.Locate(ctx, "bank")
	require.NoError(t, err)
	assert.Equal(t, [2]int{4, 1}, [2]int{x, y})

	_, _, err = data.Locate(ctx, "dragon")
	assert.ErrorIs(t, err, game.ErrNotFound)
	assert.Len(t, cache.SetCalls, 1, "misses are not cached")
}

func TestCachedGameData_ItemSlot(t *testing.T) {
	ctx := context.Background()
	cache := NewMockCache()
	data := NewCachedGameData(game.NewMockAPI(game.NewTestCharacter("hero")), cache, time.Hour, testLogger())

	slot, err := data.ItemSlot(ctx, "copper_dagger")
	require.NoError(t, err)
	assert.Equal(t, "weapon", slot)

	raw, err := cache.Get(ctx, "game-data:slot:copper_dagger")
	require.NoError(t, err)
	assert.Equal(t, `"weapon"`, raw)
}

func TestCachedGameData_CacheFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	api := game.NewMockAPI(game.NewTestCharacter("hero"))
	api.Places["bank"] = game.Point{X: 4, Y: 1}
	cache := NewMockCache()
	cache.Err = errors.New("connection refused")
	data := NewCachedGameData(api, cache, time.Hour, testLogger())

	x, y, err := data.Locate(ctx, "bank")
	require.NoError(t, err)
	assert.Equal(t, [2]int{4, 1}, [2]int{x, y})
}

func TestCachedGameData_DiscardsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	api := game.NewMockAPI(game.NewTestCharacter("hero"))
	api.Places["bank"] = game.Point{X: 4, Y: 1}
	cache := NewMockCache()
	require.NoError(t, cache.Set(ctx, "game-data:locate:bank", "{not json", 0))
	data := NewCachedGameData(api, cache, time.Hour, testLogger())

	x, _, err := data.Locate(ctx, "bank")
	require.NoError(t, err)
	assert.Equal(t, 4, x)

	raw, _ := cache.Get(ctx, "game-data:locate:bank")
	assert.JSONEq(t, `{"x":4,"y":1}`, raw)
}

func TestCachedGameData_PassesThroughActions(t *testing.T) {
	api := game.NewMockAPI(game.NewTestCharacter("hero"))
	data := NewCachedGameData(api, NewMockCache(), time.Hour, testLogger())

	_, err := data.Do(context.Background(), "hero", game.Action{Kind: game.ActionRest})
	require.NoError(t, err)
	assert.Equal(t, 1, api.CallCount(game.ActionRest))
}
