package game

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacter_Inventory(t *testing.T) {
	c := NewTestCharacter("hero")
	c.InventoryMaxItems = 20
	c.Inventory = []InventorySlot{
		{Slot: 1, Code: "copper_ore", Quantity: 8},
		{Slot: 2, Code: "ash_wood", Quantity: 4},
		{Slot: 3, Code: "copper_ore", Quantity: 2},
	}

	assert.Equal(t, 10, c.ItemQuantity("copper_ore"))
	assert.Equal(t, 0, c.ItemQuantity("iron_ore"))
	assert.Equal(t, 14, c.InventoryCount())
	assert.Equal(t, 6, c.InventorySpace())
	assert.False(t, c.InventoryFull())

	c.InventoryMaxItems = 14
	assert.True(t, c.InventoryFull())
}

func TestCharacter_HPPercent(t *testing.T) {
	c := &Character{HP: 20, MaxHP: 100}
	assert.InDelta(t, 20.0, c.HPPercent(), 0.001)

	c.MaxHP = 0
	assert.Zero(t, c.HPPercent())
}

func TestCharacter_CooldownRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Character{}
	assert.Zero(t, c.CooldownRemaining(now))

	c.CooldownExpiration = now.Add(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, c.CooldownRemaining(now))

	c.CooldownExpiration = now.Add(-time.Second)
	assert.Zero(t, c.CooldownRemaining(now))
}

func TestCharacter_Fingerprint(t *testing.T) {
	a := NewTestCharacter("hero")
	b := a.Clone()
	b.Gold = 999
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "gold is not part of the fingerprint")

	b.HP--
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestCharacter_CloneIsDeep(t *testing.T) {
	a := NewTestCharacter("hero")
	a.Inventory = []InventorySlot{{Slot: 1, Code: "apple", Quantity: 1}}
	a.Equipment = map[string]string{"weapon": "wooden_stick"}

	b := a.Clone()
	b.Skills["mining"] = 50
	b.Inventory[0].Quantity = 9
	b.Equipment["weapon"] = "copper_dagger"

	assert.Equal(t, 1, a.Skills["mining"])
	assert.Equal(t, 1, a.Inventory[0].Quantity)
	assert.Equal(t, "wooden_stick", a.Equipment["weapon"])
}

func TestAction_String(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{Action{Kind: ActionMove, X: 2, Y: -1}, "move to (2,-1)"},
		{Action{Kind: ActionCraft, Code: "copper_bar", Quantity: 3}, "crafting copper_bar x3"},
		{Action{Kind: ActionEquip, Code: "copper_dagger", Slot: "weapon"}, "equip copper_dagger (weapon)"},
		{Action{Kind: ActionEquip, Code: "copper_dagger"}, "equip copper_dagger"},
		{Action{Kind: ActionUse, Code: "apple"}, "use apple"},
		{Action{Kind: ActionUnequip, Slot: "weapon"}, "unequip weapon"},
		{Action{Kind: ActionDepositGold, Quantity: 50}, "bank/deposit/gold 50"},
		{Action{Kind: ActionRest}, "rest"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.action.String())
	}
}

func TestActionError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cd := &ActionError{Class: FailureCooldown, Code: 499, Message: "cooldown", Remaining: 5 * time.Second}
	wrapped := fmt.Errorf("rest: %w", cd)
	assert.True(t, errors.Is(wrapped, ErrCooldown))
	assert.False(t, errors.Is(wrapped, ErrNoTarget))
	assert.Equal(t, FailureCooldown, ClassOf(wrapped))
	assert.Equal(t, 5*time.Second, cd.CooldownWait(now))

	cd.Expiration = now.Add(2 * time.Second)
	assert.Equal(t, 2*time.Second, cd.CooldownWait(now))

	assert.Equal(t, FailureGeneric, ClassOf(errors.New("connection reset")))
	assert.True(t, errors.Is(&ActionError{Class: FailureMalformed}, ErrMalformed))
	assert.Equal(t, "malformed_response", FailureMalformed.String())
	assert.Equal(t, "no_target (598): nothing here", (&ActionError{Class: FailureNoTarget, Code: 598, Message: "nothing here"}).Error())
}

func TestLookupLocation(t *testing.T) {
	p, ok := LookupLocation("Bank")
	require.True(t, ok)
	assert.Equal(t, Point{4, 1}, p)

	_, ok = LookupLocation("atlantis")
	assert.False(t, ok)
}

func TestMockAPI_Simulation(t *testing.T) {
	ctx := context.Background()
	m := NewMockAPI(NewTestCharacter("hero"))
	m.Resources[Point{2, 0}] = Resource{Code: "copper_ore", Skill: "mining"}

	_, err := m.Do(ctx, "hero", Action{Kind: ActionGather})
	assert.ErrorIs(t, err, ErrNoTarget)

	_, err = m.Do(ctx, "hero", Action{Kind: ActionMove, X: 2, Y: 0})
	require.NoError(t, err)
	_, err = m.Do(ctx, "hero", Action{Kind: ActionMove, X: 2, Y: 0})
	assert.ErrorIs(t, err, ErrAlreadySatisfied)

	res, err := m.Do(ctx, "hero", Action{Kind: ActionGather})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Character.ItemQuantity("copper_ore"))
	assert.Equal(t, []Drop{{Code: "copper_ore", Quantity: 1}}, res.Items)

	_, err = m.Do(ctx, "hero", Action{Kind: ActionDepositItem, Code: "copper_ore", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, m.BankQuantity("copper_ore"))

	x, y, err := m.Locate(ctx, "copper_ore")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, []int{x, y})

	_, _, err = m.Locate(ctx, "dragon")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 5, len(m.Calls()))
}
