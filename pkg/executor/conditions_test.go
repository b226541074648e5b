package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/script-runner/pkg/game"
	"github.com/jwebster45206/script-runner/pkg/script"
)

func conditionOf(t *testing.T, src string) script.Condition {
	t.Helper()
	prog, err := script.Parse("if " + src + ":\n  rest\n")
	require.NoError(t, err)
	require.Len(t, prog.Statements, 1)
	return prog.Statements[0].(script.IfStmt).Cond
}

func TestEvaluate(t *testing.T) {
	c := game.NewTestCharacter("hero")
	c.HP, c.MaxHP = 20, 100
	c.Gold = 150
	c.X, c.Y = 2, 0
	c.Skills["mining"] = 12
	c.Level = 7
	c.InventoryMaxItems = 10
	c.Inventory = []game.InventorySlot{
		{Slot: 1, Code: "copper_ore", Quantity: 6},
		{Slot: 2, Code: game.TaskCoinCode, Quantity: 3},
	}
	c.Task, c.TaskProgress, c.TaskTotal = "chicken", 10, 10
	vars := map[string]any{"min_gold": float64(100), "ore": "copper_ore"}

	tests := []struct {
		cond string
		want bool
	}{
		{"hp_percent < 30", true},
		{"hp_percent < 10", false},
		{"hp >= 20", true},
		{"hp != 20", false},
		{"gold > {{min_gold}}", true},
		{"gold == 150", true},
		{"inventory_full", false},
		{"inventory_space == 1", true},
		{"inventory_space > 1", false},
		{"has_item copper_ore", true},
		{"has_item copper_ore 6", true},
		{"has_item copper_ore 7", false},
		{"has_item {{ore}} 2", true},
		{"has_item iron_ore", false},
		{"mining_level >= 10", true},
		{"skill_level mining < 12", false},
		{"woodcutting_level == 1", true},
		{"level > 5", true},
		{"combat_level <= 7", true},
		{"at_location 2 0", true},
		{"at_location 0 0", false},
		{"has_task", true},
		{"task_progress_complete", true},
		{"task_coins >= 3", true},
		{"task_coins > 3", false},
	}

	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			got, err := Evaluate(conditionOf(t, tt.cond), c, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_InventoryFull(t *testing.T) {
	c := game.NewTestCharacter("hero")
	c.InventoryMaxItems = 5
	c.Inventory = []game.InventorySlot{{Slot: 1, Code: "ash_wood", Quantity: 5}}

	got, err := Evaluate(script.InventoryFull{}, c, nil)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_UnknownVariableIsZero(t *testing.T) {
	c := game.NewTestCharacter("hero")
	c.Gold = 0
	got, err := Evaluate(conditionOf(t, "gold == {{missing}}"), c, map[string]any{})
	require.NoError(t, err)
	assert.True(t, got)
}
