package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwebster45206/script-runner/pkg/game"
)

func TestStuckWatch(t *testing.T) {
	w := stuckWatch{threshold: 3}
	c := game.NewTestCharacter("hero")

	assert.False(t, w.observe(c))
	assert.False(t, w.observe(c))
	assert.False(t, w.observe(c))
	assert.True(t, w.observe(c), "fourth identical snapshot is the third repeat")
	assert.False(t, w.observe(c), "counter resets after a warning")

	moved := c.Clone()
	moved.X = 5
	assert.False(t, w.observe(moved))
	assert.Equal(t, 0, w.repeats)
}

func TestLevelUps(t *testing.T) {
	prev := game.NewTestCharacter("hero")
	next := prev.Clone()
	next.Skills["mining"] = 3
	next.Skills["fishing"] = 2
	next.Level = 2
	next.Skills["woodcutting"] = 0

	got := levelUps(prev, next)
	assert.Equal(t, []LevelUp{
		{Skill: "fishing", From: 1, To: 2},
		{Skill: "level", From: 1, To: 2},
		{Skill: "mining", From: 1, To: 3},
	}, got)
}

func TestSkillTitle(t *testing.T) {
	assert.Equal(t, "Mining", skillTitle("mining"))
	assert.Equal(t, "Character", skillTitle("level"))
}
