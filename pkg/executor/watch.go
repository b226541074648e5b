package executor

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/script-runner/pkg/game"
)

// stuckWatch counts consecutive successful actions that leave the character's
// fingerprint unchanged.
type stuckWatch struct {
	threshold int
	last      uint64
	seen      bool
	repeats   int
}

// observe records a snapshot and reports true once the fingerprint has stayed
// the same for threshold consecutive actions. The count then starts over.
func (w *stuckWatch) observe(c *game.Character) bool {
	fp := c.Fingerprint()
	if w.seen && fp == w.last {
		w.repeats++
	} else {
		w.last, w.seen, w.repeats = fp, true, 0
	}
	if w.threshold > 0 && w.repeats >= w.threshold {
		w.repeats = 0
		return true
	}
	return false
}

// LevelUp is one skill whose level increased between two snapshots.
type LevelUp struct {
	Skill    string
	From, To int
}

// levelUps compares every skill and the overall level, sorted by skill name.
func levelUps(prev, next *game.Character) []LevelUp {
	before := prev.Levels()
	var ups []LevelUp
	for skill, to := range next.Levels() {
		if from, ok := before[skill]; ok && to > from {
			ups = append(ups, LevelUp{Skill: skill, From: from, To: to})
		}
	}
	sort.Slice(ups, func(i, j int) bool { return ups[i].Skill < ups[j].Skill })
	return ups
}

// skillTitle renders a skill for log text, e.g. "jewelrycrafting" as
// "Jewelrycrafting" and the overall level as "Character".
func skillTitle(skill string) string {
	if skill == "level" {
		return "Character"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(skill, "_", " "))
}
