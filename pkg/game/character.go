package game

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// TaskCoinCode is the inventory item counted by task_coins.
const TaskCoinCode = "tasks_coin"

// InventorySlot is one occupied inventory slot.
type InventorySlot struct {
	Slot     int    `json:"slot"`
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

// Character is a point-in-time snapshot of a character as reported by the game
// API. Snapshots are replaced on refresh, never modified in place.
type Character struct {
	Name               string            `json:"name"`
	Level              int               `json:"level"`
	XP                 int               `json:"xp"`
	Gold               int               `json:"gold"`
	HP                 int               `json:"hp"`
	MaxHP              int               `json:"max_hp"`
	X                  int               `json:"x"`
	Y                  int               `json:"y"`
	Skills             map[string]int    `json:"skills"`
	InventoryMaxItems  int               `json:"inventory_max_items"`
	Inventory          []InventorySlot   `json:"inventory"`
	Equipment          map[string]string `json:"equipment,omitempty"`
	Task               string            `json:"task,omitempty"`
	TaskType           string            `json:"task_type,omitempty"`
	TaskProgress       int               `json:"task_progress"`
	TaskTotal          int               `json:"task_total"`
	CooldownExpiration time.Time         `json:"cooldown_expiration"`
}

// ItemQuantity returns how many of code the character carries.
func (c *Character) ItemQuantity(code string) int {
	total := 0
	for _, s := range c.Inventory {
		if s.Code == code {
			total += s.Quantity
		}
	}
	return total
}

// InventoryCount is the total number of carried items.
func (c *Character) InventoryCount() int {
	total := 0
	for _, s := range c.Inventory {
		total += s.Quantity
	}
	return total
}

// InventorySpace is the number of additional items that fit.
func (c *Character) InventorySpace() int {
	return max(c.InventoryMaxItems-c.InventoryCount(), 0)
}

func (c *Character) InventoryFull() bool {
	return c.InventorySpace() == 0
}

// HPPercent returns HP as a percentage of MaxHP (0 when MaxHP is unknown).
func (c *Character) HPPercent() float64 {
	if c.MaxHP <= 0 {
		return 0
	}
	return float64(c.HP) * 100 / float64(c.MaxHP)
}

// SkillLevel returns the level of a skill. "level" is the overall level.
func (c *Character) SkillLevel(skill string) int {
	if skill == "level" {
		return c.Level
	}
	return c.Skills[skill]
}

func (c *Character) HasTask() bool {
	return c.Task != ""
}

func (c *Character) TaskComplete() bool {
	return c.HasTask() && c.TaskTotal > 0 && c.TaskProgress >= c.TaskTotal
}

func (c *Character) TaskCoins() int {
	return c.ItemQuantity(TaskCoinCode)
}

func (c *Character) At(x, y int) bool {
	return c.X == x && c.Y == y
}

// CooldownRemaining is the time left until the character may act again.
func (c *Character) CooldownRemaining(now time.Time) time.Duration {
	if c.CooldownExpiration.IsZero() {
		return 0
	}
	return max(c.CooldownExpiration.Sub(now), 0)
}

// Fingerprint hashes position, HP and inventory size. Two snapshots with the
// same fingerprint look identical for progress-tracking purposes.
func (c *Character) Fingerprint() uint64 {
	d := xxhash.New()
	for _, n := range []int{c.X, c.Y, c.HP, c.InventoryCount()} {
		_, _ = d.WriteString(strconv.Itoa(n))
		_, _ = d.WriteString("|")
	}
	return d.Sum64()
}

// Levels returns every skill level plus the overall level under "level".
func (c *Character) Levels() map[string]int {
	levels := make(map[string]int, len(c.Skills)+1)
	for k, v := range c.Skills {
		levels[k] = v
	}
	levels["level"] = c.Level
	return levels
}

// Clone returns a deep copy.
func (c *Character) Clone() *Character {
	out := *c
	out.Skills = make(map[string]int, len(c.Skills))
	for k, v := range c.Skills {
		out.Skills[k] = v
	}
	out.Inventory = append([]InventorySlot(nil), c.Inventory...)
	if c.Equipment != nil {
		out.Equipment = make(map[string]string, len(c.Equipment))
		for k, v := range c.Equipment {
			out.Equipment[k] = v
		}
	}
	return &out
}
