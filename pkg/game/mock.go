package game

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Resource is what a gather on a tile produces.
type Resource struct {
	Code  string
	Skill string
}

// MockAPI is an in-memory game server for tests. It simulates movement,
// gathering, fights, banking and crafting well enough to drive scripts.
type MockAPI struct {
	mu sync.Mutex

	char      *Character
	bank      map[string]int
	bankGold  int
	skillXP   map[string]int
	calls     []Action
	fetches   int
	failures  []error
	Resources map[Point]Resource
	Monsters  map[Point]string
	Places    map[string]Point
	// Cooldown is applied to the character after each successful action.
	Cooldown time.Duration
	// XPPerLevel controls how quickly skills level up (default 100).
	XPPerLevel int
	// DoFunc, when set, replaces the simulation entirely.
	DoFunc func(ctx context.Context, name string, a Action) (*ActionResult, error)
	now    func() time.Time
}

// Ensure MockAPI implements the optional interfaces.
var (
	_ API          = (*MockAPI)(nil)
	_ Locator      = (*MockAPI)(nil)
	_ SlotResolver = (*MockAPI)(nil)
)

// NewMockAPI creates a mock server around an initial character.
func NewMockAPI(c *Character) *MockAPI {
	if c.Skills == nil {
		c.Skills = map[string]int{}
	}
	return &MockAPI{
		char:       c.Clone(),
		bank:       map[string]int{},
		skillXP:    map[string]int{},
		Resources:  map[Point]Resource{},
		Monsters:   map[Point]string{},
		Places:     map[string]Point{},
		XPPerLevel: 100,
		now:        time.Now,
	}
}

// NewTestCharacter returns a level 1 character at the origin with an empty
// 100-slot inventory.
func NewTestCharacter(name string) *Character {
	return &Character{
		Name:              name,
		Level:             1,
		HP:                100,
		MaxHP:             100,
		Skills:            map[string]int{"mining": 1, "woodcutting": 1, "fishing": 1},
		InventoryMaxItems: 100,
	}
}

// FailNext queues errors returned by the next Do calls, one per call.
func (m *MockAPI) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Calls returns every action attempted, including failed ones.
func (m *MockAPI) Calls() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Action(nil), m.calls...)
}

// CallCount counts attempted actions of one kind.
func (m *MockAPI) CallCount(kind ActionKind) int {
	n := 0
	for _, a := range m.Calls() {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Fetches reports how many times Character was called.
func (m *MockAPI) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// BankQuantity reports what the simulated bank holds.
func (m *MockAPI) BankQuantity(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bank[code]
}

// SetCharacter replaces the simulated character.
func (m *MockAPI) SetCharacter(c *Character) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.char = c.Clone()
}

func (m *MockAPI) Character(ctx context.Context, name string) (*Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	return m.char.Clone(), nil
}

func (m *MockAPI) Locate(ctx context.Context, code string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Places[code]; ok {
		return p.X, p.Y, nil
	}
	for p, r := range m.Resources {
		if r.Code == code {
			return p.X, p.Y, nil
		}
	}
	for p, monster := range m.Monsters {
		if monster == code {
			return p.X, p.Y, nil
		}
	}
	return 0, 0, fmt.Errorf("locate %s: %w", code, ErrNotFound)
}

func (m *MockAPI) ItemSlot(ctx context.Context, code string) (string, error) {
	return "weapon", nil
}

func (m *MockAPI) Do(ctx context.Context, name string, a Action) (*ActionResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, a)
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		m.mu.Unlock()
		return nil, err
	}
	doFunc := m.DoFunc
	m.mu.Unlock()

	if doFunc != nil {
		return doFunc(ctx, name, a)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	res, err := m.simulate(a)
	if err != nil {
		return nil, err
	}
	if m.Cooldown > 0 {
		res.Cooldown = Cooldown{
			TotalSeconds:     m.Cooldown.Seconds(),
			RemainingSeconds: m.Cooldown.Seconds(),
			Expiration:       m.now().Add(m.Cooldown),
			Reason:           string(a.Kind),
		}
		m.char.CooldownExpiration = res.Cooldown.Expiration
	}
	res.Character = m.char.Clone()
	return res, nil
}

func (m *MockAPI) simulate(a Action) (*ActionResult, error) {
	c := m.char
	here := Point{c.X, c.Y}
	res := &ActionResult{}

	switch a.Kind {
	case ActionMove:
		if c.At(a.X, a.Y) {
			return nil, &ActionError{Class: FailureAlreadySatisfied, Code: 490, Message: "character already at destination"}
		}
		c.X, c.Y = a.X, a.Y

	case ActionGather:
		r, ok := m.Resources[here]
		if !ok {
			return nil, &ActionError{Class: FailureNoTarget, Code: 598, Message: "resource not found on this map"}
		}
		if c.InventoryFull() {
			return nil, &ActionError{Class: FailureGeneric, Code: 497, Message: "inventory is full"}
		}
		m.addItem(r.Code, 1)
		res.Skill, res.XP = r.Skill, 10
		res.Items = []Drop{{Code: r.Code, Quantity: 1}}
		m.gainXP(r.Skill, res.XP)

	case ActionFight:
		if _, ok := m.Monsters[here]; !ok {
			return nil, &ActionError{Class: FailureNoTarget, Code: 598, Message: "monster not found on this map"}
		}
		res.Fight = &FightResult{Result: "win", Turns: 3}
		res.Skill, res.XP, res.Gold = "combat", 20, 5
		c.Gold += res.Gold
		c.HP = max(c.HP-10, 1)
		m.gainXP("combat", res.XP)

	case ActionRest:
		c.HP = c.MaxHP

	case ActionCraft:
		qty := max(a.Quantity, 1)
		m.addItem(a.Code, qty)
		res.Items = []Drop{{Code: a.Code, Quantity: qty}}

	case ActionRecycle, ActionUse, ActionNPCSell, ActionMarketSell, ActionTaskTrade:
		qty := max(a.Quantity, 1)
		if c.ItemQuantity(a.Code) < qty {
			return nil, &ActionError{Class: FailureGeneric, Code: 478, Message: "missing item or insufficient quantity"}
		}
		m.addItem(a.Code, -qty)
		if a.Kind == ActionTaskTrade {
			c.TaskProgress += qty
		}

	case ActionDepositItem:
		if c.ItemQuantity(a.Code) < a.Quantity {
			return nil, &ActionError{Class: FailureGeneric, Code: 478, Message: "missing item or insufficient quantity"}
		}
		m.addItem(a.Code, -a.Quantity)
		m.bank[a.Code] += a.Quantity

	case ActionWithdrawItem:
		if m.bank[a.Code] < a.Quantity {
			return nil, &ActionError{Class: FailureGeneric, Code: 404, Message: "item not found in bank"}
		}
		m.bank[a.Code] -= a.Quantity
		m.addItem(a.Code, a.Quantity)

	case ActionDepositGold:
		if c.Gold < a.Quantity {
			return nil, &ActionError{Class: FailureGeneric, Code: 492, Message: "insufficient gold"}
		}
		c.Gold -= a.Quantity
		m.bankGold += a.Quantity

	case ActionWithdrawGold:
		if m.bankGold < a.Quantity {
			return nil, &ActionError{Class: FailureGeneric, Code: 460, Message: "insufficient gold in bank"}
		}
		m.bankGold -= a.Quantity
		c.Gold += a.Quantity

	case ActionNPCBuy:
		m.addItem(a.Code, max(a.Quantity, 1))

	case ActionEquip:
		if c.Equipment == nil {
			c.Equipment = map[string]string{}
		}
		if c.Equipment[a.Slot] == a.Code {
			return nil, &ActionError{Class: FailureAlreadySatisfied, Code: 485, Message: "item already equipped"}
		}
		m.addItem(a.Code, -1)
		c.Equipment[a.Slot] = a.Code

	case ActionUnequip:
		code := c.Equipment[a.Slot]
		if code == "" {
			return nil, &ActionError{Class: FailureGeneric, Code: 491, Message: "slot is empty"}
		}
		delete(c.Equipment, a.Slot)
		m.addItem(code, 1)

	case ActionTaskNew:
		if c.HasTask() {
			return nil, &ActionError{Class: FailureGeneric, Code: 489, Message: "character already has a task"}
		}
		c.Task, c.TaskType, c.TaskProgress, c.TaskTotal = "chicken", "monsters", 0, 10

	case ActionTaskComplete:
		if !c.TaskComplete() {
			return nil, &ActionError{Class: FailureGeneric, Code: 488, Message: "task not completed"}
		}
		c.Task, c.TaskType, c.TaskProgress, c.TaskTotal = "", "", 0, 0
		m.addItem(TaskCoinCode, 2)

	case ActionTaskCancel:
		c.Task, c.TaskType, c.TaskProgress, c.TaskTotal = "", "", 0, 0
		m.addItem(TaskCoinCode, -1)

	case ActionTaskExchange:
		if c.TaskCoins() < 6 {
			return nil, &ActionError{Class: FailureGeneric, Code: 478, Message: "missing task coins"}
		}
		m.addItem(TaskCoinCode, -6)
	}
	return res, nil
}

func (m *MockAPI) addItem(code string, qty int) {
	c := m.char
	for i := range c.Inventory {
		if c.Inventory[i].Code == code {
			c.Inventory[i].Quantity += qty
			if c.Inventory[i].Quantity <= 0 {
				c.Inventory = append(c.Inventory[:i], c.Inventory[i+1:]...)
			}
			return
		}
	}
	if qty > 0 {
		c.Inventory = append(c.Inventory, InventorySlot{Slot: len(c.Inventory) + 1, Code: code, Quantity: qty})
	}
}

func (m *MockAPI) gainXP(skill string, xp int) {
	m.skillXP[skill] += xp
	level := 1 + m.skillXP[skill]/m.XPPerLevel
	if skill == "combat" {
		m.char.Level = max(m.char.Level, level)
		return
	}
	m.char.Skills[skill] = max(m.char.Skills[skill], level)
}
