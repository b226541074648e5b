package game

import (
	"context"
	"fmt"
	"time"
)

// ActionKind names a remote character action.
type ActionKind string

const (
	ActionMove         ActionKind = "move"
	ActionGather       ActionKind = "gathering"
	ActionFight        ActionKind = "fight"
	ActionRest         ActionKind = "rest"
	ActionCraft        ActionKind = "crafting"
	ActionRecycle      ActionKind = "recycling"
	ActionDepositItem  ActionKind = "bank/deposit/item"
	ActionWithdrawItem ActionKind = "bank/withdraw/item"
	ActionDepositGold  ActionKind = "bank/deposit/gold"
	ActionWithdrawGold ActionKind = "bank/withdraw/gold"
	ActionEquip        ActionKind = "equip"
	ActionUnequip      ActionKind = "unequip"
	ActionNPCBuy       ActionKind = "npc/buy"
	ActionNPCSell      ActionKind = "npc/sell"
	ActionMarketSell   ActionKind = "grandexchange/sell"
	ActionTaskNew      ActionKind = "task/new"
	ActionTaskComplete ActionKind = "task/complete"
	ActionTaskCancel   ActionKind = "task/cancel"
	ActionTaskExchange ActionKind = "task/exchange"
	ActionTaskTrade    ActionKind = "task/trade"
	ActionUse          ActionKind = "use"
	ActionTransition   ActionKind = "transition"
)

// Action is one request against the game API. Only the fields relevant to the
// Kind are used.
type Action struct {
	Kind     ActionKind
	X, Y     int
	Code     string
	Quantity int
	Slot     string
	Price    int
}

func (a Action) String() string {
	switch a.Kind {
	case ActionMove:
		return fmt.Sprintf("move to (%d,%d)", a.X, a.Y)
	case ActionDepositGold, ActionWithdrawGold:
		return fmt.Sprintf("%s %d", a.Kind, a.Quantity)
	case ActionUnequip:
		return fmt.Sprintf("unequip %s", a.Slot)
	case ActionEquip:
		if a.Slot != "" {
			return fmt.Sprintf("equip %s (%s)", a.Code, a.Slot)
		}
		return "equip " + a.Code
	}
	switch {
	case a.Code != "" && a.Quantity > 0:
		return fmt.Sprintf("%s %s x%d", a.Kind, a.Code, a.Quantity)
	case a.Code != "":
		return fmt.Sprintf("%s %s", a.Kind, a.Code)
	}
	return string(a.Kind)
}

// Cooldown describes the wait imposed by the server after an action.
type Cooldown struct {
	TotalSeconds     float64   `json:"total_seconds"`
	RemainingSeconds float64   `json:"remaining_seconds"`
	Expiration       time.Time `json:"expiration"`
	Reason           string    `json:"reason"`
}

// Drop is an item produced by an action.
type Drop struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

// FightResult summarizes a fight.
type FightResult struct {
	Result string `json:"result"` // "win" or "loss"
	Turns  int    `json:"turns"`
}

func (f *FightResult) Won() bool {
	return f != nil && f.Result == "win"
}

// ActionResult is the successful outcome of an action.
type ActionResult struct {
	Character *Character
	Cooldown  Cooldown
	// Skill is the skill that earned XP ("combat" for fights).
	Skill string
	XP    int
	Gold  int
	Items []Drop
	Fight *FightResult
}

// API is the contract the interpreter needs from the game server.
type API interface {
	// Character fetches the current snapshot.
	Character(ctx context.Context, name string) (*Character, error)
	// Do performs one action. Failures are *ActionError values classified by
	// FailureClass.
	Do(ctx context.Context, name string, a Action) (*ActionResult, error)
}

// Locator resolves map content (monsters, resources, workshops) to coordinates.
// API implementations may optionally provide it.
type Locator interface {
	Locate(ctx context.Context, code string) (x, y int, err error)
}

// SlotResolver finds the equipment slot for an item. API implementations may
// optionally provide it.
type SlotResolver interface {
	ItemSlot(ctx context.Context, code string) (string, error)
}
