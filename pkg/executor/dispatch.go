package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/script-runner/pkg/game"
	"github.com/jwebster45206/script-runner/pkg/script"
)

// exec runs one statement.
func (e *Executor) exec(ctx context.Context, s script.Statement) error {
	vars := e.st.Vars
	str := func(x script.Expr) string { return script.EvalString(x, vars) }
	qty := func(x script.Expr, def int) int {
		if x == nil {
			return def
		}
		return int(script.EvalNumber(x, vars))
	}

	switch s := s.(type) {
	case script.GotoStmt:
		return e.execGoto(ctx, s)

	case script.GatherStmt:
		return e.do(ctx, game.Action{Kind: game.ActionGather})

	case script.FightStmt:
		if s.Monster != nil {
			if err := e.travelTo(ctx, str(s.Monster)); err != nil {
				return err
			}
		}
		return e.do(ctx, game.Action{Kind: game.ActionFight})

	case script.BankStmt:
		return e.execBank(ctx, s)

	case script.EquipStmt:
		item := str(s.Item)
		slot := str(s.Slot)
		if slot == "" {
			var err error
			if slot, err = e.itemSlot(ctx, item); err != nil {
				return err
			}
		}
		return e.do(ctx, game.Action{Kind: game.ActionEquip, Code: item, Slot: slot})

	case script.UnequipStmt:
		return e.do(ctx, game.Action{Kind: game.ActionUnequip, Slot: str(s.Slot), Quantity: 1})

	case script.RecycleStmt:
		return e.do(ctx, game.Action{Kind: game.ActionRecycle, Code: str(s.Item), Quantity: qty(s.Quantity, 1)})

	case script.CraftStmt:
		return e.do(ctx, game.Action{Kind: game.ActionCraft, Code: str(s.Item), Quantity: qty(s.Quantity, 1)})

	case script.UseStmt:
		return e.do(ctx, game.Action{Kind: game.ActionUse, Code: str(s.Item), Quantity: qty(s.Quantity, 1)})

	case script.MarketStmt:
		if s.Op != script.MarketSell {
			e.warnf("market %s is not supported yet, skipped", s.Op)
			return nil
		}
		return e.do(ctx, game.Action{
			Kind:     game.ActionMarketSell,
			Code:     str(s.Item),
			Quantity: qty(s.Quantity, 1),
			Price:    qty(s.Price, 0),
		})

	case script.NPCStmt:
		kind := game.ActionNPCBuy
		if s.Op == script.TradeSell {
			kind = game.ActionNPCSell
		}
		return e.do(ctx, game.Action{Kind: kind, Code: str(s.Item), Quantity: qty(s.Quantity, 1)})

	case script.TaskStmt:
		a := game.Action{Kind: taskActions[s.Op]}
		if s.Op == script.TaskTrade {
			a.Code, a.Quantity = str(s.Item), qty(s.Quantity, 1)
		}
		return e.do(ctx, a)

	case script.TransitionStmt:
		return e.do(ctx, game.Action{Kind: game.ActionTransition})

	case script.RestStmt:
		return e.do(ctx, game.Action{Kind: game.ActionRest})

	case script.SleepStmt:
		secs := script.EvalNumber(s.Seconds, vars)
		e.logf("Sleeping %gs", secs)
		e.persist(ctx)
		return e.suspend(ctx, time.Duration(secs*float64(time.Second)))

	case script.WaitCooldownStmt:
		if _, err := e.refresh(ctx); err != nil {
			return err
		}
		return e.awaitCooldown(ctx)

	case script.LogStmt:
		e.logf("%s", script.Interpolate(s.Message, vars))
		e.persist(ctx)
		return nil

	case script.SetStmt:
		val := script.Eval(s.Value, vars)
		if text, ok := val.(string); ok {
			val = script.Interpolate(text, vars)
		}
		vars[s.Name] = val
		e.persist(ctx)
		return nil

	case script.IfStmt:
		ok, err := e.evalCondition(ctx, s.Cond)
		if err != nil {
			return err
		}
		if ok {
			return e.execBlock(ctx, s.Body)
		}
		if s.Else != nil {
			return e.execBlock(ctx, s.Else)
		}
		return nil

	case script.LoopStmt:
		return e.execLoop(ctx, s)

	case script.UnknownStmt:
		e.warnf("Skipping unknown command %q", s.Head)
		return nil
	}

	e.warnf("Skipping unsupported statement %T", s)
	return nil
}

var taskActions = map[script.TaskOp]game.ActionKind{
	script.TaskNew:      game.ActionTaskNew,
	script.TaskComplete: game.ActionTaskComplete,
	script.TaskCancel:   game.ActionTaskCancel,
	script.TaskExchange: game.ActionTaskExchange,
	script.TaskTrade:    game.ActionTaskTrade,
}

// do is call without the result.
func (e *Executor) do(ctx context.Context, a game.Action) error {
	_, err := e.call(ctx, a)
	return err
}

func (e *Executor) execLoop(ctx context.Context, s script.LoopStmt) error {
	limit := e.maxIter
	capped := true
	if s.Kind == script.LoopCount {
		n := int(script.EvalNumber(s.Count, e.st.Vars))
		if n <= limit {
			limit, capped = max(n, 0), false
		}
	}

	for i := 0; ; i++ {
		if err := e.checkControl(ctx); err != nil {
			return err
		}
		if i >= limit {
			if capped {
				e.warnf("Loop at line %d reached the iteration limit (%d), exiting loop", s.Pos(), e.maxIter)
			}
			return nil
		}

		switch s.Kind {
		case script.LoopUntil, script.LoopWhile:
			ok, err := e.evalCondition(ctx, s.Cond)
			if err != nil {
				return err
			}
			if ok == (s.Kind == script.LoopUntil) {
				return nil
			}
		}

		if err := e.execBlock(ctx, s.Body); err != nil {
			return err
		}
	}
}

func (e *Executor) execGoto(ctx context.Context, s script.GotoStmt) error {
	if s.Name != nil {
		return e.travelTo(ctx, script.EvalString(s.Name, e.st.Vars))
	}
	x := int(script.EvalNumber(s.X, e.st.Vars))
	y := int(script.EvalNumber(s.Y, e.st.Vars))
	return e.moveTo(ctx, x, y)
}

// travelTo resolves a named place, first from the built-in table and then
// through the API's map search.
func (e *Executor) travelTo(ctx context.Context, name string) error {
	if p, ok := game.LookupLocation(name); ok {
		return e.moveTo(ctx, p.X, p.Y)
	}
	loc, ok := e.api.(game.Locator)
	if !ok {
		return fmt.Errorf("unknown location %q", name)
	}
	x, y, err := loc.Locate(ctx, name)
	if err != nil {
		if errors.Is(err, game.ErrNotFound) {
			return fmt.Errorf("unknown location %q", name)
		}
		return fmt.Errorf("failed to locate %q: %w", name, err)
	}
	return e.moveTo(ctx, x, y)
}

func (e *Executor) moveTo(ctx context.Context, x, y int) error {
	c, err := e.snapshot(ctx)
	if err != nil {
		return err
	}
	if c.At(x, y) {
		e.logf("Already at (%d,%d)", x, y)
		return nil
	}
	return e.do(ctx, game.Action{Kind: game.ActionMove, X: x, Y: y})
}

func (e *Executor) itemSlot(ctx context.Context, item string) (string, error) {
	r, ok := e.api.(game.SlotResolver)
	if !ok {
		return "", fmt.Errorf("equip %s: no slot given", item)
	}
	slot, err := r.ItemSlot(ctx, item)
	if err != nil {
		return "", fmt.Errorf("failed to resolve slot for %s: %w", item, err)
	}
	return slot, nil
}

func (e *Executor) execBank(ctx context.Context, s script.BankStmt) error {
	vars := e.st.Vars
	switch {
	case s.Gold:
		kind := game.ActionDepositGold
		if s.Op == script.BankWithdraw {
			kind = game.ActionWithdrawGold
		}
		return e.do(ctx, game.Action{Kind: kind, Quantity: int(script.EvalNumber(s.Quantity, vars))})

	case s.All:
		c, err := e.refresh(ctx)
		if err != nil {
			return err
		}
		if c.InventoryCount() == 0 {
			e.logf("Nothing to deposit")
			return nil
		}
		for _, slot := range c.Inventory {
			if slot.Quantity <= 0 {
				continue
			}
			if err := e.do(ctx, game.Action{Kind: game.ActionDepositItem, Code: slot.Code, Quantity: slot.Quantity}); err != nil {
				return err
			}
		}
		return nil
	}

	item := script.EvalString(s.Item, vars)
	if s.Op == script.BankWithdraw {
		n := 1
		if s.Quantity != nil {
			n = int(script.EvalNumber(s.Quantity, vars))
		}
		return e.do(ctx, game.Action{Kind: game.ActionWithdrawItem, Code: item, Quantity: n})
	}

	var n int
	if s.Quantity != nil {
		n = int(script.EvalNumber(s.Quantity, vars))
	} else {
		c, err := e.snapshot(ctx)
		if err != nil {
			return err
		}
		n = c.ItemQuantity(item)
	}
	if n <= 0 {
		e.logf("No %s to deposit", item)
		return nil
	}
	return e.do(ctx, game.Action{Kind: game.ActionDepositItem, Code: item, Quantity: n})
}
