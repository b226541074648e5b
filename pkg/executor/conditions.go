package executor

import (
	"context"
	"fmt"

	"github.com/jwebster45206/script-runner/pkg/game"
	"github.com/jwebster45206/script-runner/pkg/script"
)

// evalCondition always evaluates against a freshly fetched snapshot.
func (e *Executor) evalCondition(ctx context.Context, c script.Condition) (bool, error) {
	ch, err := e.refresh(ctx)
	if err != nil {
		return false, err
	}
	return Evaluate(c, ch, e.st.Vars)
}

// Evaluate checks a condition against a character snapshot.
func Evaluate(c script.Condition, ch *game.Character, vars map[string]any) (bool, error) {
	compare := func(cmp script.Comparison, actual float64) bool {
		return cmp.Op.Compare(actual, script.EvalNumber(cmp.Value, vars))
	}

	switch c := c.(type) {
	case script.InventoryFull:
		return ch.InventoryFull(), nil
	case script.InventorySpace:
		return compare(c.Comparison, float64(ch.InventorySpace())), nil
	case script.HasItem:
		want := script.EvalNumber(c.Quantity, vars)
		if c.Quantity == nil {
			want = 1
		}
		return float64(ch.ItemQuantity(script.EvalString(c.Code, vars))) >= want, nil
	case script.SkillLevel:
		return compare(c.Comparison, float64(ch.SkillLevel(c.Skill))), nil
	case script.HP:
		return compare(c.Comparison, float64(ch.HP)), nil
	case script.HPPercent:
		return compare(c.Comparison, ch.HPPercent()), nil
	case script.Gold:
		return compare(c.Comparison, float64(ch.Gold)), nil
	case script.AtLocation:
		x := int(script.EvalNumber(c.X, vars))
		y := int(script.EvalNumber(c.Y, vars))
		return ch.At(x, y), nil
	case script.HasTask:
		return ch.HasTask(), nil
	case script.TaskProgressComplete:
		return ch.TaskComplete(), nil
	case script.TaskCoins:
		return compare(c.Comparison, float64(ch.TaskCoins())), nil
	}
	return false, fmt.Errorf("unsupported condition %T", c)
}
