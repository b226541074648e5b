package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/script-runner/pkg/game"
)

// call performs one remote action. Cooldown failures are waited out and
// retried without counting, already-satisfied failures count as success, a
// missing target is terminal and anything else is retried with exponential
// backoff.
func (e *Executor) call(ctx context.Context, a game.Action) (*game.ActionResult, error) {
	if err := e.awaitCooldown(ctx); err != nil {
		return nil, err
	}

	cooldownRetries, attempts := 0, 0
	for {
		res, err := e.api.Do(ctx, e.st.Character, a)
		if err == nil {
			e.succeeded(ctx, a, res, describe(a, res))
			return res, nil
		}

		switch game.ClassOf(err) {
		case game.FailureCooldown:
			if cooldownRetries >= maxCooldownRetries {
				return nil, fmt.Errorf("%s: still in cooldown after %d retries: %w", a, cooldownRetries, err)
			}
			cooldownRetries++
			var ae *game.ActionError
			errors.As(err, &ae)
			wait := ae.CooldownWait(e.now()) + e.margin
			e.logger.Debug("Action in cooldown, waiting", "action", a.String(), "wait", wait, "retry", cooldownRetries)
			if err := e.suspend(ctx, wait); err != nil {
				return nil, err
			}

		case game.FailureAlreadySatisfied:
			c, err := e.refresh(ctx)
			if err != nil {
				return nil, err
			}
			res := &game.ActionResult{Character: c}
			e.succeeded(ctx, a, res, fmt.Sprintf("%s: already done", a))
			return res, nil

		case game.FailureNoTarget, game.FailureMalformed:
			return nil, fmt.Errorf("%s: %w", a, err)

		default:
			attempts++
			if attempts >= maxAttempts {
				return nil, fmt.Errorf("%s failed after %d attempts: %w", a, attempts, err)
			}
			backoff := time.Second << (attempts - 1)
			e.warnf("%s failed (%v), retrying in %s", a, err, backoff)
			if err := e.suspend(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}
}

// awaitCooldown sleeps out a cooldown reported by the held snapshot.
func (e *Executor) awaitCooldown(ctx context.Context) error {
	c, err := e.snapshot(ctx)
	if err != nil {
		return err
	}
	if remaining := c.CooldownRemaining(e.now()); remaining > 0 {
		e.logger.Debug("Waiting for cooldown", "wait", remaining+e.margin)
		return e.suspend(ctx, remaining+e.margin)
	}
	return nil
}

// succeeded records a completed action: metrics, snapshot, log line, stuck
// check and a save.
func (e *Executor) succeeded(ctx context.Context, a game.Action, res *game.ActionResult, line string) {
	m := &e.st.Metrics
	m.ActionsExecuted++
	if res.Skill != "" && res.XP > 0 {
		m.XPGained[res.Skill] += res.XP
	}
	m.GoldGained += res.Gold
	if a.Kind == game.ActionGather || a.Kind == game.ActionFight {
		for _, d := range res.Items {
			m.ItemsGathered[d.Code] += d.Quantity
		}
	}

	if res.Character != nil {
		e.setSnapshot(res.Character)
	} else {
		e.char = nil
	}

	e.logf("%s", line)
	if e.char != nil && e.stuck.observe(e.char) {
		e.warnf("No visible progress after %d actions (position, HP and inventory unchanged)", e.stuck.threshold)
	}
	e.persist(ctx)
}

// snapshot returns the held character, fetching it when none is held.
func (e *Executor) snapshot(ctx context.Context) (*game.Character, error) {
	if e.char != nil {
		return e.char, nil
	}
	return e.refresh(ctx)
}

// refresh replaces the held snapshot with a fresh one from the server.
func (e *Executor) refresh(ctx context.Context) (*game.Character, error) {
	c, err := e.api.Character(ctx, e.st.Character)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch character: %w", err)
	}
	e.setSnapshot(c)
	return c, nil
}

func (e *Executor) setSnapshot(c *game.Character) {
	if prev := e.char; prev != nil {
		for _, up := range levelUps(prev, c) {
			e.logf("Level up! %s %d -> %d", skillTitle(up.Skill), up.From, up.To)
			e.observer.OnLevelUp(e.st.Character, up.Skill, up.From, up.To)
		}
	}
	e.char = c
}

func describe(a game.Action, res *game.ActionResult) string {
	switch a.Kind {
	case game.ActionMove:
		return fmt.Sprintf("Moved to (%d,%d)", a.X, a.Y)
	case game.ActionGather:
		s := "Gathered"
		for _, d := range res.Items {
			s += fmt.Sprintf(" %dx %s", d.Quantity, d.Code)
		}
		if res.XP > 0 {
			s += fmt.Sprintf(" (+%d %s xp)", res.XP, res.Skill)
		}
		return s
	case game.ActionFight:
		if res.Fight == nil {
			return "Fight finished"
		}
		return fmt.Sprintf("Fight %s in %d turns (+%d xp, +%d gold)", res.Fight.Result, res.Fight.Turns, res.XP, res.Gold)
	case game.ActionRest:
		if res.Character != nil {
			return fmt.Sprintf("Rested to %d/%d HP", res.Character.HP, res.Character.MaxHP)
		}
		return "Rested"
	}
	return "Done: " + a.String()
}
