package executor

import "github.com/jwebster45206/script-runner/pkg/state"

// Observer receives fire-and-forget notifications from a running script.
// Implementations must not block; the interpreter does not wait for them.
type Observer interface {
	OnLog(character, line string)
	OnStateChange(st *state.ExecutionState)
	OnLevelUp(character, skill string, from, to int)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) OnLog(string, string)                {}
func (NopObserver) OnStateChange(*state.ExecutionState) {}
func (NopObserver) OnLevelUp(string, string, int, int)  {}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (obs Observers) OnLog(character, line string) {
	for _, o := range obs {
		o.OnLog(character, line)
	}
}

func (obs Observers) OnStateChange(st *state.ExecutionState) {
	for _, o := range obs {
		o.OnStateChange(st)
	}
}

func (obs Observers) OnLevelUp(character, skill string, from, to int) {
	for _, o := range obs {
		o.OnLevelUp(character, skill, from, to)
	}
}
