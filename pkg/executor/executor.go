// Package executor runs parsed scripts against one character.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jwebster45206/script-runner/pkg/game"
	"github.com/jwebster45206/script-runner/pkg/script"
	"github.com/jwebster45206/script-runner/pkg/state"
	"github.com/jwebster45206/script-runner/pkg/storage"
)

const (
	DefaultMaxIterations  = 10000
	DefaultCooldownMargin = 500 * time.Millisecond

	stuckThreshold     = 10
	maxCooldownRetries = 5
	maxAttempts        = 4
)

var (
	errStopped = errors.New("script stopped")
	errPaused  = errors.New("script paused")
)

// Sleeper suspends for d. It returns early with an error when ctx is done or the
// wait was interrupted.
type Sleeper func(ctx context.Context, d time.Duration) error

// Executor interprets one script for one character. It owns the
// ExecutionState it was given and must not be shared between goroutines,
// except for Stop and Pause.
type Executor struct {
	api      game.API
	st       *state.ExecutionState
	store    storage.Storage
	observer Observer
	logger   *slog.Logger

	maxIter int
	margin  time.Duration
	sleep   Sleeper
	now     func() time.Time

	char  *game.Character
	stuck stuckWatch

	stopReq  atomic.Bool
	pauseReq atomic.Bool
	wake     chan struct{}
}

// Option configures an Executor.
type Option func(*Executor)

// WithStorage persists the state after every mutation.
func WithStorage(s storage.Storage) Option {
	return func(e *Executor) { e.store = s }
}

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithSleeper replaces the real timer, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

// WithMaxIterations caps the iterations of any single loop entry.
func WithMaxIterations(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxIter = n
		}
	}
}

// WithCooldownMargin is added to every server-reported cooldown wait.
func WithCooldownMargin(d time.Duration) Option {
	return func(e *Executor) { e.margin = max(d, 0) }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an executor for st. The script to run is st.Script.
func New(api game.API, st *state.ExecutionState, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		api:      api,
		st:       st,
		observer: NopObserver{},
		logger:   logger.With("character", st.Character),
		maxIter:  DefaultMaxIterations,
		margin:   DefaultCooldownMargin,
		now:      time.Now,
		stuck:    stuckWatch{threshold: stuckThreshold},
		wake:     make(chan struct{}, 1),
	}
	e.sleep = e.interruptibleSleep
	for _, opt := range opts {
		opt(e)
	}
	st.Normalize()
	return e
}

// Stop asks the script to stop at the next suspension point. An action that is
// already in flight always completes first.
func (e *Executor) Stop() {
	e.stopReq.Store(true)
	e.interrupt()
}

// Pause is like Stop but leaves the script resumable from where it halted.
func (e *Executor) Pause() {
	e.pauseReq.Store(true)
	e.interrupt()
}

func (e *Executor) interrupt() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// State returns the execution state. Only read it after Run returns.
func (e *Executor) State() *state.ExecutionState {
	return e.st
}

// Run parses and executes the script until it completes, is stopped or paused,
// or fails. The final status is persisted before Run returns. The returned
// error is non-nil only for status error.
func (e *Executor) Run(ctx context.Context) error {
	prog, err := script.Parse(e.st.Script)
	if err != nil {
		e.st.Status = state.StatusError
		e.st.Error = err.Error()
		e.errorf("Parse error: %v", err)
		e.persist(context.WithoutCancel(ctx))
		return err
	}

	e.st.Status = state.StatusRunning
	e.st.Error = ""
	start := resumeIndex(prog.Statements, e.st.CurrentLine)
	if start > 0 {
		e.logf("Resuming at line %d", prog.Statements[start].Pos())
	} else {
		e.logf("Script started")
	}
	for _, w := range prog.Warnings {
		e.warnf("%s", w)
	}
	e.persist(ctx)

	err = e.execBlock(ctx, prog.Statements[start:])

	switch {
	case err == nil:
		e.st.Status = state.StatusStopped
		e.st.CurrentLine = 0
		e.logf("Script completed (%d actions)", e.st.Metrics.ActionsExecuted)
	case errors.Is(err, errStopped), errors.Is(err, context.Canceled):
		e.st.Status = state.StatusStopped
		e.logf("Script stopped at line %d", e.st.CurrentLine)
		err = nil
	case errors.Is(err, errPaused):
		e.st.Status = state.StatusPaused
		e.logf("Script paused at line %d", e.st.CurrentLine)
		err = nil
	default:
		e.st.Status = state.StatusError
		e.st.Error = err.Error()
		e.errorf("Script failed at line %d: %v", e.st.CurrentLine, err)
	}
	e.persist(context.WithoutCancel(ctx))
	return err
}

// resumeIndex finds the top-level statement whose line range contains line.
func resumeIndex(stmts []script.Statement, line int) int {
	if line <= 0 {
		return 0
	}
	idx := 0
	for i, s := range stmts {
		if s.Pos() > line {
			break
		}
		idx = i
	}
	return idx
}

func (e *Executor) execBlock(ctx context.Context, stmts []script.Statement) error {
	for _, s := range stmts {
		if err := e.checkControl(ctx); err != nil {
			return err
		}
		e.st.CurrentLine = s.Pos()
		if err := e.exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) checkControl(ctx context.Context) error {
	if e.stopReq.Load() || ctx.Err() != nil {
		return errStopped
	}
	if e.pauseReq.Load() {
		return errPaused
	}
	return nil
}

// suspend sleeps for d and then reports any stop or pause requested meanwhile.
func (e *Executor) suspend(ctx context.Context, d time.Duration) error {
	if d > 0 {
		if err := e.sleep(ctx, d); err != nil {
			if ctrl := e.checkControl(ctx); ctrl != nil {
				return ctrl
			}
			return err
		}
	}
	return e.checkControl(ctx)
}

func (e *Executor) interruptibleSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.wake:
		return errStopped
	case <-t.C:
		return nil
	}
}

func (e *Executor) persist(ctx context.Context) {
	e.st.UpdatedAt = e.now()
	if e.store != nil {
		if err := e.store.SaveExecutionState(ctx, e.st); err != nil {
			e.logger.Error("Failed to save execution state", "error", err)
		}
	}
	e.observer.OnStateChange(e.st.Clone())
}

func (e *Executor) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	e.st.AppendLog(line)
	e.logger.Info(line, "line", e.st.CurrentLine)
	e.observer.OnLog(e.st.Character, line)
}

func (e *Executor) warnf(format string, args ...any) {
	line := "WARNING: " + fmt.Sprintf(format, args...)
	e.st.AppendLog(line)
	e.logger.Warn(line, "line", e.st.CurrentLine)
	e.observer.OnLog(e.st.Character, line)
}

func (e *Executor) errorf(format string, args ...any) {
	line := "ERROR: " + fmt.Sprintf(format, args...)
	e.st.AppendLog(line)
	e.logger.Error(line, "line", e.st.CurrentLine)
	e.observer.OnLog(e.st.Character, line)
}
