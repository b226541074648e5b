package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/script-runner/pkg/executor"
	"github.com/jwebster45206/script-runner/pkg/game"
	"github.com/jwebster45206/script-runner/pkg/queue"
	"github.com/jwebster45206/script-runner/pkg/state"
	"github.com/jwebster45206/script-runner/pkg/storage"
)

// ErrNoScript is returned when a resume is requested but nothing is stored.
var ErrNoScript = errors.New("no stored script to resume")

// ControlSource yields pending control signals for a character.
type ControlSource interface {
	TakeControl(ctx context.Context, character string) (queue.Control, error)
}

// ScriptProcessor turns a run request into an executor run.
// It's used by both the runner CLI (without control polling) and the worker.
type ScriptProcessor struct {
	api      game.API
	storage  storage.Storage
	observer executor.Observer
	logger   *slog.Logger
	opts     []executor.Option

	pollInterval time.Duration
}

// NewScriptProcessor creates a new script processor. opts are passed to every
// executor it builds.
func NewScriptProcessor(
	api game.API,
	storage storage.Storage,
	observer executor.Observer,
	logger *slog.Logger,
	opts ...executor.Option,
) *ScriptProcessor {
	if observer == nil {
		observer = executor.NopObserver{}
	}
	return &ScriptProcessor{
		api:          api,
		storage:      storage,
		observer:     observer,
		logger:       logger,
		opts:         opts,
		pollInterval: time.Second,
	}
}

// Prepare loads the character's stored state and applies the request to it:
// a new script resets the state, an empty one resumes (or restarts when Fresh).
func (p *ScriptProcessor) Prepare(ctx context.Context, req *queue.Request) (*state.ExecutionState, error) {
	st, err := p.storage.LoadExecutionState(ctx, req.Character)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution state: %w", err)
	}

	switch {
	case req.Script != "":
		if st == nil {
			st = state.NewExecutionState(req.Character, req.Script)
		} else {
			st.Reset(req.Script)
		}
	case st == nil || st.Script == "":
		return nil, fmt.Errorf("%s: %w", req.Character, ErrNoScript)
	case req.Fresh:
		st.Reset(st.Script)
	}
	return st, nil
}

// Executor builds an executor for st with the processor's options.
func (p *ScriptProcessor) Executor(st *state.ExecutionState) *executor.Executor {
	opts := append([]executor.Option{
		executor.WithStorage(p.storage),
		executor.WithObserver(p.observer),
	}, p.opts...)
	return executor.New(p.api, st, p.logger, opts...)
}

// Process runs the request to completion. While the script runs, controls is
// polled and stop/pause signals are forwarded to the executor. When shutdown
// is closed the run is paused so it can be resumed later.
func (p *ScriptProcessor) Process(ctx context.Context, req *queue.Request, controls ControlSource, shutdown <-chan struct{}) (*state.ExecutionState, error) {
	st, err := p.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	ex := p.Executor(st)

	done := make(chan error, 1)
	go func() {
		done <- ex.Run(ctx)
	}()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return ex.State(), err
		case <-shutdown:
			p.logger.Info("Pausing script for shutdown", "character", req.Character)
			ex.Pause()
			shutdown = nil
		case <-ticker.C:
			if controls == nil {
				continue
			}
			c, err := controls.TakeControl(ctx, req.Character)
			if err != nil {
				p.logger.Error("Failed to poll control", "error", err, "character", req.Character)
				continue
			}
			switch c {
			case queue.ControlStop:
				p.logger.Info("Stop requested", "character", req.Character)
				ex.Stop()
			case queue.ControlPause:
				p.logger.Info("Pause requested", "character", req.Character)
				ex.Pause()
			}
		}
	}
}
