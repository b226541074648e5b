package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/script-runner/internal/services"
	"github.com/jwebster45206/script-runner/internal/storage"
	"github.com/jwebster45206/script-runner/internal/worker"
	"github.com/jwebster45206/script-runner/pkg/executor"
	"github.com/jwebster45206/script-runner/pkg/queue"
	"github.com/jwebster45206/script-runner/pkg/state"
)

type runOptions struct {
	character  string
	scriptFile string
	watch      bool
	fresh      bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a script for a character, or resume the stored one",
		Long: `Run executes a script in the foreground and prints its log.

Without --script the character's stored script is resumed from where it
stopped; --fresh restarts it from the top. With --watch the script file is
reloaded and restarted whenever it changes on disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.watch && o.scriptFile == "" {
				return errors.New("--watch requires --script")
			}
			return runScript(cmd.Context(), g, o, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&o.character, "character", "c", "", "Character name")
	flags.StringVarP(&o.scriptFile, "script", "s", "", "Script file to run")
	flags.BoolVarP(&o.watch, "watch", "w", false, "Restart the script when the file changes")
	flags.BoolVar(&o.fresh, "fresh", false, "Restart the stored script from the top")
	_ = cmd.MarkFlagRequired("character")
	return cmd
}

// printer writes script output for a terminal.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) OnLog(character, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s [%s] %s\n", time.Now().Format("15:04:05"), character, line)
}

func (p *printer) OnStateChange(*state.ExecutionState) {}

func (p *printer) OnLevelUp(character, skill string, from, to int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s [%s] *** %s level %d -> %d ***\n", time.Now().Format("15:04:05"), character, skill, from, to)
}

func runScript(ctx context.Context, g *globalOptions, o *runOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := g.cfg.RequireGameAPI(); err != nil {
		return err
	}

	store, err := storage.New(g.cfg, g.log)
	if err != nil {
		return err
	}
	defer store.Close()

	api := services.NewArtifactsClient(g.cfg.ArtifactsAPIURL, g.cfg.ArtifactsToken, g.log)
	proc := worker.NewScriptProcessor(api, store, &printer{out: out}, g.log,
		executor.WithMaxIterations(g.cfg.MaxLoopIterations),
		executor.WithCooldownMargin(g.cfg.CooldownMargin),
	)

	req := &queue.Request{Character: o.character, Fresh: o.fresh}
	var src []byte
	if o.scriptFile != "" {
		if src, err = os.ReadFile(o.scriptFile); err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}
		req.Script = string(src)
	}

	var events <-chan fsnotify.Event
	if o.watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()
		// Editors often replace the file, so watch the directory.
		if err := watcher.Add(filepath.Dir(o.scriptFile)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", o.scriptFile, err)
		}
		events = watcher.Events
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	target := filepath.Clean(o.scriptFile)
	for {
		st, err := proc.Prepare(ctx, req)
		if err != nil {
			return err
		}
		ex := proc.Executor(st)
		done := make(chan error, 1)
		go func() {
			done <- ex.Run(ctx)
		}()

	wait:
		for {
			select {
			case err := <-done:
				final := ex.State()
				fmt.Fprintf(out, "Finished with status %s after %d actions\n", final.Status, final.Metrics.ActionsExecuted)
				if !o.watch {
					return err
				}
				// Keep watching; a later edit starts a new run.
				done = nil
			case <-sigChan:
				ex.Stop()
				if done != nil {
					<-done
				}
				fmt.Fprintf(out, "Stopped at line %d\n", ex.State().CurrentLine)
				return nil
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				next, err := os.ReadFile(o.scriptFile)
				if err != nil || bytes.Equal(next, src) {
					continue
				}
				src = next
				fmt.Fprintf(out, "%s changed, restarting\n", o.scriptFile)
				ex.Stop()
				if done != nil {
					<-done
				}
				req.Script = string(src)
				break wait
			}
		}
	}
}
