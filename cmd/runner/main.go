package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/script-runner/internal/config"
	"github.com/jwebster45206/script-runner/internal/logger"
)

type globalOptions struct {
	cfg     *config.Config
	log     *slog.Logger
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{cfg: config.Load()}

	rootCmd := &cobra.Command{
		Use:           "runner",
		Short:         "Run character automation scripts against the game API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !g.verbose && g.cfg.LogLevel < slog.LevelError {
				// Script output is printed directly; keep slog for failures.
				g.cfg.LogLevel = slog.LevelError
			}
			g.log = logger.New(g.cfg, os.Stderr)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Also emit structured logs to stderr")
	flags.StringVar(&g.cfg.StateBackend, "backend", g.cfg.StateBackend, "State backend: file or redis")
	flags.StringVar(&g.cfg.StateDir, "state-dir", g.cfg.StateDir, "Directory for the file backend")
	flags.StringVar(&g.cfg.RedisURL, "redis-url", g.cfg.RedisURL, "Redis URL for the redis backend")

	rootCmd.AddCommand(newRunCmd(g), newValidateCmd(), newStateCmd(g))
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
