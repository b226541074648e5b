package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/script-runner/internal/handlers"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Parse a script and report warnings and errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read script: %w", err)
			}
			return validateScript(cmd.OutOrStdout(), args[0], string(data))
		},
	}
}

func validateScript(out io.Writer, name, src string) error {
	res := handlers.Validate(src)
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "%s: warning: %s\n", name, w)
	}
	if !res.Valid {
		return fmt.Errorf("%s: %s", name, res.Error)
	}
	fmt.Fprintf(out, "%s: ok (%d statements, %d warnings)\n", name, res.Statements, len(res.Warnings))
	return nil
}
