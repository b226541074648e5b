package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/script-runner/internal/storage"
	pkgstorage "github.com/jwebster45206/script-runner/pkg/storage"
)

func newStateCmd(g *globalOptions) *cobra.Command {
	var character string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the stored execution state of a character",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.New(g.cfg, g.log)
			if err != nil {
				return err
			}
			defer store.Close()
			return printState(cmd.Context(), cmd.OutOrStdout(), store, character)
		},
	}
	cmd.Flags().StringVarP(&character, "character", "c", "", "Character name")
	_ = cmd.MarkFlagRequired("character")
	return cmd
}

func printState(ctx context.Context, out io.Writer, store pkgstorage.Storage, character string) error {
	st, err := store.LoadExecutionState(ctx, character)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("no stored state for %s", character)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}
