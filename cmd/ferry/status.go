package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bamsammich/ferry/internal/history"
	"github.com/bamsammich/ferry/internal/manifest"
	"github.com/bamsammich/ferry/internal/ui"
)

func newStatusCmd(_ *globalOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "status [flags] <manifest>",
		Short: "Show progress recorded in a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return &exitError{code: exitFailed, err: err}
			}
			ui.RenderStatus(cmd.OutOrStdout(), m, all)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "list every file, not only incomplete ones")
	return cmd
}

func newHistoryCmd(g *globalOptions) *cobra.Command {
	var (
		limit int
		path  string
	)
	cmd := &cobra.Command{
		Use:   "history [flags]",
		Short: "List recent copy runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("history") && g.cfg.Defaults.History != nil {
				path = *g.cfg.Defaults.History
			}
			if path == "" {
				path = history.DefaultPath()
			}
			db, err := history.Open(path)
			if err != nil {
				return &exitError{code: exitFailed, err: fmt.Errorf("open history: %w", err)}
			}
			defer db.Close()

			runs, err := db.List(limit)
			if err != nil {
				return &exitError{code: exitFailed, err: err}
			}
			ui.RenderHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of runs to show (0 for all)")
	cmd.Flags().StringVar(&path, "history", "", "run history database (default: $XDG_STATE_HOME/ferry/history.db)")
	return cmd
}
