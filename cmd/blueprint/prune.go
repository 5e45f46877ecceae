package main

import (
	"fmt"

	"github.com/metalagman/blueprint/internal/db"
	"github.com/spf13/cobra"
)

func pruneCmd() *cobra.Command {
	var (
		dryRun   bool
		keepLast int
		keepDays int
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored tool outputs outside the retention policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			policy := db.RetentionPolicy{KeepLast: a.cfg.Retention.KeepLast, KeepDays: a.cfg.Retention.KeepDays}
			if cmd.Flags().Changed("keep-last") {
				policy.KeepLast = keepLast
			}
			if cmd.Flags().Changed("keep-days") {
				policy.KeepDays = keepDays
			}
			res, err := a.store.PruneToolOutputs(cmd.Context(), policy, dryRun)
			if err != nil {
				return fmt.Errorf("prune failed: %w", err)
			}
			verb := "Deleted"
			if dryRun {
				verb = "Would delete"
			}
			fmt.Printf("%s %d of %d tool outputs (%d kept).\n", verb, res.Deleted, res.Considered, res.Kept)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without deleting")
	cmd.Flags().IntVar(&keepLast, "keep-last", 0, "keep the newest N outputs per project")
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "keep outputs younger than N days")
	return cmd
}
