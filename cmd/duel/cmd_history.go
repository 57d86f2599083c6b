package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"promptduel/internal/fault"
	"promptduel/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past runs, or the rounds of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.Store.Enabled {
		return fault.Configurationf("the run index is disabled (store.enabled: false)")
	}
	s, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return fault.Configuration("failed to open run index", err)
	}
	defer s.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		runs, err := s.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded yet.")
			return nil
		}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			stop := r.StopReason
			if r.FinishedAt == nil {
				stop = "running"
			}
			rows = append(rows, []string{
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Mode,
				fmt.Sprint(r.RoundsRun), fmt.Sprint(r.Promotions), stop, r.RunDir,
			})
		}
		fmt.Fprint(out, renderTable([]string{"run", "started", "mode", "rounds", "promotions", "stop", "dir"}, rows))
		return nil
	}

	rounds, err := s.Rounds(ctx, args[0])
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(rounds))
	for _, r := range rounds {
		rows = append(rows, []string{
			fmt.Sprint(r.Round),
			decisionBadge(r.Decision),
			fmt.Sprintf("%d/%d", r.TrainAPass, r.TrainTotal),
			fmt.Sprintf("%d/%d", r.TrainBPass, r.TrainTotal),
			fmt.Sprint(r.HoldoutChecked),
			r.Reason,
		})
	}
	fmt.Fprint(out, renderTable([]string{"round", "decision", "train A", "train B", "holdout", "reason"}, rows))
	return nil
}
