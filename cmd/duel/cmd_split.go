package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"promptduel/internal/dataset"
	"promptduel/internal/tournament"
)

var splitOut string

var splitCmd = &cobra.Command{
	Use:   "split [dataset]",
	Short: "Show (and optionally write) the train/holdout partition",
	Long: `Partitions the dataset with dataset.holdout_mod / holdout_remainder and prints
per-category counts for both sides. With --out, writes train.jsonl and
holdout.jsonl into that directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSplit,
}

func init() {
	splitCmd.Flags().StringVar(&splitOut, "out", "", "Directory to write train.jsonl and holdout.jsonl")
}

func runSplit(cmd *cobra.Command, args []string) error {
	path := cfg.Dataset.File
	if len(args) == 1 {
		path = workspacePath(args[0])
	}
	cases, err := dataset.Load(path)
	if err != nil {
		return err
	}
	split, err := dataset.Partition(cases, cfg.Dataset.HoldoutMod, cfg.Dataset.HoldoutRemainder)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s (mod=%d remainder=%d)\n", titleStyle.Render("Split"), path,
		cfg.Dataset.HoldoutMod, cfg.Dataset.HoldoutRemainder)

	train, holdout := categoryCounts(split.Train), categoryCounts(split.Holdout)
	names := map[dataset.Category]bool{}
	for c := range train {
		names[c] = true
	}
	for c := range holdout {
		names[c] = true
	}
	stats := tournament.CategoryStats{}
	for c := range names {
		stats[c] = tournament.CategoryStat{}
	}
	var rows [][]string
	for _, c := range stats.Names() {
		rows = append(rows, []string{string(c), fmt.Sprint(train[c]), fmt.Sprint(holdout[c])})
	}
	rows = append(rows, []string{"total", fmt.Sprint(len(split.Train)), fmt.Sprint(len(split.Holdout))})
	fmt.Fprint(out, renderTable([]string{"category", "train", "holdout"}, rows))

	if splitOut == "" {
		return nil
	}
	dir := workspacePath(splitOut)
	if err := dataset.WriteCases(filepath.Join(dir, "train.jsonl"), split.Train); err != nil {
		return err
	}
	if err := dataset.WriteCases(filepath.Join(dir, "holdout.jsonl"), split.Holdout); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", dir)
	return nil
}

func categoryCounts(cases []dataset.Case) map[dataset.Category]int {
	counts := make(map[dataset.Category]int)
	for _, c := range cases {
		counts[c.Category]++
	}
	return counts
}
