package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"promptduel/internal/config"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run a one-round recommendation whenever a prompt or the dataset changes",
	Long: `Watches prompt A, prompt B and the dataset. After each burst of edits a single
round is played in recommend mode, so prompt files are never rewritten.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before re-running")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()
	files := []string{cfg.Prompts.ChampionFile, cfg.Prompts.ChallengerFile, cfg.Dataset.File}
	w, err := newPromptWatcher(files, watchDebounce, func(ctx context.Context, changed []string) {
		fmt.Fprintf(out, "%s %v\n", titleStyle.Render("changed:"), changed)
		summary, err := executeRun(ctx, watchConfig(cfg), out)
		if summary != nil {
			printRunSummary(out, summary)
		}
		if err != nil {
			logger.Warn("watch round failed", zap.Error(err))
			fmt.Fprintln(out, formatError(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	fmt.Fprintf(out, "Watching %d files (Ctrl+C to stop)\n", len(files))
	w.Run(ctx)
	return nil
}

// watchConfig is c restricted to one recommend-mode round.
func watchConfig(c *config.Config) *config.Config {
	cp := *c
	cp.Mode = config.ModeRecommend
	cp.Rounds.MaxRounds = 1
	cp.Rounds.Patience = 1
	return &cp
}
