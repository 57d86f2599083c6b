package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"promptduel/internal/adapter"
	"promptduel/internal/artifacts"
	"promptduel/internal/config"
	"promptduel/internal/dataset"
	"promptduel/internal/eval"
	"promptduel/internal/fault"
	"promptduel/internal/metrics"
	"promptduel/internal/store"
	"promptduel/internal/tactile"
	"promptduel/internal/tournament"
)

var (
	runMode      string
	runMaxRounds int
	runPatience  int
	runDataset   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a champion/challenger tournament",
	Long: `Plays rounds of prompt A (champion) against prompt B (challenger) until
patience runs out or max_rounds is reached.

In recommend mode (the default) the prompt files are never modified; each round
writes recommendation.md/json and suggested_prompt_b.txt into the run directory.
In auto_apply mode a promotion rewrites prompt A and every round rewrites prompt B.`,
	Args: cobra.NoArgs,
	RunE: runTournament,
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "", "Override mode (auto_apply or recommend)")
	runCmd.Flags().IntVar(&runMaxRounds, "max-rounds", 0, "Override rounds.max_rounds")
	runCmd.Flags().IntVar(&runPatience, "patience", 0, "Override rounds.patience")
	runCmd.Flags().StringVar(&runDataset, "dataset", "", "Override dataset.file")
}

func runTournament(cmd *cobra.Command, args []string) error {
	if runMode != "" {
		cfg.Mode = runMode
	}
	if cmd.Flags().Changed("max-rounds") {
		cfg.Rounds.MaxRounds = runMaxRounds
	}
	if cmd.Flags().Changed("patience") {
		cfg.Rounds.Patience = runPatience
	}
	if runDataset != "" {
		cfg.Dataset.File = workspacePath(runDataset)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()
	summary, err := executeRun(ctx, cfg, out)
	if summary != nil {
		printRunSummary(out, summary)
	}
	return err
}

// executeRun validates c, prepares the run directory and plays the
// tournament. The summary is non-nil whenever the engine was built.
func executeRun(ctx context.Context, c *config.Config, out io.Writer) (*tournament.RunSummary, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := c.CheckFiles(); err != nil {
		return nil, err
	}

	cases, err := dataset.Load(c.Dataset.File)
	if err != nil {
		return nil, err
	}
	split, err := dataset.Partition(cases, c.Dataset.HoldoutMod, c.Dataset.HoldoutRemainder)
	if err != nil {
		return nil, err
	}
	champion, err := os.ReadFile(c.Prompts.ChampionFile)
	if err != nil {
		return nil, fault.Configuration("failed to read champion prompt", err)
	}
	challenger, err := os.ReadFile(c.Prompts.ChallengerFile)
	if err != nil {
		return nil, fault.Configuration("failed to read challenger prompt", err)
	}

	exec := tactile.NewDirectExecutor()
	evaluator, err := adapter.FromConfig(ctx, c, exec)
	if err != nil {
		return nil, fault.Configuration("failed to build evaluation adapter", err)
	}

	layout, err := artifacts.NewRunLayout(c.RunRoot, time.Now())
	if err != nil {
		return nil, fault.Configuration("failed to create run directory", err)
	}
	runID := uuid.NewString()
	logger.Info("starting run",
		zap.String("run_id", runID),
		zap.String("run_dir", layout.RunDir),
		zap.String("mode", c.Mode),
		zap.Int("train", len(split.Train)),
		zap.Int("holdout", len(split.Holdout)))

	var journals []tournament.Journal
	var runStore *store.RunStore
	if c.Store.Enabled {
		runStore, err = store.Open(c.Store.DatabasePath)
		if err != nil {
			logger.Warn("run index unavailable", zap.Error(err))
		} else {
			defer runStore.Close()
			if _, err := runStore.BeginRun(ctx, store.RunInfo{
				ID:          runID,
				RunDir:      layout.RunDir,
				Mode:        c.Mode,
				DatasetFile: c.Dataset.File,
			}); err != nil {
				logger.Warn("failed to index run", zap.Error(err))
				runStore = nil
			} else {
				journals = append(journals, runStore)
			}
		}
	}

	var recorder *metrics.Recorder
	if c.Metrics.Enabled {
		recorder = metrics.NewRecorder()
	}

	ws, _ := resolveWorkspace()
	engine, err := tournament.NewEngine(tournament.EngineConfig{
		Evaluator: evaluator,
		Layout:    layout,
		Split:     split,
		Journals:  journals,
		Observer:  &consoleObserver{out: out, next: recorder},
		GitHead: func(ctx context.Context) string {
			return artifacts.GitHead(ctx, exec, ws)
		},
		Options: engineOptions(c, runID),
	})
	if err != nil {
		finishIndexedRun(ctx, runStore, &tournament.RunSummary{
			RunID:      runID,
			RunDir:     layout.RunDir,
			Mode:       c.Mode,
			StopReason: tournament.StopAborted,
			Error:      err.Error(),
		})
		return nil, err
	}

	summary, _, runErr := engine.Run(ctx, tournament.NewPromptState(string(champion), string(challenger)))

	finishIndexedRun(ctx, runStore, summary)
	if recorder != nil {
		if err := recorder.WriteTextfile(c.MetricsPath(layout.RunDir)); err != nil {
			logger.Warn("metrics export failed", zap.Error(err))
		}
	}
	return summary, runErr
}

// finishIndexedRun closes the run's index row. A nil store is a no-op.
func finishIndexedRun(ctx context.Context, runStore *store.RunStore, summary *tournament.RunSummary) {
	if runStore == nil {
		return
	}
	if err := runStore.FinishRun(ctx, summary); err != nil {
		logger.Warn("failed to finish run index", zap.Error(err))
	}
}

func engineOptions(c *config.Config, runID string) tournament.Options {
	backend := c.Evaluation.Script.Backend
	if c.Evaluation.Adapter == config.AdapterLocal {
		backend = c.Evaluation.Local.Backend
	} else if c.Evaluation.Adapter == config.AdapterGemini {
		backend = c.Evaluation.Gemini.Model
	}
	return tournament.Options{
		RunID: runID,
		Mode:  c.Mode,
		Policy: tournament.Policy{
			ImprovementMode:    c.Promotion.ImprovementMode,
			MinImprovement:     c.Promotion.MinImprovement,
			MaxCategoryDropPP:  c.Promotion.MaxCategoryDropPP,
			MinHoldoutPassRate: c.Promotion.MinHoldoutPassRate,
			HoldoutEnabled:     c.Promotion.HoldoutEnabled,
		},
		MaxRounds:       c.Rounds.MaxRounds,
		Patience:        c.Rounds.Patience,
		MaxCasesTrain:   c.Evaluation.MaxCasesTrain,
		MaxCasesHoldout: c.Evaluation.MaxCasesHoldout,
		CaseTimeout:     c.GetEvalTimeout(),
		CallTimeout:     c.GetCallTimeout(),
		ChampionFile:    c.Prompts.ChampionFile,
		ChallengerFile:  c.Prompts.ChallengerFile,
		Protocol: tournament.Protocol{
			DatasetFile:        c.Dataset.File,
			Adapter:            c.Evaluation.Adapter,
			Backend:            backend,
			TimeoutSec:         c.GetEvalTimeout().Seconds(),
			HoldoutMod:         c.Dataset.HoldoutMod,
			HoldoutRemainder:   c.Dataset.HoldoutRemainder,
			ImprovementMode:    c.Promotion.ImprovementMode,
			MinImprovement:     c.Promotion.MinImprovement,
			MaxCategoryDropPP:  c.Promotion.MaxCategoryDropPP,
			MinHoldoutPassRate: c.Promotion.MinHoldoutPassRate,
			HoldoutEnabled:     c.Promotion.HoldoutEnabled,
		},
	}
}

// consoleObserver prints a line per round and forwards to the metrics
// recorder when one is configured.
type consoleObserver struct {
	out  io.Writer
	next *metrics.Recorder
}

func (o *consoleObserver) ObserveEvaluation(label string, s eval.Summary, elapsed time.Duration) {
	logger.Debug("evaluation finished",
		zap.String("label", label),
		zap.Int("pass", s.PassCount),
		zap.Int("total", s.TotalCases),
		zap.Duration("elapsed", elapsed))
	if o.next != nil {
		o.next.ObserveEvaluation(label, s, elapsed)
	}
}

func (o *consoleObserver) ObserveRound(rec *tournament.RoundRecord) {
	fmt.Fprintln(o.out, roundLine(rec))
	if o.next != nil {
		o.next.ObserveRound(rec)
	}
}

func printRunSummary(out io.Writer, s *tournament.RunSummary) {
	rec := s.Recommendation
	if rec == tournament.DecisionPromote.Recommendation() {
		rec = okStyle.Render(rec)
	} else {
		rec = labelStyle.Render(rec)
	}
	lines := []string{
		titleStyle.Render("Run complete"),
		fmt.Sprintf("%s %s", labelStyle.Render("run dir:   "), s.RunDir),
		fmt.Sprintf("%s %d (stop: %s)", labelStyle.Render("rounds:    "), s.RoundsRun, s.StopReason),
		fmt.Sprintf("%s %d", labelStyle.Render("promotions:"), s.Promotions),
		fmt.Sprintf("%s %s", labelStyle.Render("verdict:   "), rec),
		fmt.Sprintf("%s %s", labelStyle.Render("log:       "), s.LogFile),
	}
	if s.Error != "" {
		lines = append(lines, badStyle.Render("aborted: ")+s.Error)
	}
	fmt.Fprintln(out, boxStyle.Render(strings.Join(lines, "\n")))
}
