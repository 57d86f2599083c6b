package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"promptduel/internal/config"
	"promptduel/internal/fault"
	"promptduel/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// Set up in PersistentPreRunE
	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "duel",
	Short: "promptduel - champion/challenger prompt tournaments",
	Long: `promptduel iteratively improves a prompt by pitting the current champion (A)
against a challenger (B) on a fixed train split, gating promotion on per-category
guardrails and a holdout check, and rebuilding the challenger from the loser's
failures each round.

Configuration is read from duel.yaml in the workspace unless --config is given.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		path := configPath
		if path == "" {
			path = filepath.Join(ws, config.DefaultConfigFile)
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		absolutize(cfg)
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(ws, cfg.Logging.Settings()); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		logging.Boot("config loaded from %s (mode=%s adapter=%s)", path, cfg.Mode, cfg.Evaluation.Adapter)
		logger.Debug("config loaded", zap.String("path", path), zap.String("mode", cfg.Mode))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/duel.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(mutateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// formatError renders classified faults with their remediation hint.
func formatError(err error) string {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return fe.Format()
	}
	return "Error: " + err.Error()
}

func resolveWorkspace() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	return os.Getwd()
}

// workspacePath resolves a config-relative path against the workspace.
func workspacePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	ws, err := resolveWorkspace()
	if err != nil {
		return p
	}
	return filepath.Join(ws, p)
}

// absolutize makes every file path in c relative to the workspace. Script
// commands without a separator are looked up on PATH and left alone.
func absolutize(c *config.Config) {
	c.RunRoot = workspacePath(c.RunRoot)
	c.Prompts.ChampionFile = workspacePath(c.Prompts.ChampionFile)
	c.Prompts.ChallengerFile = workspacePath(c.Prompts.ChallengerFile)
	c.Dataset.File = workspacePath(c.Dataset.File)
	c.Store.DatabasePath = workspacePath(c.Store.DatabasePath)
	if strings.ContainsRune(c.Evaluation.Script.Command, filepath.Separator) {
		c.Evaluation.Script.Command = workspacePath(c.Evaluation.Script.Command)
	}
	c.Evaluation.Local.BinaryPath = workspacePath(c.Evaluation.Local.BinaryPath)
	c.Evaluation.Local.ModelPath = workspacePath(c.Evaluation.Local.ModelPath)
}
