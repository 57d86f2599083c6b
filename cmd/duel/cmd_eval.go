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

	"promptduel/internal/adapter"
	"promptduel/internal/config"
	"promptduel/internal/dataset"
	"promptduel/internal/eval"
	"promptduel/internal/fault"
	"promptduel/internal/tactile"
)

// Flags mirror the evaluation-script contract so `duel eval` can itself be
// configured as evaluation.script.command.
var (
	evalAdapter        string
	evalPromptFile     string
	evalCasesFile      string
	evalReportFile     string
	evalJSONReportFile string
	evalBackend        string
	evalTimeoutSec     float64
	evalMaxCases       int
	evalModelPath      string
	evalBinaryPath     string
	evalLiteRTLMDir    string
	evalNoUpdate       bool
	evalSkipSetup      bool
	evalSkipDownload   bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate one prompt against a case file with the local runner",
	Long: `Runs every case through a model (a local binary or Gemini), compares the
cleaned output with the expected text and writes a text and a JSON report.

The flags match what the script adapter passes, so a config can point
evaluation.script.command at this binary with args: ["eval"].`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	f := evalCmd.Flags()
	f.StringVar(&evalAdapter, "adapter", "", "Model client: local or gemini (default: evaluation.adapter, else local)")
	f.StringVar(&evalPromptFile, "prompt-file", "", "Prompt template file")
	f.StringVar(&evalCasesFile, "cases-file", "", "Case file (JSONL or JSON array)")
	f.StringVar(&evalReportFile, "report-file", "", "Text report output path")
	f.StringVar(&evalJSONReportFile, "json-report-file", "", "JSON report output path")
	f.StringVar(&evalBackend, "backend", "", "Local binary backend (cpu or gpu)")
	f.Float64Var(&evalTimeoutSec, "timeout-sec", 0, "Per-case timeout in seconds (default: evaluation.timeout)")
	f.IntVar(&evalMaxCases, "max-cases", 0, "Evaluate at most this many cases (0 = all)")
	f.StringVar(&evalModelPath, "model-path", "", "Local model file")
	f.StringVar(&evalBinaryPath, "binary-path", "", "Local model binary")
	f.StringVar(&evalLiteRTLMDir, "litertlm-dir", "", "Accepted for compatibility; unused")
	f.BoolVar(&evalNoUpdate, "no-update", false, "Accepted for compatibility; unused")
	f.BoolVar(&evalSkipSetup, "skip-setup", false, "Accepted for compatibility; unused")
	f.BoolVar(&evalSkipDownload, "skip-download", false, "Accepted for compatibility; unused")
	evalCmd.MarkFlagRequired("prompt-file")
	evalCmd.MarkFlagRequired("cases-file")
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := evalClient(ctx, cfg)
	if err != nil {
		return err
	}
	runner := adapter.NewRunner(client)
	out := cmd.OutOrStdout()
	runner.Progress = func(i, total int, c dataset.Case) {
		logger.Debug("case", zap.Int("index", i), zap.Int("total", total), zap.String("id", c.ID.String()))
	}

	caseTimeout := cfg.GetEvalTimeout()
	if evalTimeoutSec > 0 {
		caseTimeout = time.Duration(evalTimeoutSec * float64(time.Second))
	}
	res, err := runner.Evaluate(ctx, eval.Request{
		Label:          "eval",
		PromptFile:     workspacePath(evalPromptFile),
		CasesFile:      workspacePath(evalCasesFile),
		MaxCases:       evalMaxCases,
		CaseTimeout:    caseTimeout,
		TextReportPath: workspacePath(evalReportFile),
		JSONReportPath: workspacePath(evalJSONReportFile),
	})
	if err != nil {
		return err
	}

	s := res.Summary
	fmt.Fprintf(out, "%s pass=%d fail=%d total=%d pass_rate=%.2f%% avg_latency_ms=%d\n",
		titleStyle.Render("Summary"), s.PassCount, s.FailCount, s.TotalCases, s.PassRate, s.AvgLatencyMs)
	if res.JSONReportPath != "" {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("json report:"), res.JSONReportPath)
	}
	return nil
}

func evalClient(ctx context.Context, c *config.Config) (adapter.ModelClient, error) {
	kind := evalAdapter
	if kind == "" {
		kind = c.Evaluation.Adapter
	}
	switch kind {
	case config.AdapterGemini:
		if c.Evaluation.Gemini.APIKey == "" {
			return nil, fault.Configurationf("gemini adapter needs evaluation.gemini.api_key or GEMINI_API_KEY")
		}
		client, err := adapter.NewGeminiClient(ctx, c.Evaluation.Gemini.APIKey, c.Evaluation.Gemini.Model, c.Evaluation.Gemini.RequestsPerSecond)
		if err != nil {
			return nil, fault.Configuration("failed to create gemini client", err)
		}
		return client, nil
	case config.AdapterLocal, config.AdapterScript, "":
		local := c.Evaluation.Local
		client := &adapter.BinaryClient{
			Executor:   tactile.NewDirectExecutor(),
			BinaryPath: firstNonEmpty(workspacePath(evalBinaryPath), local.BinaryPath),
			ModelPath:  firstNonEmpty(workspacePath(evalModelPath), local.ModelPath),
			Backend:    firstNonEmpty(evalBackend, local.Backend),
		}
		if client.BinaryPath == "" || client.ModelPath == "" {
			return nil, fault.Configurationf("local runner needs --binary-path and --model-path (or evaluation.local)")
		}
		return client, nil
	}
	return nil, fault.Configurationf("unknown adapter %q", kind)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
