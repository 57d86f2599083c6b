// Package adapter implements evaluation adapters: an external script that
// writes a JSON report, and an in-process runner that drives a model client
// case by case.
package adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"promptduel/internal/dataset"
	"promptduel/internal/eval"
	"promptduel/internal/fault"
	"promptduel/internal/logging"
	"promptduel/internal/promptdoc"
)

// ModelClient sends one rendered prompt to a model and returns its raw reply.
type ModelClient interface {
	Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error)
	// Describe returns report header fields identifying the backend.
	Describe() []eval.HeaderField
}

// Runner evaluates a prompt locally by calling a ModelClient once per case.
type Runner struct {
	Client ModelClient

	// Progress, if set, is called before each case.
	Progress func(index, total int, c dataset.Case)

	now func() time.Time
}

// NewRunner creates a runner around client.
func NewRunner(client ModelClient) *Runner {
	return &Runner{Client: client, now: time.Now}
}

// Evaluate implements eval.Evaluator. Per-case failures are recorded on the
// case; cancellation aborts the whole evaluation.
func (r *Runner) Evaluate(ctx context.Context, req eval.Request) (*eval.Result, error) {
	timer := logging.StartTimer(logging.CategoryEval, "runner "+req.Label)
	defer timer.Stop()

	data, err := os.ReadFile(req.PromptFile)
	if err != nil {
		return nil, fault.Configuration("failed to read prompt file "+req.PromptFile, err)
	}
	template := strings.TrimSpace(string(data))
	if template == "" {
		return nil, fault.Configurationf("prompt file is empty: %s", req.PromptFile)
	}

	cases, err := dataset.Load(req.CasesFile)
	if err != nil {
		return nil, err
	}
	if req.MaxCases > 0 && len(cases) > req.MaxCases {
		cases = cases[:req.MaxCases]
	}

	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	results := make([]eval.CaseResult, 0, len(cases))
	for i, c := range cases {
		if err := callCtx.Err(); err != nil {
			return nil, fault.Adapter(fmt.Sprintf("evaluation %s aborted after %d/%d cases", req.Label, i, len(cases)), err)
		}
		if r.Progress != nil {
			r.Progress(i+1, len(cases), c)
		}

		res, err := r.runCase(callCtx, template, c, req.CaseTimeout)
		if err != nil {
			return nil, fmt.Errorf("evaluation %s: %w", req.Label, err)
		}
		if err := callCtx.Err(); err != nil {
			return nil, fault.Adapter(fmt.Sprintf("evaluation %s aborted at case %s", req.Label, c.ID), err)
		}
		results = append(results, res)
	}

	summary := eval.Summarize(results)
	logging.Eval("%s: %d/%d passed (avg %dms)", req.Label, summary.PassCount, summary.TotalCases, summary.AvgLatencyMs)

	if err := r.writeReports(req, results); err != nil {
		return nil, fault.Adapter("failed to write evaluation report", err)
	}

	return &eval.Result{
		Summary:        summary,
		Cases:          results,
		TextReportPath: req.TextReportPath,
		JSONReportPath: req.JSONReportPath,
	}, nil
}

// runCase records a per-case failure on the result. A client error carrying
// a fatal fault kind is returned instead and stops the evaluation.
func (r *Runner) runCase(ctx context.Context, template string, c dataset.Case, timeout time.Duration) (eval.CaseResult, error) {
	res := eval.CaseResult{
		ID:       c.ID,
		Input:    c.Input,
		Expected: c.Expected,
		Match:    string(c.Match),
	}

	normalized := NormalizeInput(c.Input)
	var err error
	if normalized != "" {
		rendered := promptdoc.Render(template, normalized)
		started := time.Now()
		var raw string
		raw, err = r.Client.Complete(ctx, rendered, timeout)
		if err == nil {
			res.LatencyMs = time.Since(started).Milliseconds()
			res.Actual = CleanModelOutput(raw)
		}
	}
	if err == nil {
		res.Passed, err = Compare(c.Expected, res.Actual, c.Match)
	}
	if err != nil {
		if kind, ok := fault.KindOf(err); ok && kind.Fatal() {
			return res, err
		}
		res.Passed = false
		msg := err.Error()
		res.Error = &msg
		logging.EvalWarn("%v", fault.PerCase(c.ID.String(), err))
	}
	return res, nil
}

func (r *Runner) writeReports(req eval.Request, results []eval.CaseResult) error {
	now := time.Now()
	if r.now != nil {
		now = r.now()
	}

	absPrompt, _ := filepath.Abs(req.PromptFile)
	absCases, _ := filepath.Abs(req.CasesFile)
	header := append([]eval.HeaderField{}, r.Client.Describe()...)
	header = append(header,
		eval.HeaderField{Key: "cases_file", Value: absCases},
		eval.HeaderField{Key: "prompt_file", Value: absPrompt},
	)

	if req.TextReportPath != "" {
		if err := eval.WriteTextReport(req.TextReportPath, header, results, now); err != nil {
			return err
		}
	}
	if req.JSONReportPath != "" {
		cfg := map[string]interface{}{
			"prompt_file": absPrompt,
			"cases_file":  absCases,
			"timeout_sec": int(req.CaseTimeout / time.Second),
			"max_cases":   req.MaxCases,
			"pipeline":    "promptduel_runner",
		}
		for _, h := range r.Client.Describe() {
			cfg[h.Key] = h.Value
		}
		if err := eval.WriteJSONReport(req.JSONReportPath, eval.NewReport(cfg, results, now)); err != nil {
			return err
		}
	}
	return nil
}

// timeoutSeconds renders d as whole seconds, rounding up, minimum 1.
func timeoutSeconds(d time.Duration) string {
	if d <= 0 {
		return "30"
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return strconv.FormatInt(secs, 10)
}
