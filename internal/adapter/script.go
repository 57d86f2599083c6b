package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"promptduel/internal/eval"
	"promptduel/internal/fault"
	"promptduel/internal/logging"
	"promptduel/internal/tactile"
)

// ScriptAdapter runs an external evaluation executable and reads back the
// JSON report it writes. The report is the only source of truth.
type ScriptAdapter struct {
	Executor tactile.Executor

	Command string
	// Args go before the generated flags (for example an interpreter script path).
	Args []string

	Backend      string
	ModelPath    string
	LiteRTLMDir  string
	BinaryPath   string
	SkipSetup    bool
	SkipDownload bool

	WorkingDirectory string
}

// Arguments builds the command line for req.
func (a *ScriptAdapter) Arguments(req eval.Request) []string {
	backend := a.Backend
	if backend == "" {
		backend = "cpu"
	}
	args := append([]string{}, a.Args...)
	args = append(args,
		"--prompt-file", req.PromptFile,
		"--cases-file", req.CasesFile,
		"--report-file", req.TextReportPath,
		"--json-report-file", req.JSONReportPath,
		"--backend", backend,
		"--timeout-sec", timeoutSeconds(req.CaseTimeout),
		"--max-cases", strconv.Itoa(req.MaxCases),
		"--no-update",
	)
	if a.ModelPath != "" {
		args = append(args, "--model-path", a.ModelPath)
	}
	if a.LiteRTLMDir != "" {
		args = append(args, "--litertlm-dir", a.LiteRTLMDir)
	}
	if a.BinaryPath != "" {
		args = append(args, "--binary-path", a.BinaryPath)
	}
	// Only the first evaluation of a run may prepare the environment.
	if a.SkipSetup || req.Prepared {
		args = append(args, "--skip-setup")
	}
	if a.SkipDownload || req.Prepared {
		args = append(args, "--skip-download")
	}
	return args
}

// Evaluate implements eval.Evaluator.
func (a *ScriptAdapter) Evaluate(ctx context.Context, req eval.Request) (*eval.Result, error) {
	if req.TextReportPath == "" || req.JSONReportPath == "" {
		return nil, fault.Configurationf("script adapter needs both report paths for %s", req.Label)
	}

	cmd := tactile.Command{
		Binary:           a.Command,
		Arguments:        a.Arguments(req),
		WorkingDirectory: a.WorkingDirectory,
		Timeout:          req.Timeout,
	}
	logging.Eval("%s: %s", req.Label, cmd.CommandString())

	res, err := a.Executor.Execute(ctx, cmd)
	if err != nil {
		return nil, fault.Adapter(fmt.Sprintf("evaluation %s could not start", req.Label), err)
	}
	if ctx.Err() != nil {
		return nil, fault.Adapter(fmt.Sprintf("evaluation %s canceled", req.Label), ctx.Err())
	}
	if res.Killed {
		return nil, fault.Adapter(fmt.Sprintf("evaluation %s timed out", req.Label), errors.New(res.KillReason))
	}
	if res.ExitCode != 0 {
		logging.EvalError("%s exited %d: %s", req.Label, res.ExitCode, res.Detail())
		return nil, fault.Adapter(fmt.Sprintf("evaluation %s exited with code %d", req.Label, res.ExitCode), errors.New(res.Detail()))
	}

	report, err := eval.ReadReport(req.JSONReportPath)
	if err != nil {
		return nil, fault.Adapter(fmt.Sprintf("evaluation %s produced an unusable report", req.Label), err)
	}

	logging.Eval("%s: %d/%d passed", req.Label, report.Summary.PassCount, report.Summary.TotalCases)
	return &eval.Result{
		Summary:        *report.Summary,
		Cases:          report.Cases,
		TextReportPath: req.TextReportPath,
		JSONReportPath: req.JSONReportPath,
	}, nil
}
