package adapter

import (
	"context"
	"fmt"

	"promptduel/internal/config"
	"promptduel/internal/eval"
	"promptduel/internal/tactile"
)

// FromConfig builds the evaluator selected by evaluation.adapter.
func FromConfig(ctx context.Context, cfg *config.Config, exec tactile.Executor) (eval.Evaluator, error) {
	ev := cfg.Evaluation
	switch ev.Adapter {
	case config.AdapterScript:
		return &ScriptAdapter{
			Executor:     exec,
			Command:      ev.Script.Command,
			Args:         ev.Script.Args,
			Backend:      ev.Script.Backend,
			ModelPath:    ev.Script.ModelPath,
			LiteRTLMDir:  ev.Script.LiteRTLMDir,
			BinaryPath:   ev.Script.BinaryPath,
			SkipSetup:    ev.Script.SkipSetup,
			SkipDownload: ev.Script.SkipDownload,
		}, nil
	case config.AdapterLocal:
		return NewRunner(&BinaryClient{
			Executor:   exec,
			BinaryPath: ev.Local.BinaryPath,
			ModelPath:  ev.Local.ModelPath,
			Backend:    ev.Local.Backend,
		}), nil
	case config.AdapterGemini:
		client, err := NewGeminiClient(ctx, ev.Gemini.APIKey, ev.Gemini.Model, ev.Gemini.RequestsPerSecond)
		if err != nil {
			return nil, err
		}
		return NewRunner(client), nil
	}
	return nil, fmt.Errorf("unknown evaluation adapter %q", ev.Adapter)
}
