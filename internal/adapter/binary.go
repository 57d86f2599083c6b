package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"promptduel/internal/eval"
	"promptduel/internal/tactile"
)

// BinaryClient runs a local model binary once per prompt:
//
//	<binary> --backend=<b> --model_path=<p> --input_prompt_file=<tmp>
type BinaryClient struct {
	Executor   tactile.Executor
	BinaryPath string
	ModelPath  string
	Backend    string

	// TempDir holds the per-call prompt files; "" uses os.TempDir.
	TempDir string
}

// Complete implements ModelClient.
func (c *BinaryClient) Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	tmp, err := os.CreateTemp(c.TempDir, "duel-prompt-*.txt")
	if err != nil {
		return "", fmt.Errorf("create prompt file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(prompt); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write prompt file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close prompt file: %w", err)
	}

	res, err := c.Executor.Execute(ctx, tactile.Command{
		Binary: c.BinaryPath,
		Arguments: []string{
			"--backend=" + c.Backend,
			"--model_path=" + c.ModelPath,
			"--input_prompt_file=" + tmp.Name(),
		},
		Timeout: timeout,
	})
	if err != nil {
		return "", err
	}
	if !res.Succeeded() {
		return "", errors.New(res.Detail())
	}
	return ExtractMainOutput(res.Stdout), nil
}

// Describe implements ModelClient.
func (c *BinaryClient) Describe() []eval.HeaderField {
	return []eval.HeaderField{
		{Key: "binary", Value: c.BinaryPath},
		{Key: "model_path", Value: c.ModelPath},
		{Key: "backend", Value: c.Backend},
	}
}
