// Package tactile runs external processes with timeouts and bounded output
// capture. Evaluation scripts, local model binaries and git all go through it.
package tactile

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Command describes one process invocation.
type Command struct {
	Binary           string
	Arguments        []string
	WorkingDirectory string

	// Environment is appended to the inherited environment (KEY=VALUE).
	Environment []string

	Stdin string

	// Timeout overrides the executor default when > 0.
	Timeout time.Duration

	// MaxOutputBytes overrides the executor default when > 0.
	MaxOutputBytes int64
}

// CommandString returns a shell-like rendering for logs.
func (c Command) CommandString() string {
	parts := make([]string, 0, len(c.Arguments)+1)
	parts = append(parts, quoteArg(c.Binary))
	for _, a := range c.Arguments {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"'") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// Result is the outcome of a process that was started.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration

	// Killed is set when the process was stopped by timeout or cancellation.
	Killed     bool
	KillReason string

	Truncated      bool
	TruncatedBytes int64
}

// Succeeded reports a clean zero exit.
func (r *Result) Succeeded() bool {
	return r != nil && !r.Killed && r.ExitCode == 0
}

// Detail summarizes why a process failed: stderr, else stdout, else the exit code.
func (r *Result) Detail() string {
	if r.Killed {
		return r.KillReason
	}
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.Stdout); s != "" {
		return s
	}
	return fmt.Sprintf("process exited with code %d", r.ExitCode)
}

// Config holds executor defaults.
type Config struct {
	DefaultTimeout time.Duration
	MaxOutputBytes int64

	// InheritEnvironment passes the parent environment through.
	InheritEnvironment bool
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:     5 * time.Minute,
		MaxOutputBytes:     8 * 1024 * 1024,
		InheritEnvironment: true,
	}
}

// Executor runs commands.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Result, error)
}
