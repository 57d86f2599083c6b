package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"promptduel/internal/artifacts"
	"promptduel/internal/fault"
	"promptduel/internal/mutator"
)

var (
	mutateWinner   string
	mutateFailures string
	mutateOut      string
)

var mutateCmd = &cobra.Command{
	Use:   "mutate",
	Short: "Build a challenger from a winner prompt and a failure pack",
	Long: `Strips any existing Challenger Focus block from the winner prompt and appends a
new one quoting up to 8 failures from a loser_failure_pack.jsonl. Without
--failures the softer zero-failure focus is used.`,
	Args: cobra.NoArgs,
	RunE: runMutate,
}

func init() {
	mutateCmd.Flags().StringVar(&mutateWinner, "winner", "", "Winner prompt file (required)")
	mutateCmd.Flags().StringVar(&mutateFailures, "failures", "", "Failure pack JSONL")
	mutateCmd.Flags().StringVarP(&mutateOut, "out", "o", "", "Write the challenger here instead of stdout")
	mutateCmd.MarkFlagRequired("winner")
}

func runMutate(cmd *cobra.Command, args []string) error {
	winner, err := os.ReadFile(workspacePath(mutateWinner))
	if err != nil {
		return fault.Configuration("failed to read winner prompt", err)
	}
	var failures []mutator.Failure
	if mutateFailures != "" {
		failures, err = readFailurePack(workspacePath(mutateFailures))
		if err != nil {
			return err
		}
	}

	next := mutator.Mutate(string(winner), failures)
	if mutateOut == "" {
		fmt.Fprint(cmd.OutOrStdout(), next)
		return nil
	}
	path := workspacePath(mutateOut)
	if err := artifacts.WriteText(path, next); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d failures quoted)\n", path, min(len(failures), mutator.MaxFailureExamples))
	return nil
}

func readFailurePack(path string) ([]mutator.Failure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Configuration("failed to open failure pack", err)
	}
	defer f.Close()

	var failures []mutator.Failure
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var fl mutator.Failure
		if err := json.Unmarshal([]byte(text), &fl); err != nil {
			return nil, fault.Configuration(fmt.Sprintf("failure pack line %d is not valid JSON", line), err)
		}
		failures = append(failures, fl)
	}
	if err := scanner.Err(); err != nil {
		return nil, fault.Configuration("failed to read failure pack", err)
	}
	return failures, nil
}
