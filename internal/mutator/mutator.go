// Package mutator builds the next challenger prompt from the current winner
// and a bounded sample of the loser's failures.
package mutator

import (
	"fmt"
	"strings"

	"promptduel/internal/dataset"
	"promptduel/internal/eval"
	"promptduel/internal/logging"
	"promptduel/internal/promptdoc"
)

// MaxFailureExamples caps how many failures are quoted in a focus section.
const MaxFailureExamples = 8

// Failure is one row of a loser failure pack.
type Failure struct {
	ID       eval.CaseID      `json:"id"`
	Category dataset.Category `json:"category"`
	Input    string           `json:"input"`
	Expected string           `json:"expected"`
	Actual   string           `json:"actual"`
	Error    *string          `json:"error"`
	Match    string           `json:"match"`
}

// Source names whose failures seeded a challenger.
type Source string

const (
	SourceChampionFailures   Source = "A_failures"
	SourceChallengerFailures Source = "B_failures"
)

var baseRules = []string{
	"- Keep all winner constraints exactly as written.",
}

var failureRules = []string{
	"- Fix only what is needed to match expected text exactly.",
	"- Avoid deleting meaningful words while removing obvious repeats/fillers.",
	"- Preserve user intent and wording whenever possible.",
}

var precisionRules = []string{
	"- Prioritize exact-match outputs and avoid unnecessary rewrites.",
}

// FailurePack collects the failed cases of an evaluation in evaluation
// order, joining in each case's category.
func FailurePack(results []eval.CaseResult, categories map[string]dataset.Category) []Failure {
	failures := make([]Failure, 0)
	for _, r := range results {
		if r.Passed {
			continue
		}
		cat, ok := categories[r.ID.String()]
		if !ok {
			cat = dataset.CategoryUnknown
		}
		failures = append(failures, Failure{
			ID:       r.ID,
			Category: cat,
			Input:    r.Input,
			Expected: r.Expected,
			Actual:   r.Actual,
			Error:    r.Error,
			Match:    r.Match,
		})
	}
	return failures
}

// Mutate returns the next challenger text: the winner's body, a fresh focus
// section targeting failures, and the winner's placeholder block.
func Mutate(winnerText string, failures []Failure) string {
	doc := promptdoc.Parse(winnerText)
	doc.Focus = FocusSection(failures)
	out := doc.Build()
	logging.MutationDebug("mutated winner (%d chars) with %d failures into %d chars",
		len(winnerText), min(len(failures), MaxFailureExamples), len(out))
	return out
}

// FocusSection renders the focus content that follows the header.
func FocusSection(failures []Failure) string {
	lines := []string{
		"Round objective: beat the current winner on failing patterns.",
		"",
		"Priority rules:",
	}
	lines = append(lines, baseRules...)
	if len(failures) == 0 {
		lines = append(lines, precisionRules...)
		return strings.Join(lines, "\n")
	}
	lines = append(lines, failureRules...)

	lines = append(lines, "", "Failure examples from last loser run:")
	for _, f := range failures[:min(len(failures), MaxFailureExamples)] {
		lines = append(lines, "- "+exampleLine(f))
	}
	return strings.Join(lines, "\n")
}

func exampleLine(f Failure) string {
	return fmt.Sprintf("%s: input=\"%s\" expected=\"%s\" actual=\"%s\"",
		f.ID, oneLine(f.Input), oneLine(f.Expected), oneLine(f.Actual))
}

// oneLine trims s and escapes line breaks so an example stays on one line.
func oneLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", `\n`)
}
