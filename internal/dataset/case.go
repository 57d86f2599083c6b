// Package dataset loads labeled cases and partitions them into train and
// holdout splits.
package dataset

import (
	"fmt"
	"strings"

	"promptduel/internal/eval"
)

// MatchMode is how an actual output is compared to the expected text.
type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchContains MatchMode = "contains"
	MatchRegex    MatchMode = "regex"
)

// ParseMatchMode normalizes s and checks it names a known mode.
func ParseMatchMode(s string) (MatchMode, error) {
	m := MatchMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MatchExact, MatchContains, MatchRegex:
		return m, nil
	}
	return "", fmt.Errorf("invalid match %q, use exact|contains|regex", s)
}

// Category tags a case for guardrail accounting.
type Category string

const (
	CategoryClean   Category = "clean"
	CategoryNoisy   Category = "noisy"
	CategoryUnknown Category = "unknown"
)

// InferCategory returns the explicit category if set, otherwise clean when
// the input already equals the expected text and noisy when it does not.
func InferCategory(explicit, input, expected string) Category {
	if explicit != "" {
		return Category(explicit)
	}
	if input == expected {
		return CategoryClean
	}
	return CategoryNoisy
}

// Case is one labeled example.
type Case struct {
	ID       eval.CaseID `json:"id"`
	Input    string      `json:"input"`
	Expected string      `json:"expected"`
	Match    MatchMode   `json:"match"`
	Category Category    `json:"category"`

	// Position is the 1-based row index in the source file.
	Position int `json:"-"`
}

// CategoryIndex maps case id to category.
func CategoryIndex(cases []Case) map[string]Category {
	idx := make(map[string]Category, len(cases))
	for _, c := range cases {
		idx[c.ID.String()] = c.Category
	}
	return idx
}
