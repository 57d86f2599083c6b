// Package tournament runs champion-versus-challenger rounds: it scores two
// evaluations, applies the guardrail and holdout gates, and drives rounds to
// convergence.
package tournament

import (
	"math"
	"sort"

	"promptduel/internal/dataset"
	"promptduel/internal/eval"
)

// Winner is "A" (champion) or "B" (challenger).
type Winner string

const (
	WinnerChampion   Winner = "A"
	WinnerChallenger Winner = "B"
)

// Compare ranks two summaries by pass count (more is better), then fail count
// (fewer is better), then average latency (lower is better). Complete ties go
// to the champion.
func Compare(champion, challenger eval.Summary) Winner {
	switch {
	case challenger.PassCount != champion.PassCount:
		return pick(challenger.PassCount > champion.PassCount)
	case challenger.FailCount != champion.FailCount:
		return pick(challenger.FailCount < champion.FailCount)
	case challenger.AvgLatencyMs != champion.AvgLatencyMs:
		return pick(challenger.AvgLatencyMs < champion.AvgLatencyMs)
	}
	return WinnerChampion
}

func pick(challengerBetter bool) Winner {
	if challengerBetter {
		return WinnerChallenger
	}
	return WinnerChampion
}

// CategoryStat is the pass breakdown of one category.
type CategoryStat struct {
	Total    int     `json:"total"`
	Pass     int     `json:"pass"`
	Fail     int     `json:"fail"`
	PassRate float64 `json:"pass_rate"`
}

// CategoryStats maps category name to its breakdown.
type CategoryStats map[dataset.Category]CategoryStat

// ComputeCategoryStats joins results to categories by case id. Ids missing
// from the index count under "unknown".
func ComputeCategoryStats(results []eval.CaseResult, categories map[string]dataset.Category) CategoryStats {
	stats := make(CategoryStats)
	for _, r := range results {
		cat, ok := categories[r.ID.String()]
		if !ok {
			cat = dataset.CategoryUnknown
		}
		s := stats[cat]
		s.Total++
		if r.Passed {
			s.Pass++
		} else {
			s.Fail++
		}
		stats[cat] = s
	}
	for cat, s := range stats {
		if s.Total > 0 {
			s.PassRate = float64(s.Pass) / float64(s.Total) * 100.0
		}
		stats[cat] = s
	}
	return stats
}

// Rounded returns a copy with pass rates rounded to two decimals, as stored
// in the decision log.
func (cs CategoryStats) Rounded() CategoryStats {
	out := make(CategoryStats, len(cs))
	for cat, s := range cs {
		s.PassRate = math.Round(s.PassRate*100) / 100
		out[cat] = s
	}
	return out
}

// Names returns the categories in sorted order.
func (cs CategoryStats) Names() []dataset.Category {
	names := make([]dataset.Category, 0, len(cs))
	for cat := range cs {
		names = append(names, cat)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
