package tournament

import (
	"fmt"

	"promptduel/internal/dataset"
)

// ProtectedCategories are checked by the guardrail, in this order.
var ProtectedCategories = []dataset.Category{dataset.CategoryClean, dataset.CategoryNoisy}

// GuardrailVerdict is the outcome of the per-category regression check.
type GuardrailVerdict struct {
	OK       bool             `json:"ok"`
	Category dataset.Category `json:"category,omitempty"`
	DropPP   float64          `json:"drop_pp,omitempty"`
	LimitPP  float64          `json:"limit_pp"`
	Reason   string           `json:"reason"`
}

// CheckGuardrail fails on the first protected category whose pass rate drops
// from champion to challenger by more than maxDropPP. Categories missing on
// either side are skipped.
func CheckGuardrail(champion, challenger CategoryStats, maxDropPP float64) GuardrailVerdict {
	for _, cat := range ProtectedCategories {
		a, okA := champion[cat]
		b, okB := challenger[cat]
		if !okA || !okB {
			continue
		}
		drop := a.PassRate - b.PassRate
		if drop > maxDropPP {
			return GuardrailVerdict{
				Category: cat,
				DropPP:   drop,
				LimitPP:  maxDropPP,
				Reason:   fmt.Sprintf("B regressed %s by %.2fpp (limit %.2fpp)", cat, drop, maxDropPP),
			}
		}
	}
	return GuardrailVerdict{OK: true, LimitPP: maxDropPP, Reason: "ok"}
}
