package artifacts

import (
	"fmt"
	"strings"
)

// Brief is the human-readable rationale for the next challenger.
type Brief struct {
	Round          int
	Decision       string
	Reason         string
	MutationSource string
	LoserFailures  int
	ChallengerPath string
}

// Markdown renders the brief.
func (b Brief) Markdown() string {
	lines := []string{
		"# Next Challenger Brief",
		"",
		fmt.Sprintf("- round: %d", b.Round),
		fmt.Sprintf("- decision: %s", b.Decision),
		fmt.Sprintf("- reason: %s", b.Reason),
		fmt.Sprintf("- mutation_source: %s", b.MutationSource),
		fmt.Sprintf("- loser_failures: %d", b.LoserFailures),
		"",
		fmt.Sprintf("Use `%s` as the next challenger prompt.", b.ChallengerPath),
		"It was generated from loser-only failures for this round.",
	}
	return strings.Join(lines, "\n") + "\n"
}

// Recommendation is the machine-readable verdict of recommend mode.
type Recommendation struct {
	Round            int     `json:"round"`
	Recommendation   string  `json:"recommendation"`
	Decision         string  `json:"decision"`
	Reason           string  `json:"reason"`
	APassCount       int     `json:"a_pass_count"`
	AFailCount       int     `json:"a_fail_count"`
	BPassCount       int     `json:"b_pass_count"`
	BFailCount       int     `json:"b_fail_count"`
	APassRate        float64 `json:"a_pass_rate"`
	BPassRate        float64 `json:"b_pass_rate"`
	DeltaPassRatePP  float64 `json:"delta_pass_rate_pp"`
	PromptAFile      string  `json:"prompt_a_file"`
	PromptBFile      string  `json:"prompt_b_file"`
	SuggestedPromptB string  `json:"suggested_prompt_b"`
}

// Markdown renders the recommendation for humans.
func (r Recommendation) Markdown() string {
	lines := []string{
		"# Prompt A/B Recommendation",
		"",
		fmt.Sprintf("- Round: %d", r.Round),
		fmt.Sprintf("- Recommendation: **%s**", r.Recommendation),
		fmt.Sprintf("- Decision: %s", r.Decision),
		fmt.Sprintf("- Reason: %s", r.Reason),
		fmt.Sprintf("- Prompt A pass/fail: %d/%d", r.APassCount, r.AFailCount),
		fmt.Sprintf("- Prompt B pass/fail: %d/%d", r.BPassCount, r.BFailCount),
		fmt.Sprintf("- Delta pass-rate (B-A): %.2f pp", r.DeltaPassRatePP),
		"",
		"## Files",
		fmt.Sprintf("- Prompt A: `%s`", r.PromptAFile),
		fmt.Sprintf("- Prompt B: `%s`", r.PromptBFile),
		fmt.Sprintf("- Suggested next challenger: `%s`", r.SuggestedPromptB),
		"",
		"## Notes",
		"- Prompt files were not modified. Copy the suggestion by hand to adopt it.",
	}
	return strings.Join(lines, "\n") + "\n"
}

// WriteRecommendation writes both renderings.
func WriteRecommendation(mdPath, jsonPath string, r Recommendation) error {
	if err := WriteText(mdPath, r.Markdown()); err != nil {
		return err
	}
	return WriteJSON(jsonPath, r)
}
