package tournament

import (
	"strings"

	"promptduel/internal/eval"
	"promptduel/internal/mutator"
)

// PromptState is the pair of live prompts. Rounds take it by value and
// return the updated pair.
type PromptState struct {
	Champion   string
	Challenger string
}

// NewPromptState normalizes both texts.
func NewPromptState(champion, challenger string) PromptState {
	return PromptState{Champion: normalizePrompt(champion), Challenger: normalizePrompt(challenger)}
}

func normalizePrompt(text string) string {
	return strings.TrimSpace(text) + "\n"
}

// PromptPair holds one value per prompt.
type PromptPair struct {
	A string `json:"prompt_a"`
	B string `json:"prompt_b"`
}

// Protocol is the fixed evaluation setup echoed into every record.
type Protocol struct {
	DatasetFile        string  `json:"dataset_file"`
	TrainSplitFile     string  `json:"train_split_file"`
	HoldoutSplitFile   string  `json:"holdout_split_file"`
	Adapter            string  `json:"adapter"`
	Backend            string  `json:"backend,omitempty"`
	TimeoutSec         float64 `json:"timeout_sec"`
	HoldoutMod         int     `json:"holdout_mod"`
	HoldoutRemainder   int     `json:"holdout_remainder"`
	ImprovementMode    string  `json:"improvement_mode"`
	MinImprovement     float64 `json:"min_improvement"`
	MaxCategoryDropPP  float64 `json:"max_category_drop_pp"`
	MinHoldoutPassRate float64 `json:"min_holdout_pass_rate"`
	HoldoutEnabled     bool    `json:"holdout_enabled"`
}

// TrainBlock is the train-split section of a record.
type TrainBlock struct {
	ASummary        eval.Summary  `json:"a_summary"`
	BSummary        eval.Summary  `json:"b_summary"`
	ACategoryStats  CategoryStats `json:"a_category_stats"`
	BCategoryStats  CategoryStats `json:"b_category_stats"`
	Winner          Winner        `json:"winner"`
	BOverADeltaPass int           `json:"b_over_a_delta_pass"`
	Improvement     float64       `json:"improvement"`
}

// HoldoutBlock is the holdout section of a record. Summaries are null when
// the holdout was never evaluated.
type HoldoutBlock struct {
	Checked        bool          `json:"checked"`
	Winner         Winner        `json:"winner"`
	ASummary       *eval.Summary `json:"a_summary"`
	BSummary       *eval.Summary `json:"b_summary"`
	ACategoryStats CategoryStats `json:"a_category_stats,omitempty"`
	BCategoryStats CategoryStats `json:"b_category_stats,omitempty"`
	OKForPromotion bool          `json:"ok_for_promotion"`
}

// DecisionBlock is the decision section of a record.
type DecisionBlock struct {
	Decision        Decision       `json:"decision"`
	PromoteB        bool           `json:"promote_b"`
	Recommendation  string         `json:"recommendation"`
	Reason          string         `json:"reason"`
	MutationSource  mutator.Source `json:"mutation_source"`
	LoserFailures   int            `json:"loser_failures"`
	NoImproveRounds int            `json:"no_improve_rounds"`
}

// ArtifactPaths lists every file a round produced.
type ArtifactPaths struct {
	RoundDir           string  `json:"round_dir"`
	LoserFailurePack   string  `json:"loser_failure_pack"`
	MutationBrief      string  `json:"mutation_brief"`
	TrainAReportText   string  `json:"train_a_report_txt"`
	TrainAReportJSON   string  `json:"train_a_report_json"`
	TrainBReportText   string  `json:"train_b_report_txt"`
	TrainBReportJSON   string  `json:"train_b_report_json"`
	HoldoutAReportText *string `json:"holdout_a_report_txt"`
	HoldoutAReportJSON *string `json:"holdout_a_report_json"`
	HoldoutBReportText *string `json:"holdout_b_report_txt"`
	HoldoutBReportJSON *string `json:"holdout_b_report_json"`
	SuggestedPromptB   string  `json:"suggested_prompt_b,omitempty"`
	RecommendationMD   string  `json:"recommendation_md,omitempty"`
	RecommendationJSON string  `json:"recommendation_json,omitempty"`
}

// RoundRecord is one line of the decision log. It is never modified after
// being written.
type RoundRecord struct {
	RunID            string           `json:"run_id,omitempty"`
	Timestamp        string           `json:"timestamp"`
	Round            int              `json:"round"`
	GitHead          string           `json:"git_head"`
	Mode             string           `json:"mode"`
	Protocol         Protocol         `json:"protocol"`
	PromptPaths      PromptPair       `json:"prompt_paths"`
	PromptTextBefore PromptPair       `json:"prompt_text_before"`
	PromptTextAfter  PromptPair       `json:"prompt_text_after"`
	Train            TrainBlock       `json:"train"`
	Holdout          HoldoutBlock     `json:"holdout"`
	Guardrail        GuardrailVerdict `json:"guardrail"`
	Decision         DecisionBlock    `json:"decision"`
	Artifacts        ArtifactPaths    `json:"artifacts"`
}

// Stop reasons.
const (
	StopPatience  = "patience"
	StopMaxRounds = "max_rounds"
	StopAborted   = "aborted"
)

// RunSummary is written to summary.json when a run ends.
type RunSummary struct {
	Timestamp        string   `json:"timestamp"`
	RunID            string   `json:"run_id,omitempty"`
	RunDir           string   `json:"run_dir"`
	LogFile          string   `json:"log_file"`
	Mode             string   `json:"mode"`
	DatasetFile      string   `json:"dataset_file"`
	TrainSplitFile   string   `json:"train_split_file"`
	HoldoutSplitFile string   `json:"holdout_split_file"`
	MaxRounds        int      `json:"max_rounds"`
	Patience         int      `json:"patience"`
	RoundsRun        int      `json:"rounds_run"`
	Promotions       int      `json:"promotions"`
	StopReason       string   `json:"stop_reason"`
	Error            string   `json:"error,omitempty"`
	Recommendation   string   `json:"recommendation,omitempty"`
	FinalPromptAFile string   `json:"final_prompt_a_file"`
	FinalPromptBFile string   `json:"final_prompt_b_file"`
	FinalPromptAText string   `json:"final_prompt_a_text"`
	FinalPromptBText string   `json:"final_prompt_b_text"`
	RoundDirs        []string `json:"round_dirs"`
}
