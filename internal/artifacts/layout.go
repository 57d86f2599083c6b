// Package artifacts owns the on-disk layout of a duel run and the writers
// for everything placed in it.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Layout names every path inside one run directory.
type Layout struct {
	RunDir string
}

// NewRunLayout creates <root>/run_<YYYYmmdd_HHMMSS>. A name collision gets a
// short random suffix instead of reusing the directory.
func NewRunLayout(root string, now time.Time) (*Layout, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run root: %w", err)
	}
	name := "run_" + now.Format("20060102_150405")
	dir := filepath.Join(root, name)
	if err := os.Mkdir(dir, 0755); err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
		dir = filepath.Join(root, name+"_"+uuid.NewString()[:8])
		if err := os.Mkdir(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	l := &Layout{RunDir: abs}
	for _, d := range []string{l.SplitsDir(), l.SnapshotsDir()} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return l, nil
}

// SplitsDir holds the train and holdout partitions written at startup.
func (l *Layout) SplitsDir() string { return filepath.Join(l.RunDir, "splits") }

// TrainSplit is splits/train.jsonl.
func (l *Layout) TrainSplit() string { return filepath.Join(l.SplitsDir(), "train.jsonl") }

// HoldoutSplit is splits/holdout.jsonl.
func (l *Layout) HoldoutSplit() string { return filepath.Join(l.SplitsDir(), "holdout.jsonl") }

// DecisionLog is the append-only round_log.jsonl.
func (l *Layout) DecisionLog() string { return filepath.Join(l.RunDir, "round_log.jsonl") }

// Summary is the run-level summary.json.
func (l *Layout) Summary() string { return filepath.Join(l.RunDir, "summary.json") }

// SnapshotsDir holds the before/after prompt copies of every round.
func (l *Layout) SnapshotsDir() string { return filepath.Join(l.RunDir, "prompt_snapshots") }

// RecommendationMD is the run-level copy of the latest round recommendation.
func (l *Layout) RecommendationMD() string { return filepath.Join(l.RunDir, "recommendation.md") }

// RecommendationJSON is the machine-readable twin of RecommendationMD.
func (l *Layout) RecommendationJSON() string { return filepath.Join(l.RunDir, "recommendation.json") }

// RoundTag formats a round number as round_NN.
func (l *Layout) RoundTag(round int) string { return fmt.Sprintf("round_%02d", round) }

// SuggestedPromptB is the latest challenger proposed in recommend mode.
func (l *Layout) SuggestedPromptB() string { return filepath.Join(l.RunDir, "suggested_prompt_b.txt") }

// FinalPromptA is the champion copy written when a recommend run ends.
func (l *Layout) FinalPromptA() string { return filepath.Join(l.RunDir, "final_prompt_a.txt") }

// Round returns the layout of the round_NN directory.
func (l *Layout) Round(round int) RoundLayout { return RoundLayout{Dir: filepath.Join(l.RunDir, l.RoundTag(round))} }

// Snapshot returns prompt_snapshots/round_NN_prompt_<a|b>_<before|after>.txt.
func (l *Layout) Snapshot(round int, prompt, phase string) string {
	return filepath.Join(l.SnapshotsDir(), fmt.Sprintf("%s_prompt_%s_%s.txt", l.RoundTag(round), prompt, phase))
}

// RoundLayout names the files of one round directory.
type RoundLayout struct {
	Dir string
}

// Ensure creates the round directory.
func (r RoundLayout) Ensure() error {
	return os.MkdirAll(r.Dir, 0755)
}

// Report returns <slice>_<prompt>_report.<ext>, e.g. train_a_report.json.
func (r RoundLayout) Report(slice, prompt, ext string) string {
	return filepath.Join(r.Dir, fmt.Sprintf("%s_%s_report.%s", slice, prompt, ext))
}

// FailurePack lists the losing prompt's failures that fed the mutation.
func (r RoundLayout) FailurePack() string { return filepath.Join(r.Dir, "loser_failure_pack.jsonl") }

// Brief is the markdown mutation brief for the next challenger.
func (r RoundLayout) Brief() string { return filepath.Join(r.Dir, "mutation_brief_for_prompt_b.md") }

// SuggestedPromptB is the challenger this round proposes in recommend mode.
func (r RoundLayout) SuggestedPromptB() string { return filepath.Join(r.Dir, "suggested_prompt_b.txt") }

// RecommendationMD is this round's human-readable recommendation.
func (r RoundLayout) RecommendationMD() string { return filepath.Join(r.Dir, "recommendation.md") }

// RecommendationJSON is this round's machine-readable recommendation.
func (r RoundLayout) RecommendationJSON() string { return filepath.Join(r.Dir, "recommendation.json") }
