package artifacts

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptduel/internal/tactile"
)

func TestNewRunLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "runs")
	now := time.Date(2026, 2, 3, 14, 5, 6, 0, time.UTC)

	l, err := NewRunLayout(root, now)
	require.NoError(t, err)
	assert.Equal(t, "run_20260203_140506", filepath.Base(l.RunDir))
	assert.DirExists(t, l.SplitsDir())
	assert.DirExists(t, l.SnapshotsDir())

	again, err := NewRunLayout(root, now)
	require.NoError(t, err)
	assert.NotEqual(t, l.RunDir, again.RunDir)
	assert.True(t, strings.HasPrefix(filepath.Base(again.RunDir), "run_20260203_140506_"))
}

func TestLayoutNames(t *testing.T) {
	l := &Layout{RunDir: "/r"}
	assert.Equal(t, "/r/round_log.jsonl", l.DecisionLog())
	assert.Equal(t, "/r/splits/holdout.jsonl", l.HoldoutSplit())
	assert.Equal(t, "/r/prompt_snapshots/round_03_prompt_b_after.txt", l.Snapshot(3, "b", "after"))
	assert.Equal(t, "/r/splits/train.jsonl", l.TrainSplit())
	assert.Equal(t, "/r/summary.json", l.Summary())
	assert.Equal(t, "/r/final_prompt_a.txt", l.FinalPromptA())
	assert.Equal(t, "/r/suggested_prompt_b.txt", l.SuggestedPromptB())
	assert.Equal(t, "round_07", l.RoundTag(7))

	rl := l.Round(12)
	assert.Equal(t, "/r/round_12", rl.Dir)
	assert.Equal(t, "/r/round_12/holdout_a_report.json", rl.Report("holdout", "a", "json"))
	assert.Equal(t, "/r/round_12/loser_failure_pack.jsonl", rl.FailurePack())
	assert.Equal(t, "/r/round_12/mutation_brief_for_prompt_b.md", rl.Brief())
	assert.Equal(t, "/r/round_12/recommendation.json", rl.RecommendationJSON())
}

type row struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

func TestWriteJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rows.jsonl")
	require.NoError(t, WriteJSONL(path, []row{{1, "a<b"}, {2, "c"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":1,\"text\":\"a<b\"}\n{\"id\":2,\"text\":\"c\"}\n", string(data))

	require.NoError(t, WriteJSONL[row](path, nil))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriteJSON_Indented(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.json")
	require.NoError(t, WriteJSON(path, map[string]int{"a": 1}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(data))
}

func TestDecisionLog_AppendsConcurrently(t *testing.T) {
	log := NewDecisionLog(filepath.Join(t.TempDir(), "round_log.jsonl"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, log.AppendRecord(row{ID: i}))
		}(i)
	}
	wg.Wait()

	f, err := os.Open(log.Path())
	require.NoError(t, err)
	defer f.Close()

	seen := map[int]bool{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r row
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		seen[r.ID] = true
	}
	require.NoError(t, scanner.Err())
	assert.Len(t, seen, 20)
}

func TestDecisionLog_NeverRewrites(t *testing.T) {
	log := NewDecisionLog(filepath.Join(t.TempDir(), "round_log.jsonl"))
	require.NoError(t, log.AppendRecord(row{ID: 1}))
	require.NoError(t, log.AppendRecord(row{ID: 2}))

	data, err := os.ReadFile(log.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":1`)
}

func TestBriefMarkdown(t *testing.T) {
	md := Brief{
		Round:          2,
		Decision:       "KEEP",
		Reason:         "A retained: champion wins train tie-break order.",
		MutationSource: "B_failures",
		LoserFailures:  4,
		ChallengerPath: "/r/suggested_prompt_b.txt",
	}.Markdown()

	assert.True(t, strings.HasPrefix(md, "# Next Challenger Brief\n"))
	assert.Contains(t, md, "- mutation_source: B_failures")
	assert.Contains(t, md, "- loser_failures: 4")
	assert.Contains(t, md, "Use `/r/suggested_prompt_b.txt` as the next challenger prompt.")
}

func TestWriteRecommendation(t *testing.T) {
	dir := t.TempDir()
	rec := Recommendation{
		Round:           1,
		Recommendation:  "PROMOTE_B",
		Decision:        "PROMOTE",
		APassCount:      7,
		AFailCount:      3,
		BPassCount:      9,
		BFailCount:      1,
		APassRate:       70,
		BPassRate:       90,
		DeltaPassRatePP: 20,
	}
	md, js := filepath.Join(dir, "recommendation.md"), filepath.Join(dir, "recommendation.json")
	require.NoError(t, WriteRecommendation(md, js, rec))

	text, err := os.ReadFile(md)
	require.NoError(t, err)
	assert.Contains(t, string(text), "- Recommendation: **PROMOTE_B**")
	assert.Contains(t, string(text), "- Delta pass-rate (B-A): 20.00 pp")

	var back map[string]interface{}
	data, err := os.ReadFile(js)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "PROMOTE_B", back["recommendation"])
	assert.Equal(t, float64(20), back["delta_pass_rate_pp"])
}

type stubExecutor struct {
	result *tactile.Result
	err    error
}

func (s stubExecutor) Execute(ctx context.Context, cmd tactile.Command) (*tactile.Result, error) {
	return s.result, s.err
}

func TestGitHead(t *testing.T) {
	ctx := context.Background()

	ok := stubExecutor{result: &tactile.Result{ExitCode: 0, Stdout: "abc123\n"}}
	assert.Equal(t, "abc123", GitHead(ctx, ok, "."))

	failed := stubExecutor{result: &tactile.Result{ExitCode: 128, Stderr: "not a git repository"}}
	assert.Equal(t, "unknown", GitHead(ctx, failed, "."))

	broken := stubExecutor{err: os.ErrNotExist}
	assert.Equal(t, "unknown", GitHead(ctx, broken, "."))
}
