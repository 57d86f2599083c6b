package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptduel/internal/dataset"
	"promptduel/internal/eval"
	"promptduel/internal/tournament"
)

func TestRecorder_ObserveEvaluation(t *testing.T) {
	r := NewRecorder()

	r.ObserveEvaluation("train_a", eval.Summary{TotalCases: 8, PassCount: 6, FailCount: 2, PassRate: 75}, 2*time.Second)
	r.ObserveEvaluation("train_a", eval.Summary{TotalCases: 8, PassCount: 7, FailCount: 1, PassRate: 87.5}, time.Second)
	r.ObserveEvaluation("holdout_b", eval.Summary{TotalCases: 2, PassCount: 2, PassRate: 100}, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.evaluationsTotal.WithLabelValues("train", "a")))
	assert.Equal(t, 13.0, testutil.ToFloat64(r.casesTotal.WithLabelValues("train", "a", "pass")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.casesTotal.WithLabelValues("train", "a", "fail")))
	assert.Equal(t, 87.5, testutil.ToFloat64(r.passRate.WithLabelValues("train", "a")))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.passRate.WithLabelValues("holdout", "b")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.evaluationDuration))
}

func TestRecorder_ObserveRound(t *testing.T) {
	r := NewRecorder()

	rec := &tournament.RoundRecord{
		Round: 3,
		Train: tournament.TrainBlock{
			ACategoryStats: tournament.CategoryStats{dataset.CategoryClean: {Total: 4, Pass: 4, PassRate: 100}},
			BCategoryStats: tournament.CategoryStats{dataset.CategoryClean: {Total: 4, Pass: 3, Fail: 1, PassRate: 75}},
		},
		Decision: tournament.DecisionBlock{Decision: tournament.DecisionPromote, PromoteB: true},
	}
	r.ObserveRound(rec)
	rec.Decision = tournament.DecisionBlock{Decision: tournament.DecisionKeep}
	r.ObserveRound(rec)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.roundsTotal.WithLabelValues("PROMOTE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.roundsTotal.WithLabelValues("KEEP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.promotionsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.currentRound))
	assert.Equal(t, 75.0, testutil.ToFloat64(r.categoryPassRate.WithLabelValues("clean", "b")))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveEvaluation("train_b", eval.Summary{TotalCases: 1, PassCount: 1, PassRate: 100}, time.Millisecond)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `promptduel_evaluations_total{prompt="b",split="train"} 1`)
	assert.True(t, strings.Contains(text, "# TYPE promptduel_pass_rate_percent gauge"))
}

func TestSplitLabel(t *testing.T) {
	split, prompt := splitLabel("holdout_a")
	assert.Equal(t, "holdout", split)
	assert.Equal(t, "a", prompt)

	split, prompt = splitLabel("adhoc")
	assert.Equal(t, "adhoc", split)
	assert.Empty(t, prompt)
}

func TestRecorder_ImplementsObserver(t *testing.T) {
	var _ tournament.Observer = NewRecorder()
}
