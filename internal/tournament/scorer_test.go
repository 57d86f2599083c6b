package tournament

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"promptduel/internal/dataset"
	"promptduel/internal/eval"
)

func summary(pass, fail int, avgLatency int64) eval.Summary {
	s := eval.Summary{
		TotalCases:     pass + fail,
		PassCount:      pass,
		FailCount:      fail,
		AvgLatencyMs:   avgLatency,
		TotalLatencyMs: avgLatency * int64(pass+fail),
	}
	if s.TotalCases > 0 {
		s.PassRate = float64(pass) / float64(s.TotalCases) * 100
	}
	return s
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name       string
		champion   eval.Summary
		challenger eval.Summary
		want       Winner
	}{
		{"more passes beats latency", summary(8, 2, 100), summary(9, 1, 150), WinnerChallenger},
		{"fewer passes loses", summary(9, 1, 100), summary(8, 2, 10), WinnerChampion},
		{"equal passes fewer fails", summary(5, 3, 100), summary(5, 2, 900), WinnerChallenger},
		{"equal passes more fails", summary(5, 2, 100), summary(5, 3, 1), WinnerChampion},
		{"latency tie-break", summary(5, 5, 120), summary(5, 5, 119), WinnerChallenger},
		{"slower challenger", summary(5, 5, 119), summary(5, 5, 120), WinnerChampion},
		{"complete tie goes to champion", summary(5, 5, 100), summary(5, 5, 100), WinnerChampion},
		{"champion dominates", summary(9, 1, 50), summary(8, 2, 60), WinnerChampion},
		{"empty summaries", eval.Summary{}, eval.Summary{}, WinnerChampion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.champion, tt.challenger))
		})
	}
}

func TestComputeCategoryStats(t *testing.T) {
	results := []eval.CaseResult{
		{ID: eval.NewCaseID("1", true), Passed: true},
		{ID: eval.NewCaseID("2", true), Passed: false},
		{ID: eval.NewCaseID("3", true), Passed: true},
		{ID: eval.NewCaseID("4", true), Passed: true},
		{ID: eval.NewCaseID("ghost", false), Passed: false},
	}
	index := map[string]dataset.Category{
		"1": dataset.CategoryClean,
		"2": dataset.CategoryClean,
		"3": dataset.CategoryClean,
		"4": dataset.CategoryNoisy,
	}

	got := ComputeCategoryStats(results, index)
	want := CategoryStats{
		dataset.CategoryClean:   stat(2, 3),
		dataset.CategoryNoisy:   stat(1, 1),
		dataset.CategoryUnknown: stat(0, 1),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ComputeCategoryStats() mismatch (-want +got):\n%s", diff)
	}

	rounded := got.Rounded()
	assert.Equal(t, 66.67, rounded[dataset.CategoryClean].PassRate)
	assert.InDelta(t, 66.666, got[dataset.CategoryClean].PassRate, 0.01, "Rounded must not modify the receiver")
	assert.Equal(t, []dataset.Category{"clean", "noisy", "unknown"}, got.Names())
}

func TestComputeCategoryStats_Empty(t *testing.T) {
	assert.Empty(t, ComputeCategoryStats(nil, nil))
}
