package tournament

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"promptduel/internal/dataset"
)

func stat(pass, total int) CategoryStat {
	s := CategoryStat{Total: total, Pass: pass, Fail: total - pass}
	if total > 0 {
		s.PassRate = float64(pass) / float64(total) * 100
	}
	return s
}

func TestCheckGuardrail_CleanRegression(t *testing.T) {
	champion := CategoryStats{dataset.CategoryClean: stat(10, 10), dataset.CategoryNoisy: stat(2, 10)}
	challenger := CategoryStats{dataset.CategoryClean: stat(9, 10), dataset.CategoryNoisy: stat(5, 10)}

	v := CheckGuardrail(champion, challenger, 3.0)
	assert.False(t, v.OK)
	assert.Equal(t, dataset.CategoryClean, v.Category)
	assert.InDelta(t, 10.0, v.DropPP, 1e-9)
	assert.Equal(t, "B regressed clean by 10.00pp (limit 3.00pp)", v.Reason)
}

func TestCheckGuardrail_ReportsFirstOffenderOnly(t *testing.T) {
	champion := CategoryStats{dataset.CategoryClean: stat(10, 10), dataset.CategoryNoisy: stat(10, 10)}
	challenger := CategoryStats{dataset.CategoryClean: stat(8, 10), dataset.CategoryNoisy: stat(0, 10)}

	v := CheckGuardrail(champion, challenger, 1.0)
	assert.False(t, v.OK)
	assert.Equal(t, dataset.CategoryClean, v.Category)
}

func TestCheckGuardrail_Symmetry(t *testing.T) {
	stats := CategoryStats{dataset.CategoryClean: stat(7, 9), dataset.CategoryNoisy: stat(1, 3)}
	for _, limit := range []float64{0, 0.5, 3, 100} {
		v := CheckGuardrail(stats, stats, limit)
		assert.True(t, v.OK, "identical stats must pass at limit %v", limit)
		assert.Equal(t, "ok", v.Reason)
	}
}

func TestCheckGuardrail_SkipsMissingCategories(t *testing.T) {
	champion := CategoryStats{dataset.CategoryClean: stat(10, 10)}
	challenger := CategoryStats{dataset.CategoryNoisy: stat(0, 10)}
	assert.True(t, CheckGuardrail(champion, challenger, 0).OK)
}

func TestCheckGuardrail_IgnoresUnprotectedCategories(t *testing.T) {
	champion := CategoryStats{"numbers": stat(10, 10), dataset.CategoryClean: stat(5, 10)}
	challenger := CategoryStats{"numbers": stat(0, 10), dataset.CategoryClean: stat(6, 10)}
	assert.True(t, CheckGuardrail(champion, challenger, 0).OK)
}

func TestCheckGuardrail_DropAtLimitPasses(t *testing.T) {
	champion := CategoryStats{dataset.CategoryNoisy: stat(10, 10)}
	challenger := CategoryStats{dataset.CategoryNoisy: stat(9, 10)}
	assert.True(t, CheckGuardrail(champion, challenger, 10.0).OK)
}
