package tournament

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptduel/internal/dataset"
)

func defaultPolicy() Policy {
	return Policy{
		ImprovementMode:    ImprovementCases,
		MinImprovement:     1,
		MaxCategoryDropPP:  3.0,
		MinHoldoutPassRate: 90.0,
		HoldoutEnabled:     true,
	}
}

// holdoutCounter counts how often Decide evaluates the holdout.
type holdoutCounter struct {
	calls   int
	outcome *HoldoutOutcome
	err     error
}

func (h *holdoutCounter) fn() HoldoutFunc {
	return func() (*HoldoutOutcome, error) {
		h.calls++
		return h.outcome, h.err
	}
}

func flatStats(s CategoryStat) CategoryStats {
	return CategoryStats{dataset.CategoryClean: s, dataset.CategoryNoisy: s}
}

func TestDecide_Keep(t *testing.T) {
	counter := &holdoutCounter{}
	v, err := Decide(defaultPolicy(), Evidence{
		Champion:   summary(8, 2, 100),
		Challenger: summary(8, 2, 100),
	}, counter.fn())
	require.NoError(t, err)

	assert.Equal(t, DecisionKeep, v.Decision)
	assert.Equal(t, WinnerChampion, v.TrainWinner)
	assert.Contains(t, v.Reason, "champion wins train tie-break order")
	assert.Zero(t, counter.calls)
	assert.False(t, v.HoldoutChecked)
	assert.Equal(t, WinnerChampion, v.HoldoutWinner)
	assert.Equal(t, "KEEP_A", v.Decision.Recommendation())
}

func TestDecide_RejectThreshold(t *testing.T) {
	counter := &holdoutCounter{}
	// B only wins on latency.
	v, err := Decide(defaultPolicy(), Evidence{
		Champion:   summary(8, 2, 100),
		Challenger: summary(8, 2, 90),
	}, counter.fn())
	require.NoError(t, err)

	assert.Equal(t, DecisionRejectThreshold, v.Decision)
	assert.Equal(t, WinnerChallenger, v.TrainWinner)
	assert.Equal(t, "B won tie-break but did not clear min improvement (0 < 1).", v.Reason)
	assert.Zero(t, counter.calls)
}

func TestDecide_RejectThreshold_PassRateMode(t *testing.T) {
	p := defaultPolicy()
	p.ImprovementMode = ImprovementPassRatePP
	p.MinImprovement = 15

	v, err := Decide(p, Evidence{
		Champion:   summary(8, 2, 100),
		Challenger: summary(9, 1, 100),
	}, (&holdoutCounter{}).fn())
	require.NoError(t, err)

	assert.Equal(t, DecisionRejectThreshold, v.Decision)
	assert.InDelta(t, 10.0, v.Improvement, 1e-9)
	assert.Equal(t, "B won tie-break but did not clear min improvement (10.00pp < 15.00pp).", v.Reason)
}

func TestDecide_RejectGuardrail(t *testing.T) {
	counter := &holdoutCounter{}
	v, err := Decide(defaultPolicy(), Evidence{
		Champion:        summary(10, 10, 100),
		Challenger:      summary(12, 8, 100),
		ChampionStats:   CategoryStats{dataset.CategoryClean: stat(10, 10), dataset.CategoryNoisy: stat(0, 10)},
		ChallengerStats: CategoryStats{dataset.CategoryClean: stat(9, 10), dataset.CategoryNoisy: stat(3, 10)},
	}, counter.fn())
	require.NoError(t, err)

	assert.Equal(t, DecisionRejectGuardrail, v.Decision)
	assert.Equal(t, "B rejected by guardrail: B regressed clean by 10.00pp (limit 3.00pp)", v.Reason)
	assert.False(t, v.Guardrail.OK)
	assert.Zero(t, counter.calls, "holdout must not run after a guardrail rejection")
}

func TestDecide_RejectHoldoutFloor(t *testing.T) {
	counter := &holdoutCounter{outcome: &HoldoutOutcome{
		Champion:   summary(16, 4, 100),
		Challenger: summary(17, 3, 100),
	}}
	v, err := Decide(defaultPolicy(), Evidence{
		Champion:        summary(8, 2, 100),
		Challenger:      summary(10, 0, 100),
		ChampionStats:   flatStats(stat(8, 10)),
		ChallengerStats: flatStats(stat(10, 10)),
	}, counter.fn())
	require.NoError(t, err)

	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, DecisionRejectHoldout, v.Decision)
	assert.True(t, v.HoldoutChecked)
	assert.Equal(t, WinnerChallenger, v.HoldoutWinner)
	assert.False(t, v.HoldoutOK)
	assert.Equal(t, "B beat train but failed holdout promotion rule (winner=B, B_holdout_pass_rate=85.00%).", v.Reason)
}

func TestDecide_RejectHoldoutLoss(t *testing.T) {
	counter := &holdoutCounter{outcome: &HoldoutOutcome{
		Champion:   summary(20, 0, 100),
		Challenger: summary(19, 1, 100),
	}}
	v, err := Decide(defaultPolicy(), Evidence{
		Champion:   summary(8, 2, 100),
		Challenger: summary(10, 0, 100),
	}, counter.fn())
	require.NoError(t, err)

	assert.Equal(t, DecisionRejectHoldout, v.Decision)
	assert.Equal(t, WinnerChampion, v.HoldoutWinner)
}

func TestDecide_Promote(t *testing.T) {
	counter := &holdoutCounter{outcome: &HoldoutOutcome{
		Champion:   summary(17, 3, 100),
		Challenger: summary(19, 1, 100),
	}}
	v, err := Decide(defaultPolicy(), Evidence{
		Champion:        summary(8, 2, 100),
		Challenger:      summary(10, 0, 100),
		ChampionStats:   flatStats(stat(8, 10)),
		ChallengerStats: flatStats(stat(10, 10)),
	}, counter.fn())
	require.NoError(t, err)

	assert.Equal(t, DecisionPromote, v.Decision)
	assert.True(t, v.HoldoutOK)
	assert.Equal(t, "B promoted: beat A on train and holdout, and passed holdout threshold.", v.Reason)
	assert.Equal(t, "PROMOTE_B", v.Decision.Recommendation())
}

func TestDecide_PromoteWithoutHoldout(t *testing.T) {
	p := defaultPolicy()
	p.HoldoutEnabled = false
	counter := &holdoutCounter{}

	v, err := Decide(p, Evidence{
		Champion:   summary(8, 2, 100),
		Challenger: summary(10, 0, 100),
	}, counter.fn())
	require.NoError(t, err)

	assert.Equal(t, DecisionPromote, v.Decision)
	assert.Zero(t, counter.calls)
	assert.False(t, v.HoldoutChecked)
}

func TestDecide_HoldoutError(t *testing.T) {
	boom := errors.New("adapter exploded")
	_, err := Decide(defaultPolicy(), Evidence{
		Champion:   summary(8, 2, 100),
		Challenger: summary(10, 0, 100),
	}, (&holdoutCounter{err: boom}).fn())
	assert.ErrorIs(t, err, boom)
}
