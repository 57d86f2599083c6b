package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptduel/internal/eval"
	"promptduel/internal/mutator"
	"promptduel/internal/tournament"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func roundRecord(runID string, round int, decision tournament.Decision) *tournament.RoundRecord {
	return &tournament.RoundRecord{
		RunID: runID,
		Round: round,
		Train: tournament.TrainBlock{
			ASummary: eval.Summary{TotalCases: 8, PassCount: 4, FailCount: 4, PassRate: 50},
			BSummary: eval.Summary{TotalCases: 8, PassCount: 8, PassRate: 100},
		},
		Holdout: tournament.HoldoutBlock{Checked: decision == tournament.DecisionPromote},
		Decision: tournament.DecisionBlock{
			Decision:       decision,
			PromoteB:       decision.Promoted(),
			Recommendation: decision.Recommendation(),
			Reason:         "because",
			MutationSource: mutator.SourceChampionFailures,
		},
	}
}

func TestRunStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.BeginRun(ctx, RunInfo{RunDir: "/runs/run_1", Mode: "recommend", DatasetFile: "cases.jsonl"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.AppendRound(ctx, roundRecord(id, 1, tournament.DecisionPromote)))
	require.NoError(t, s.AppendRound(ctx, roundRecord(id, 2, tournament.DecisionKeep)))

	rounds, err := s.Rounds(ctx, id)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, "PROMOTE", rounds[0].Decision)
	assert.Equal(t, "PROMOTE_B", rounds[0].Recommendation)
	assert.True(t, rounds[0].HoldoutChecked)
	assert.Equal(t, 4, rounds[0].TrainAPass)
	assert.Equal(t, 8, rounds[0].TrainBPass)
	assert.Equal(t, 8, rounds[0].TrainTotal)
	assert.Equal(t, 100.0, rounds[0].TrainBPassRate)
	assert.Equal(t, "A_failures", rounds[0].MutationSource)
	assert.Equal(t, "KEEP", rounds[1].Decision)
	assert.False(t, rounds[1].HoldoutChecked)

	var decoded tournament.RoundRecord
	require.NoError(t, json.Unmarshal([]byte(rounds[1].Record), &decoded))
	assert.Equal(t, 2, decoded.Round)

	require.NoError(t, s.FinishRun(ctx, &tournament.RunSummary{
		RunID: id, RoundsRun: 2, Promotions: 1, StopReason: tournament.StopPatience,
	}))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, 2, runs[0].RoundsRun)
	assert.Equal(t, 1, runs[0].Promotions)
	assert.Equal(t, "patience", runs[0].StopReason)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestRunStore_RoundsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.BeginRun(ctx, RunInfo{ID: "fixed", RunDir: "/runs/x", Mode: "auto_apply"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)

	require.NoError(t, s.AppendRound(ctx, roundRecord(id, 1, tournament.DecisionKeep)))
	assert.Error(t, s.AppendRound(ctx, roundRecord(id, 1, tournament.DecisionPromote)), "a round is written once")
	assert.Error(t, s.AppendRound(ctx, roundRecord("", 2, tournament.DecisionKeep)))
}

func TestRunStore_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"old", "mid", "new"} {
		_, err := s.BeginRun(ctx, RunInfo{ID: name, RunDir: name, Mode: "recommend", StartedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.Nil(t, runs[0].FinishedAt)
	assert.True(t, runs[0].StartedAt.Equal(base.Add(2*time.Hour)))

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunStore_UnknownRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Rounds(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = s.FinishRun(ctx, &tournament.RunSummary{RunID: "nope"})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunStore_ImplementsJournal(t *testing.T) {
	var _ tournament.Journal = (*RunStore)(nil)
}
