package tournament

import (
	"fmt"

	"promptduel/internal/eval"
	"promptduel/internal/logging"
)

// Decision is the terminal state of a round.
type Decision string

const (
	DecisionPromote         Decision = "PROMOTE"
	DecisionKeep            Decision = "KEEP"
	DecisionRejectThreshold Decision = "REJECT_THRESHOLD"
	DecisionRejectGuardrail Decision = "REJECT_GUARDRAIL"
	DecisionRejectHoldout   Decision = "REJECT_HOLDOUT"
)

// Promoted reports whether the challenger became champion.
func (d Decision) Promoted() bool { return d == DecisionPromote }

// Recommendation is the recommend-mode label for a decision.
func (d Decision) Recommendation() string {
	if d.Promoted() {
		return "PROMOTE_B"
	}
	return "KEEP_A"
}

// Improvement modes.
const (
	ImprovementCases      = "cases"
	ImprovementPassRatePP = "pass_rate_pp"
)

// Policy holds the promotion thresholds.
type Policy struct {
	ImprovementMode    string
	MinImprovement     float64
	MaxCategoryDropPP  float64
	MinHoldoutPassRate float64
	HoldoutEnabled     bool
}

// Improvement is the challenger's train margin over the champion: a pass
// count delta, or a pass-rate delta in percentage points.
func (p Policy) Improvement(champion, challenger eval.Summary) float64 {
	if p.ImprovementMode == ImprovementPassRatePP {
		return challenger.PassRate - champion.PassRate
	}
	return float64(challenger.PassCount - champion.PassCount)
}

func (p Policy) formatMargin(v float64) string {
	if p.ImprovementMode == ImprovementPassRatePP {
		return fmt.Sprintf("%.2fpp", v)
	}
	return fmt.Sprintf("%g", v)
}

// Evidence is the train-split input to a decision.
type Evidence struct {
	Champion        eval.Summary
	Challenger      eval.Summary
	ChampionStats   CategoryStats
	ChallengerStats CategoryStats
}

// HoldoutOutcome is both prompts' results on the holdout split.
type HoldoutOutcome struct {
	Champion        eval.Summary
	Challenger      eval.Summary
	ChampionStats   CategoryStats
	ChallengerStats CategoryStats
}

// HoldoutFunc evaluates both prompts on holdout. Decide calls it at most
// once, and only when every earlier gate has passed.
type HoldoutFunc func() (*HoldoutOutcome, error)

// Verdict is the full outcome of Decide.
type Verdict struct {
	Decision    Decision
	Reason      string
	TrainWinner Winner
	Improvement float64
	// Guardrail is always computed on train stats; it only decides the round
	// when the threshold gate was cleared.
	Guardrail      GuardrailVerdict
	HoldoutChecked bool
	HoldoutWinner  Winner
	HoldoutOK      bool
	Holdout        *HoldoutOutcome
}

// Decide runs the promotion state machine. Each gate is terminal.
func Decide(p Policy, ev Evidence, holdout HoldoutFunc) (Verdict, error) {
	v := Verdict{
		TrainWinner:   Compare(ev.Champion, ev.Challenger),
		Improvement:   p.Improvement(ev.Champion, ev.Challenger),
		Guardrail:     CheckGuardrail(ev.ChampionStats, ev.ChallengerStats, p.MaxCategoryDropPP),
		HoldoutWinner: WinnerChampion,
	}

	if v.TrainWinner == WinnerChampion {
		v.Decision = DecisionKeep
		v.Reason = "A retained: champion wins train tie-break order."
		return v, nil
	}
	if v.Improvement < p.MinImprovement {
		v.Decision = DecisionRejectThreshold
		v.Reason = fmt.Sprintf("B won tie-break but did not clear min improvement (%s < %s).",
			p.formatMargin(v.Improvement), p.formatMargin(p.MinImprovement))
		return v, nil
	}
	if !v.Guardrail.OK {
		v.Decision = DecisionRejectGuardrail
		v.Reason = "B rejected by guardrail: " + v.Guardrail.Reason
		return v, nil
	}
	if !p.HoldoutEnabled {
		v.Decision = DecisionPromote
		v.Reason = "B promoted: beat A on train (holdout validation disabled)."
		return v, nil
	}

	logging.TournamentDebug("train gates passed (delta=%s), running holdout", p.formatMargin(v.Improvement))
	out, err := holdout()
	if err != nil {
		return v, err
	}
	v.HoldoutChecked = true
	v.Holdout = out
	v.HoldoutWinner = Compare(out.Champion, out.Challenger)
	v.HoldoutOK = v.HoldoutWinner == WinnerChallenger && out.Challenger.PassRate >= p.MinHoldoutPassRate
	if !v.HoldoutOK {
		v.Decision = DecisionRejectHoldout
		v.Reason = fmt.Sprintf("B beat train but failed holdout promotion rule (winner=%s, B_holdout_pass_rate=%.2f%%).",
			v.HoldoutWinner, out.Challenger.PassRate)
		return v, nil
	}
	v.Decision = DecisionPromote
	v.Reason = "B promoted: beat A on train and holdout, and passed holdout threshold."
	return v, nil
}
