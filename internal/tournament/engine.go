package tournament

import (
	"context"
	"fmt"
	"time"

	"promptduel/internal/artifacts"
	"promptduel/internal/dataset"
	"promptduel/internal/eval"
	"promptduel/internal/fault"
	"promptduel/internal/logging"
	"promptduel/internal/mutator"
)

// Run modes.
const (
	ModeAutoApply = "auto_apply"
	ModeRecommend = "recommend"
)

// Journal receives every round record after it reached the decision log.
type Journal interface {
	AppendRound(ctx context.Context, rec *RoundRecord) error
}

// Observer is notified of evaluations and finished rounds.
type Observer interface {
	ObserveEvaluation(label string, summary eval.Summary, elapsed time.Duration)
	ObserveRound(rec *RoundRecord)
}

// Options configures an Engine.
type Options struct {
	RunID     string
	Mode      string
	Policy    Policy
	MaxRounds int
	Patience  int

	MaxCasesTrain   int
	MaxCasesHoldout int
	CaseTimeout     time.Duration
	CallTimeout     time.Duration

	// ChampionFile and ChallengerFile are rewritten in auto_apply mode only.
	ChampionFile   string
	ChallengerFile string

	Protocol Protocol
}

// EngineConfig wires an Engine's collaborators.
type EngineConfig struct {
	Evaluator eval.Evaluator
	Layout    *artifacts.Layout
	Split     dataset.Split
	Options   Options
	Journals  []Journal
	Observer  Observer
	GitHead   func(ctx context.Context) string
}

// Engine drives rounds. It is not safe for concurrent use.
type Engine struct {
	evaluator eval.Evaluator
	layout    *artifacts.Layout
	log       *artifacts.DecisionLog
	opts      Options
	journals  []Journal
	observer  Observer
	gitHead   func(ctx context.Context) string
	now       func() time.Time

	trainCategories   map[string]dataset.Category
	holdoutCategories map[string]dataset.Category

	// prepared flips after the first evaluation so later calls can skip
	// one-time adapter setup.
	prepared bool
}

// NewEngine validates the options and writes the split files the adapter
// will be pointed at.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	opts := cfg.Options
	if cfg.Evaluator == nil || cfg.Layout == nil {
		return nil, fault.Configurationf("engine requires an evaluator and a run layout")
	}
	if opts.MaxRounds <= 0 {
		return nil, fault.Configurationf("max_rounds must be > 0 (got %d)", opts.MaxRounds)
	}
	if opts.Patience <= 0 {
		return nil, fault.Configurationf("patience must be > 0 (got %d)", opts.Patience)
	}
	if opts.Mode == "" {
		opts.Mode = ModeRecommend
	}
	if opts.Mode != ModeAutoApply && opts.Mode != ModeRecommend {
		return nil, fault.Configurationf("unknown mode %q", opts.Mode)
	}
	if len(cfg.Split.Train) == 0 || len(cfg.Split.Holdout) == 0 {
		return nil, fault.Configurationf("train and holdout splits must both be non-empty")
	}

	if err := dataset.WriteCases(cfg.Layout.TrainSplit(), cfg.Split.Train); err != nil {
		return nil, fault.Configuration("failed to write train split", err)
	}
	if err := dataset.WriteCases(cfg.Layout.HoldoutSplit(), cfg.Split.Holdout); err != nil {
		return nil, fault.Configuration("failed to write holdout split", err)
	}
	opts.Protocol.TrainSplitFile = cfg.Layout.TrainSplit()
	opts.Protocol.HoldoutSplitFile = cfg.Layout.HoldoutSplit()

	gitHead := cfg.GitHead
	if gitHead == nil {
		gitHead = func(context.Context) string { return "unknown" }
	}

	logging.Tournament("engine ready: mode=%s train=%d holdout=%d max_rounds=%d patience=%d",
		opts.Mode, len(cfg.Split.Train), len(cfg.Split.Holdout), opts.MaxRounds, opts.Patience)

	return &Engine{
		evaluator:         cfg.Evaluator,
		layout:            cfg.Layout,
		log:               artifacts.NewDecisionLog(cfg.Layout.DecisionLog()),
		opts:              opts,
		journals:          cfg.Journals,
		observer:          cfg.Observer,
		gitHead:           gitHead,
		now:               time.Now,
		trainCategories:   dataset.CategoryIndex(cfg.Split.Train),
		holdoutCategories: dataset.CategoryIndex(cfg.Split.Holdout),
	}, nil
}

// Layout returns the run layout.
func (e *Engine) Layout() *artifacts.Layout { return e.layout }

// Run plays rounds until patience runs out or max_rounds is reached. The
// summary is written even when a round fails.
func (e *Engine) Run(ctx context.Context, state PromptState) (*RunSummary, PromptState, error) {
	summary := &RunSummary{
		RunID:            e.opts.RunID,
		RunDir:           e.layout.RunDir,
		LogFile:          e.log.Path(),
		Mode:             e.opts.Mode,
		DatasetFile:      e.opts.Protocol.DatasetFile,
		TrainSplitFile:   e.opts.Protocol.TrainSplitFile,
		HoldoutSplitFile: e.opts.Protocol.HoldoutSplitFile,
		MaxRounds:        e.opts.MaxRounds,
		Patience:         e.opts.Patience,
		StopReason:       StopMaxRounds,
		RoundDirs:        []string{},
	}

	noImprove := 0
	var runErr error
	for round := 1; round <= e.opts.MaxRounds; round++ {
		rec, next, err := e.RunRound(ctx, round, state, noImprove)
		if err != nil {
			summary.StopReason = StopAborted
			summary.Error = err.Error()
			runErr = err
			break
		}
		state = next
		summary.RoundsRun = round
		summary.RoundDirs = append(summary.RoundDirs, rec.Artifacts.RoundDir)
		if rec.Decision.PromoteB {
			summary.Promotions++
		}
		noImprove = rec.Decision.NoImproveRounds
		if noImprove >= e.opts.Patience {
			summary.StopReason = StopPatience
			logging.Tournament("stopping after round %d: %d rounds without promotion", round, noImprove)
			break
		}
	}

	if err := e.finish(summary, state); err != nil && runErr == nil {
		runErr = err
	}
	return summary, state, runErr
}

func (e *Engine) finish(summary *RunSummary, state PromptState) error {
	summary.Timestamp = e.now().Format(time.RFC3339)
	if summary.Promotions > 0 {
		summary.Recommendation = DecisionPromote.Recommendation()
	} else {
		summary.Recommendation = DecisionKeep.Recommendation()
	}

	if e.autoApply() {
		summary.FinalPromptAFile = e.opts.ChampionFile
		summary.FinalPromptBFile = e.opts.ChallengerFile
	} else {
		summary.FinalPromptAFile = e.layout.FinalPromptA()
		summary.FinalPromptBFile = e.layout.SuggestedPromptB()
		if err := artifacts.WriteText(summary.FinalPromptAFile, state.Champion); err != nil {
			return fmt.Errorf("failed to write final champion: %w", err)
		}
		if err := artifacts.WriteText(summary.FinalPromptBFile, state.Challenger); err != nil {
			return fmt.Errorf("failed to write suggested challenger: %w", err)
		}
	}
	summary.FinalPromptAText = state.Champion
	summary.FinalPromptBText = state.Challenger

	if err := artifacts.WriteJSON(e.layout.Summary(), summary); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	logging.Tournament("run finished: rounds=%d promotions=%d stop=%s", summary.RoundsRun, summary.Promotions, summary.StopReason)
	return nil
}

func (e *Engine) autoApply() bool { return e.opts.Mode == ModeAutoApply }

// RunRound plays one round and returns its record and the next state.
// noImprove is the count of consecutive non-promoting rounds before this one.
func (e *Engine) RunRound(ctx context.Context, round int, state PromptState, noImprove int) (*RoundRecord, PromptState, error) {
	timer := logging.StartTimer(logging.CategoryTournament, fmt.Sprintf("round %d", round))
	defer timer.Stop()

	state = NewPromptState(state.Champion, state.Challenger)
	rl := e.layout.Round(round)
	if err := rl.Ensure(); err != nil {
		return nil, state, fmt.Errorf("failed to create round directory: %w", err)
	}

	snapA := e.layout.Snapshot(round, "a", "before")
	snapB := e.layout.Snapshot(round, "b", "before")
	if err := artifacts.WriteText(snapA, state.Champion); err != nil {
		return nil, state, err
	}
	if err := artifacts.WriteText(snapB, state.Challenger); err != nil {
		return nil, state, err
	}

	trainA, err := e.evaluate(ctx, rl, "train", "a", snapA, e.layout.TrainSplit(), e.opts.MaxCasesTrain)
	if err != nil {
		return nil, state, err
	}
	trainB, err := e.evaluate(ctx, rl, "train", "b", snapB, e.layout.TrainSplit(), e.opts.MaxCasesTrain)
	if err != nil {
		return nil, state, err
	}

	ev := Evidence{
		Champion:        trainA.Summary,
		Challenger:      trainB.Summary,
		ChampionStats:   ComputeCategoryStats(trainA.Cases, e.trainCategories),
		ChallengerStats: ComputeCategoryStats(trainB.Cases, e.trainCategories),
	}
	var holdoutA, holdoutB *eval.Result
	verdict, err := Decide(e.opts.Policy, ev, func() (*HoldoutOutcome, error) {
		var herr error
		if holdoutA, herr = e.evaluate(ctx, rl, "holdout", "a", snapA, e.layout.HoldoutSplit(), e.opts.MaxCasesHoldout); herr != nil {
			return nil, herr
		}
		if holdoutB, herr = e.evaluate(ctx, rl, "holdout", "b", snapB, e.layout.HoldoutSplit(), e.opts.MaxCasesHoldout); herr != nil {
			return nil, herr
		}
		return &HoldoutOutcome{
			Champion:        holdoutA.Summary,
			Challenger:      holdoutB.Summary,
			ChampionStats:   ComputeCategoryStats(holdoutA.Cases, e.holdoutCategories),
			ChallengerStats: ComputeCategoryStats(holdoutB.Cases, e.holdoutCategories),
		}, nil
	})
	if err != nil {
		return nil, state, err
	}

	// The next challenger is always built from the round's winner and the
	// loser's failures on train.
	var (
		next     PromptState
		failures []mutator.Failure
		source   mutator.Source
	)
	if verdict.Decision.Promoted() {
		failures = mutator.FailurePack(trainA.Cases, e.trainCategories)
		source = mutator.SourceChampionFailures
		next = NewPromptState(state.Challenger, mutator.Mutate(state.Challenger, failures))
		noImprove = 0
	} else {
		failures = mutator.FailurePack(trainB.Cases, e.trainCategories)
		source = mutator.SourceChallengerFailures
		next = NewPromptState(state.Champion, mutator.Mutate(state.Champion, failures))
		noImprove++
	}
	logging.Mutation("round %d: %s from %d %s", round, verdict.Decision, len(failures), source)

	if err := artifacts.WriteJSONL(rl.FailurePack(), failures); err != nil {
		return nil, state, err
	}

	rec := e.newRecord(round, state, next, trainA, trainB, holdoutA, holdoutB, ev, verdict)
	rec.Decision.MutationSource = source
	rec.Decision.LoserFailures = len(failures)
	rec.Decision.NoImproveRounds = noImprove
	rec.GitHead = e.gitHead(ctx)

	if err := e.applyOutcome(round, rl, rec, next); err != nil {
		return nil, state, err
	}

	challengerPath := rec.PromptPaths.B
	if !e.autoApply() {
		challengerPath = rl.SuggestedPromptB()
	}
	brief := artifacts.Brief{
		Round:          round,
		Decision:       string(verdict.Decision),
		Reason:         verdict.Reason,
		MutationSource: string(source),
		LoserFailures:  len(failures),
		ChallengerPath: challengerPath,
	}
	if err := artifacts.WriteText(rl.Brief(), brief.Markdown()); err != nil {
		return nil, state, err
	}
	if err := artifacts.WriteText(e.layout.Snapshot(round, "a", "after"), next.Champion); err != nil {
		return nil, state, err
	}
	if err := artifacts.WriteText(e.layout.Snapshot(round, "b", "after"), next.Challenger); err != nil {
		return nil, state, err
	}

	if err := e.log.AppendRecord(rec); err != nil {
		return nil, state, err
	}
	for _, j := range e.journals {
		if err := j.AppendRound(ctx, rec); err != nil {
			logging.TournamentWarn("journal append failed for round %d: %v", round, err)
		}
	}
	if e.observer != nil {
		e.observer.ObserveRound(rec)
	}

	logging.Tournament("round %d: decision=%s train A=%d/%d B=%d/%d reason=%q",
		round, verdict.Decision, trainA.Summary.PassCount, trainA.Summary.TotalCases,
		trainB.Summary.PassCount, trainB.Summary.TotalCases, verdict.Reason)
	return rec, next, nil
}

func (e *Engine) evaluate(ctx context.Context, rl artifacts.RoundLayout, slice, prompt, promptFile, casesFile string, maxCases int) (*eval.Result, error) {
	label := slice + "_" + prompt
	req := eval.Request{
		Label:          label,
		PromptFile:     promptFile,
		CasesFile:      casesFile,
		MaxCases:       maxCases,
		CaseTimeout:    e.opts.CaseTimeout,
		Timeout:        e.opts.CallTimeout,
		TextReportPath: rl.Report(slice, prompt, "txt"),
		JSONReportPath: rl.Report(slice, prompt, "json"),
		Prepared:       e.prepared,
	}
	start := time.Now()
	res, err := e.evaluator.Evaluate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	e.prepared = true
	if !res.Summary.Consistent() {
		return nil, fault.Adapter(label+" returned an inconsistent summary", eval.ErrMalformedReport)
	}
	if e.observer != nil {
		e.observer.ObserveEvaluation(label, res.Summary, time.Since(start))
	}
	logging.TournamentDebug("%s: pass=%d fail=%d rate=%.2f%%", label, res.Summary.PassCount, res.Summary.FailCount, res.Summary.PassRate)
	return res, nil
}

// applyOutcome writes prompt files in auto_apply mode, or the suggestion and
// recommendation in recommend mode.
func (e *Engine) applyOutcome(round int, rl artifacts.RoundLayout, rec *RoundRecord, next PromptState) error {
	if e.autoApply() {
		if rec.Decision.PromoteB {
			if err := artifacts.WriteText(e.opts.ChampionFile, next.Champion); err != nil {
				return fault.Configuration("failed to write champion prompt", err)
			}
		}
		if err := artifacts.WriteText(e.opts.ChallengerFile, next.Challenger); err != nil {
			return fault.Configuration("failed to write challenger prompt", err)
		}
		return nil
	}

	if err := artifacts.WriteText(rl.SuggestedPromptB(), next.Challenger); err != nil {
		return err
	}
	a, b := rec.Train.ASummary, rec.Train.BSummary
	recommendation := artifacts.Recommendation{
		Round:            round,
		Recommendation:   rec.Decision.Recommendation,
		Decision:         string(rec.Decision.Decision),
		Reason:           rec.Decision.Reason,
		APassCount:       a.PassCount,
		AFailCount:       a.FailCount,
		BPassCount:       b.PassCount,
		BFailCount:       b.FailCount,
		APassRate:        a.PassRate,
		BPassRate:        b.PassRate,
		DeltaPassRatePP:  b.PassRate - a.PassRate,
		PromptAFile:      e.opts.ChampionFile,
		PromptBFile:      e.opts.ChallengerFile,
		SuggestedPromptB: rl.SuggestedPromptB(),
	}
	if err := artifacts.WriteRecommendation(rl.RecommendationMD(), rl.RecommendationJSON(), recommendation); err != nil {
		return err
	}
	// The run-level copies always reflect the latest round.
	return artifacts.WriteRecommendation(e.layout.RecommendationMD(), e.layout.RecommendationJSON(), recommendation)
}

func (e *Engine) newRecord(round int, before, after PromptState, trainA, trainB, holdoutA, holdoutB *eval.Result, ev Evidence, v Verdict) *RoundRecord {
	rl := e.layout.Round(round)
	rec := &RoundRecord{
		RunID:            e.opts.RunID,
		Timestamp:        e.now().Format(time.RFC3339),
		Round:            round,
		Mode:             e.opts.Mode,
		Protocol:         e.opts.Protocol,
		PromptPaths:      PromptPair{A: e.opts.ChampionFile, B: e.opts.ChallengerFile},
		PromptTextBefore: PromptPair{A: before.Champion, B: before.Challenger},
		PromptTextAfter:  PromptPair{A: after.Champion, B: after.Challenger},
		Train: TrainBlock{
			ASummary:        trainA.Summary,
			BSummary:        trainB.Summary,
			ACategoryStats:  ev.ChampionStats.Rounded(),
			BCategoryStats:  ev.ChallengerStats.Rounded(),
			Winner:          v.TrainWinner,
			BOverADeltaPass: trainB.Summary.PassCount - trainA.Summary.PassCount,
			Improvement:     v.Improvement,
		},
		Holdout: HoldoutBlock{
			Checked:        v.HoldoutChecked,
			Winner:         v.HoldoutWinner,
			OKForPromotion: v.HoldoutOK,
		},
		Guardrail: v.Guardrail,
		Decision: DecisionBlock{
			Decision:       v.Decision,
			PromoteB:       v.Decision.Promoted(),
			Recommendation: v.Decision.Recommendation(),
			Reason:         v.Reason,
		},
		Artifacts: ArtifactPaths{
			RoundDir:         rl.Dir,
			LoserFailurePack: rl.FailurePack(),
			MutationBrief:    rl.Brief(),
			TrainAReportText: trainA.TextReportPath,
			TrainAReportJSON: trainA.JSONReportPath,
			TrainBReportText: trainB.TextReportPath,
			TrainBReportJSON: trainB.JSONReportPath,
		},
	}
	if v.Holdout != nil {
		a, b := v.Holdout.Champion, v.Holdout.Challenger
		rec.Holdout.ASummary = &a
		rec.Holdout.BSummary = &b
		rec.Holdout.ACategoryStats = v.Holdout.ChampionStats.Rounded()
		rec.Holdout.BCategoryStats = v.Holdout.ChallengerStats.Rounded()
	}
	if holdoutA != nil && holdoutB != nil {
		ta, tb := holdoutA.TextReportPath, holdoutB.TextReportPath
		pa, pb := holdoutA.JSONReportPath, holdoutB.JSONReportPath
		rec.Artifacts.HoldoutAReportText = &ta
		rec.Artifacts.HoldoutAReportJSON = &pa
		rec.Artifacts.HoldoutBReportText = &tb
		rec.Artifacts.HoldoutBReportJSON = &pb
	}
	if !e.autoApply() {
		rec.Artifacts.SuggestedPromptB = rl.SuggestedPromptB()
		rec.Artifacts.RecommendationMD = rl.RecommendationMD()
		rec.Artifacts.RecommendationJSON = rl.RecommendationJSON()
	}
	return rec
}
