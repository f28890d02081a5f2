package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyluth/parkplan/internal/config"
	"github.com/dyluth/parkplan/internal/finance"
	"github.com/dyluth/parkplan/internal/logging"
	"github.com/dyluth/parkplan/internal/policy"
	"github.com/dyluth/parkplan/internal/registry"
	"github.com/dyluth/parkplan/internal/screener"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Update statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Engine runs the fixed stage order against one blackboard per run.
// An Engine holds no per-run state and is safe for concurrent Run calls.
type Engine struct {
	stages    []Stage
	rules     *ReviewRules
	observers []Observer
	logger    *zap.Logger
	corpus    *policy.Corpus
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(l) }
}

// WithObserver adds an observer notified for every run.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithStage replaces the built-in stage with the same name.
func WithStage(s Stage) Option {
	return func(e *Engine) {
		for i := range e.stages {
			if e.stages[i].Name() == s.Name() {
				e.stages[i] = s
				return
			}
		}
		e.stages = append(e.stages, s)
	}
}

// Outcome is the terminal result of a run. State is never nil; on failure it holds
// everything committed before the failing stage.
type Outcome struct {
	RunID  string
	Status blackboard.RunStatus
	State  *blackboard.State
	Error  *blackboard.ErrorPayload
}

// Failed reports whether the run ended in the failed status.
func (o Outcome) Failed() bool { return o.Status == blackboard.RunStatusFailed }

// NewEngine builds the stage computations from a validated configuration. A nil cfg
// selects config.Default().
func NewEngine(cfg *config.PlannerConfig, corpus *policy.Corpus, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if corpus == nil {
		return nil, fmt.Errorf("policy corpus is required")
	}
	if cfg.Policy == nil || cfg.Screener == nil || cfg.Finance == nil {
		return nil, fmt.Errorf("configuration has not been validated")
	}

	w := cfg.Screener.Weights
	scr, err := screener.New(screener.Options{
		Threshold: *cfg.Screener.InclusionThreshold,
		Weights:   screener.Weights{Tendency: w.Tendency, Readiness: w.Readiness, Prior: w.Prior},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create screener: %w", err)
	}
	aggregator, err := policy.NewAggregator(corpus, *cfg.Policy.MaxSubsidyFraction)
	if err != nil {
		return nil, fmt.Errorf("failed to create subsidy aggregator: %w", err)
	}
	integrator, err := finance.NewIntegrator(*cfg.Finance.HorizonYears, *cfg.Finance.DiscountRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create financial integrator: %w", err)
	}
	rules, err := CompileReviewRules(cfg.ReviewRules)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		stages: []Stage{
			geoStage{},
			baselineStage{},
			measuresStage{screener: scr},
			policyStage{corpus: corpus, aggregator: aggregator},
			financeStage{integrator: integrator},
		},
		rules:  rules,
		logger: zap.NewNop(),
		corpus: corpus,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := validateOrder(e.stages); err != nil {
		return nil, err
	}
	return e, nil
}

// validateOrder requires the stages in the fixed order, each declaring only
// upstream stages that run before it.
func validateOrder(stages []Stage) error {
	if len(stages) != len(blackboard.Stages) {
		return fmt.Errorf("expected %d stages, got %d", len(blackboard.Stages), len(stages))
	}
	before := make(map[blackboard.Stage]bool, len(stages))
	for i, s := range stages {
		if s.Name() != blackboard.Stages[i] {
			return fmt.Errorf("stage %d must be %s, got %s", i, blackboard.Stages[i], s.Name())
		}
		for _, up := range s.Upstream() {
			if !before[up] {
				return fmt.Errorf("stage %s declares upstream %s which does not run before it", s.Name(), up)
			}
		}
		before[s.Name()] = true
	}
	return nil
}

// Corpus returns the policy corpus the engine matches against.
func (e *Engine) Corpus() *policy.Corpus { return e.corpus }

// ReviewRuleCount returns the number of compiled review rules.
func (e *Engine) ReviewRuleCount() int { return e.rules.Len() }

// Run executes every stage in order. It never returns a nil State: a failing stage
// leaves the state committed by earlier stages and an error payload naming the stage.
//
// ctx is passed to observers only; a started run is not interrupted.
func (e *Engine) Run(ctx context.Context, req Request) Outcome {
	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	observers := make([]Observer, 0, len(e.observers)+len(req.Observers))
	observers = append(observers, e.observers...)
	observers = append(observers, req.Observers...)

	runStart := time.Now()
	state := blackboard.NewState(runID, req.Selection, req.Scenario)
	e.logEvent("run_started", runID, "", zap.Int("stage_count", len(e.stages)))
	e.notify(ctx, observers, Update{
		RunID:     runID,
		Status:    StatusStarted,
		RunStatus: blackboard.RunStatusRunning,
		State:     state,
	})

	if err := req.Validate(); err != nil {
		return e.fail(ctx, observers, state, runStart,
			&StageComputationError{Reason: ReasonInvalidInput, Err: err})
	}

	for _, stage := range e.stages {
		name := stage.Name()
		stageStart := time.Now()
		entry := blackboard.NewLogEntry(name, "")

		e.logEvent("stage_started", runID, name)
		e.notify(ctx, observers, Update{
			RunID:     runID,
			Stage:     name,
			Status:    StatusStarted,
			RunStatus: blackboard.RunStatusRunning,
			State:     state,
		})

		next, err := e.execute(stage, state)
		if err != nil {
			state = state.WithLog(entry.Complete(StatusFailed, err.Error()))
			return e.fail(ctx, observers, state, runStart, asStageError(name, err))
		}
		result, _ := next.Result(name)
		state = next.WithLog(entry.Complete(StatusCompleted, fmt.Sprintf("%d metrics, %d data gaps", len(result.Metrics), len(result.DataGaps))))

		e.logEvent("stage_completed", runID, name,
			zap.Float64("confidence", result.Confidence),
			zap.Int("data_gaps", len(result.DataGaps)),
			zap.Int64("latency_ms", time.Since(stageStart).Milliseconds()))
		e.notify(ctx, observers, Update{
			RunID:     runID,
			Stage:     name,
			Status:    StatusCompleted,
			RunStatus: blackboard.RunStatusRunning,
			State:     state,
		})
	}

	e.logEvent("run_completed", runID, "",
		zap.Int("review_items", len(state.ReviewItems())),
		zap.Int("data_gaps", len(state.DataGaps())),
		zap.Int64("latency_ms", time.Since(runStart).Milliseconds()))
	e.notify(ctx, observers, Update{
		RunID:     runID,
		Status:    StatusCompleted,
		RunStatus: blackboard.RunStatusCompleted,
		State:     state,
	})
	return Outcome{RunID: runID, Status: blackboard.RunStatusCompleted, State: state}
}

// RunRecorded runs the request while holding the run's registry writer, so every
// transition is visible to registry readers. A run ID already being written fails
// with reason writer_busy without executing anything.
func (e *Engine) RunRecorded(ctx context.Context, reg *registry.Registry, req Request) Outcome {
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}

	writer, err := reg.Acquire(req.RunID)
	if err != nil {
		reason := ReasonComputationFailed
		if registry.IsWriterBusy(err) {
			reason = ReasonWriterBusy
		}
		e.logEvent("run_rejected", req.RunID, "", zap.String("reason", reason), zap.Error(err))
		return rejected(req, reason, err)
	}
	defer writer.Release()

	req.Observers = append(append([]Observer{}, req.Observers...), RecordTo(writer))
	return e.Run(ctx, req)
}

// execute checks the upstream guard, computes the stage and commits its output.
// The returned state is nil on error.
func (e *Engine) execute(stage Stage, state *blackboard.State) (*blackboard.State, error) {
	name := stage.Name()
	for _, up := range stage.Upstream() {
		if !state.Has(up) {
			return nil, stageErrorf(name, ReasonMissingUpstream, "upstream stage %s has no published result", up)
		}
	}

	out, err := compute(stage, state)
	if err != nil {
		return nil, err
	}

	if out.Result.Stage != name {
		return nil, stageErrorf(name, ReasonInvalidResult, "result published for stage %q", out.Result.Stage)
	}
	next, err := state.WithResult(out.Result)
	if err != nil {
		return nil, &StageComputationError{Stage: name, Reason: ReasonInvalidResult, Err: err}
	}

	reviews := make([]blackboard.ReviewItem, 0, len(out.ReviewItems))
	for _, item := range out.ReviewItems {
		if item.Stage == "" {
			item.Stage = name
		}
		reviews = append(reviews, item)
	}
	fired, errs := e.rules.Evaluate(out.Result)
	for _, err := range errs {
		e.logger.Debug("review_rule_skipped",
			zap.String("run_id", state.RunID()),
			zap.String("stage", string(name)),
			zap.Error(err))
	}
	reviews = append(reviews, fired...)

	return next.WithReviewItems(reviews...), nil
}

// compute calls the stage, converting a panic into a StageComputationError.
func compute(stage Stage, state *blackboard.State) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = stageErrorf(stage.Name(), ReasonPanic, "panic: %v", r)
		}
	}()
	return stage.Compute(state)
}

func (e *Engine) fail(ctx context.Context, observers []Observer, state *blackboard.State, runStart time.Time, sce *StageComputationError) Outcome {
	payload := sce.Payload()

	e.logger.Error("run_failed",
		zap.String("event_type", "run_failed"),
		zap.String("run_id", state.RunID()),
		zap.String("stage", string(sce.Stage)),
		zap.String("reason", sce.Reason),
		zap.Int64("latency_ms", time.Since(runStart).Milliseconds()),
		zap.Error(sce))
	e.notify(ctx, observers, Update{
		RunID:     state.RunID(),
		Stage:     sce.Stage,
		Status:    StatusFailed,
		RunStatus: blackboard.RunStatusFailed,
		Detail:    payload.Message,
		State:     state,
		Error:     payload,
	})
	return Outcome{RunID: state.RunID(), Status: blackboard.RunStatusFailed, State: state, Error: payload}
}

func (e *Engine) notify(ctx context.Context, observers []Observer, u Update) {
	for _, o := range observers {
		o.Observe(ctx, u)
	}
}

// logEvent emits one structured lifecycle event.
func (e *Engine) logEvent(eventType, runID string, stage blackboard.Stage, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("run_id", runID),
	}
	if stage != "" {
		base = append(base, zap.String("stage", string(stage)))
	}
	e.logger.Info(eventType, append(base, fields...)...)
}
