package experiment

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/cbt"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/config"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/judge"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/llm"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/observability"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/tasks"
)

// Condition names one arm of the experiment.
type Condition string

const (
	ConditionBaseline Condition = "baseline"
	ConditionCBT      Condition = "cbt"
)

// DefaultWorkers bounds the longitudinal pool when the config leaves it
// unset.
const DefaultWorkers = 32

// LongitudinalRunner drives multi-round runs: each (model, task) unit
// plays both conditions across N rounds, feeding each round the previous
// round's committed output.
type LongitudinalRunner struct {
	factory llm.Factory
	agent   *cbt.Agent
	panel   *judge.Panel
	rounds  int
	workers int
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func NewLongitudinalRunner(factory llm.Factory, agent *cbt.Agent, panel *judge.Panel, rounds, workers int, logger logging.Logger) *LongitudinalRunner {
	if rounds < 1 {
		rounds = 1
	}
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &LongitudinalRunner{
		factory: factory,
		agent:   agent,
		panel:   panel,
		rounds:  rounds,
		workers: workers,
		logger:  logging.OrNop(logger),
		tracer:  noopTracer(),
	}
}

// Instrument attaches metrics and tracing to the runner. Both are
// optional; an uninstrumented runner records nothing.
func (r *LongitudinalRunner) Instrument(metrics *observability.Metrics, tracer trace.Tracer) *LongitudinalRunner {
	r.metrics = metrics
	if tracer != nil {
		r.tracer = tracer
	}
	return r
}

// longitudinalEvent is one finished (model, task) unit for the aggregator.
type longitudinalEvent struct {
	spec    config.ModelSpec
	taskID  string
	outcome *TaskOutcome
	err     error
}

// RunCondition plays every round of one condition for one (model, task).
// Round 1 uses the task prompt; later rounds substitute the previous
// round's committed output into the round template (baseline commits raw,
// reflective commits revised). Any failure aborts this condition only.
func (r *LongitudinalRunner) RunCondition(ctx context.Context, client llm.Client, task tasks.Task, condition Condition) ([]RoundRecord, error) {
	start := time.Now()
	history, err := r.playRounds(ctx, client, task, condition)
	r.metrics.ObserveUnitDuration(string(condition), statusOf(err), time.Since(start))
	return history, err
}

func (r *LongitudinalRunner) playRounds(ctx context.Context, client llm.Client, task tasks.Task, condition Condition) ([]RoundRecord, error) {
	history := make([]RoundRecord, 0, r.rounds)
	previous := ""
	for round := 1; round <= r.rounds; round++ {
		prompt := task.Prompt
		if round > 1 {
			prompt = task.RoundPrompt(previous)
		}
		raw, err := client.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("round %d completion: %w", round, err)
		}
		record := RoundRecord{Round: round, Prompt: prompt, Raw: raw}

		if condition == ConditionCBT {
			critiqueCtx, span := r.tracer.Start(ctx, observability.SpanCritique)
			reflection, err := r.agent.Critique(critiqueCtx, raw)
			if err != nil {
				span.SetAttributes(observability.ErrorAttrs(err)...)
			}
			span.End()
			if err != nil {
				return nil, fmt.Errorf("round %d critique: %w", round, err)
			}
			revisionPrompt := cbt.BuildRevisionPrompt(reflection.RevisionInstruction, raw)
			revised, err := client.Complete(ctx, revisionPrompt)
			if err != nil {
				return nil, fmt.Errorf("round %d revision: %w", round, err)
			}
			record.Reflection = &reflection
			record.RevisionPrompt = revisionPrompt
			record.Revised = revised
			previous = revised
		} else {
			previous = raw
		}

		history = append(history, record)
	}
	return history, nil
}

// Run fans the (model, task) cross-product over a bounded pool. Each unit
// runs baseline then reflective, scores the two final outputs, and emits
// one completion event; failed units are logged and absent from the
// document.
func (r *LongitudinalRunner) Run(ctx context.Context, models []config.ModelSpec, taskList []tasks.Task) (Results, error) {
	if len(models) == 0 || len(taskList) == 0 {
		return nil, fmt.Errorf("experiment needs at least one model and one task")
	}

	total := len(models) * len(taskList)
	events := make(chan longitudinalEvent, total)

	results := make(Results, len(models))
	done := make(chan struct{})
	go func() {
		defer close(done)
		completed := 0
		for ev := range events {
			completed++
			if ev.err != nil {
				r.logger.Warn("unit failed model=%s task=%s: %v", ev.spec.ID, ev.taskID, ev.err)
			} else {
				model, ok := results[ev.spec.ID]
				if !ok {
					model = &ModelOutcome{ModelName: ev.spec.Name, Tasks: make(map[string]*TaskOutcome)}
					results[ev.spec.ID] = model
				}
				model.Tasks[ev.taskID] = ev.outcome
			}
			r.logger.Info("progress %d/%d (%.0f%%)", completed, total, float64(completed)/float64(total)*100)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, spec := range models {
		spec := spec
		for _, task := range taskList {
			task := task
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				events <- r.executeUnit(gctx, spec, task)
				return nil
			})
		}
	}
	_ = g.Wait()
	close(events)
	<-done

	if ctx.Err() != nil {
		return results, ctx.Err()
	}
	return results, nil
}

// executeUnit wraps one (model, task) unit with its span, active-unit
// gauge, and failure accounting, and packages the outcome as an event.
func (r *LongitudinalRunner) executeUnit(ctx context.Context, spec config.ModelSpec, task tasks.Task) longitudinalEvent {
	ctx, span := r.tracer.Start(ctx, observability.SpanUnit,
		trace.WithAttributes(observability.UnitAttrs(spec.ID, task.ID)...))
	defer span.End()
	r.metrics.IncActiveUnits()
	defer r.metrics.DecActiveUnits()

	outcome, err := r.runUnit(ctx, spec, task)
	if err != nil {
		span.SetAttributes(observability.ErrorAttrs(err)...)
		r.metrics.IncUnitFailure(failureReason(err))
	}
	return longitudinalEvent{spec: spec, taskID: task.ID, outcome: outcome, err: err}
}

func (r *LongitudinalRunner) runUnit(ctx context.Context, spec config.ModelSpec, task tasks.Task) (*TaskOutcome, error) {
	client, err := r.factory(spec, llm.SubjectDefaults())
	if err != nil {
		return nil, fmt.Errorf("construct client: %w", err)
	}

	baselineHistory, err := r.RunCondition(ctx, client, task, ConditionBaseline)
	if err != nil {
		return nil, fmt.Errorf("baseline condition: %w", err)
	}
	cbtHistory, err := r.RunCondition(ctx, client, task, ConditionCBT)
	if err != nil {
		return nil, fmt.Errorf("cbt condition: %w", err)
	}

	baselineFinal := baselineHistory[len(baselineHistory)-1].Raw
	cbtFinal := cbtHistory[len(cbtHistory)-1].Revised

	scoreCtx, span := r.tracer.Start(ctx, observability.SpanScoring,
		trace.WithAttributes(observability.UnitAttrs(spec.ID, task.ID)...))
	evaluation, err := r.panel.Score(scoreCtx, baselineFinal, cbtFinal)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("final scoring: %w", err)
	}

	return &TaskOutcome{
		TaskPrompt:      task.Prompt,
		BaselineHistory: baselineHistory,
		CBTHistory:      cbtHistory,
		BaselineFinal:   baselineFinal,
		CBTFinal:        cbtFinal,
		FinalEvaluation: evaluation,
	}, nil
}
