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

// completionEvent is one finished (model, task) unit, successful or not.
// Workers only send; the aggregator goroutine owns all result state.
type completionEvent struct {
	modelID string
	taskID  string
	record  *Record
	err     error
}

// Runner executes the single-turn experiment: every subject model answers
// every task under both conditions. Scores are attached in a separate
// pass so a judge outage never loses generation work.
type Runner struct {
	factory llm.Factory
	agent   *cbt.Agent
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func NewRunner(factory llm.Factory, agent *cbt.Agent, logger logging.Logger) *Runner {
	return &Runner{
		factory: factory,
		agent:   agent,
		logger:  logging.OrNop(logger),
		tracer:  noopTracer(),
	}
}

// Instrument attaches metrics and tracing to the runner. Both are
// optional; an uninstrumented runner records nothing.
func (r *Runner) Instrument(metrics *observability.Metrics, tracer trace.Tracer) *Runner {
	r.metrics = metrics
	if tracer != nil {
		r.tracer = tracer
	}
	return r
}

// Run fans out one worker per model; tasks run strictly in order within a
// worker. A failed task is logged and skipped, the worker moves on, and
// sibling workers are unaffected. Records arrive in completion order.
func (r *Runner) Run(ctx context.Context, models []config.ModelSpec, taskList []tasks.Task) ([]*Record, error) {
	if len(models) == 0 || len(taskList) == 0 {
		return nil, fmt.Errorf("experiment needs at least one model and one task")
	}

	clients := make([]llm.Client, len(models))
	for i, spec := range models {
		client, err := r.factory(spec, llm.SubjectDefaults())
		if err != nil {
			return nil, fmt.Errorf("construct client for %s: %w", spec.ID, err)
		}
		clients[i] = client
	}

	total := len(models) * len(taskList)
	events := make(chan completionEvent, total)

	records := make([]*Record, 0, total)
	done := make(chan struct{})
	go func() {
		defer close(done)
		completed := 0
		for ev := range events {
			completed++
			if ev.err != nil {
				r.logger.Warn("task failed model=%s task=%s: %v", ev.modelID, ev.taskID, ev.err)
			} else {
				records = append(records, ev.record)
			}
			r.logger.Info("progress %d/%d (%.0f%%)", completed, total, float64(completed)/float64(total)*100)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(models))
	for i, spec := range models {
		i, spec := i, spec
		g.Go(func() error {
			for _, task := range taskList {
				if gctx.Err() != nil {
					return nil
				}
				events <- r.executeUnit(gctx, clients[i], spec, task)
			}
			return nil
		})
	}
	_ = g.Wait()
	close(events)
	<-done

	if ctx.Err() != nil {
		return records, ctx.Err()
	}
	return records, nil
}

// executeUnit wraps one (model, task) unit with its span, active-unit
// gauge, and failure accounting, and packages the outcome as an event.
func (r *Runner) executeUnit(ctx context.Context, client llm.Client, spec config.ModelSpec, task tasks.Task) completionEvent {
	ctx, span := r.tracer.Start(ctx, observability.SpanUnit,
		trace.WithAttributes(observability.UnitAttrs(spec.ID, task.ID)...))
	defer span.End()
	r.metrics.IncActiveUnits()
	defer r.metrics.DecActiveUnits()

	record, err := r.runTask(ctx, client, spec, task)
	if err != nil {
		span.SetAttributes(observability.ErrorAttrs(err)...)
		r.metrics.IncUnitFailure(failureReason(err))
	}
	return completionEvent{modelID: spec.ID, taskID: task.ID, record: record, err: err}
}

func (r *Runner) runTask(ctx context.Context, client llm.Client, spec config.ModelSpec, task tasks.Task) (*Record, error) {
	start := time.Now()
	baseline, err := client.Complete(ctx, task.Prompt)
	r.metrics.ObserveUnitDuration(string(ConditionBaseline), statusOf(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("baseline completion: %w", err)
	}

	start = time.Now()
	raw, revised, reflection, err := r.runReflective(ctx, client, task)
	r.metrics.ObserveUnitDuration(string(ConditionCBT), statusOf(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	return &Record{
		ModelID:    spec.ID,
		ModelName:  spec.Name,
		TaskID:     task.ID,
		TaskPrompt: task.Prompt,
		Conditions: ConditionResults{
			Baseline: baseline,
			CBT: ReflectiveResult{
				Raw:        raw,
				Reflection: reflection,
				Revised:    revised,
			},
		},
		Evaluation: []judge.ScoreRecord{},
	}, nil
}

// runReflective plays the reflective arm: answer, critique, revise.
func (r *Runner) runReflective(ctx context.Context, client llm.Client, task tasks.Task) (string, string, cbt.ReflectionResult, error) {
	raw, err := client.Complete(ctx, task.Prompt)
	if err != nil {
		return "", "", cbt.ReflectionResult{}, fmt.Errorf("reflective completion: %w", err)
	}

	critiqueCtx, span := r.tracer.Start(ctx, observability.SpanCritique)
	reflection, err := r.agent.Critique(critiqueCtx, raw)
	if err != nil {
		span.SetAttributes(observability.ErrorAttrs(err)...)
	}
	span.End()
	if err != nil {
		return "", "", cbt.ReflectionResult{}, fmt.Errorf("critique: %w", err)
	}

	revisionPrompt := cbt.BuildRevisionPrompt(reflection.RevisionInstruction, raw)
	revised, err := client.Complete(ctx, revisionPrompt)
	if err != nil {
		return "", "", cbt.ReflectionResult{}, fmt.Errorf("revision completion: %w", err)
	}
	return raw, revised, reflection, nil
}

// AttachScores runs the judge panel over each record's final outputs.
// A scoring failure for one record is logged and leaves its evaluation
// empty; only context cancellation stops the pass.
func (r *Runner) AttachScores(ctx context.Context, panel *judge.Panel, records []*Record) error {
	for _, record := range records {
		scoreCtx, span := r.tracer.Start(ctx, observability.SpanScoring,
			trace.WithAttributes(observability.UnitAttrs(record.ModelID, record.TaskID)...))
		scores, err := panel.Score(scoreCtx, record.Conditions.Baseline, record.Conditions.CBT.Revised)
		span.End()
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			r.logger.Warn("scoring failed model=%s task=%s: %v", record.ModelID, record.TaskID, err)
			record.Evaluation = []judge.ScoreRecord{}
			continue
		}
		record.Evaluation = scores
	}
	return nil
}
