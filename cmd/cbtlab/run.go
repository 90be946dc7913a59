package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/cbt"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/config"
	cbterrors "github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/errors"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/experiment"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/judge"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/llm"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/observability"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/report"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/tasks"
)

// lab bundles everything a run needs after bootstrap.
type lab struct {
	opts    *config.Options
	roster  *config.Roster
	factory llm.Factory
	agent   *cbt.Agent
	panel   *judge.Panel
	log     *logging.RunLog
	tracer  *observability.TracerProvider
	metrics *observability.Metrics
	runID   string
}

// bootstrap loads config, checks the credential, and constructs the
// shared components. A missing credential aborts here, before any worker
// starts.
func bootstrap(flags *rootFlags) (*lab, error) {
	opts, err := loadOptions(flags)
	if err != nil {
		return nil, err
	}
	apiKey, err := config.Credential(nil)
	if err != nil {
		return nil, err
	}
	roster, err := loadRoster(opts)
	if err != nil {
		return nil, err
	}
	runLog, err := openRunLog(opts)
	if err != nil {
		return nil, err
	}

	tracer, err := observability.NewTracerProvider(observability.TracingConfig{
		Enabled:        opts.Tracing.Enabled,
		Exporter:       opts.Tracing.Exporter,
		Endpoint:       opts.Tracing.Endpoint,
		SampleRate:     opts.Tracing.SampleRate,
		ServiceVersion: Version,
	})
	if err != nil {
		runLog.Close()
		return nil, err
	}

	metrics := observability.DefaultMetrics()
	factory := llm.OpenRouterFactory(llm.Config{
		BaseURL: opts.BaseURL,
		APIKey:  apiKey,
		Timeout: opts.HTTPTimeout(),
		Retry: cbterrors.RetryConfig{
			MaxAttempts: opts.RetryAttempts,
			Delay:       opts.RetryDelay(),
		},
		Logger:       logging.Named(runLog, "llm"),
		OnUsage:      metrics.AddTokens,
		OnCompletion: metrics.IncCompletion,
		Tracer:       tracer.Tracer(),
	})

	agent, err := cbt.NewAgentFromSpec(roster.CBTModel, factory, logging.Named(runLog, "cbt"))
	if err != nil {
		runLog.Close()
		return nil, err
	}
	panel, err := judge.NewPanel(roster.EvaluatorModels, factory, logging.Named(runLog, "judge"))
	if err != nil {
		runLog.Close()
		return nil, err
	}
	panel.OnOutcome = metrics.IncScoreOutcome

	runID := experiment.NewRunID()
	runLog.Info("run %s starting (config=%s output=%s)", runID, opts.ConfigDir, opts.OutputDir)

	return &lab{
		opts:    opts,
		roster:  roster,
		factory: factory,
		agent:   agent,
		panel:   panel,
		log:     runLog,
		tracer:  tracer,
		metrics: metrics,
		runID:   runID,
	}, nil
}

func (l *lab) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.tracer.Shutdown(shutdownCtx); err != nil {
		l.log.Warn("tracer shutdown: %v", err)
	}
	l.log.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCommand(flags *rootFlags) *cobra.Command {
	var modelFilter string
	var taskFilter []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the single-turn experiment and score the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer l.close()

			models, err := filterModels(l.roster.ClientModels, modelFilter)
			if err != nil {
				return err
			}
			taskList, err := tasks.LoadSingleTurn(l.opts.ConfigDir)
			if err != nil {
				return err
			}
			taskList, err = filterTasks(taskList, taskFilter)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			ctx, span := l.tracer.StartSpan(ctx, observability.SpanRun)
			defer span.End()

			fmt.Println(statusInfo(fmt.Sprintf("running %d models x %d tasks with %d judges",
				len(models), len(taskList), l.panel.Size())))

			runner := experiment.NewRunner(l.factory, l.agent, logging.Named(l.log, "runner")).
				Instrument(l.metrics, l.tracer.Tracer())
			records, err := runner.Run(ctx, models, taskList)
			if err != nil {
				return err
			}
			if err := runner.AttachScores(ctx, l.panel, records); err != nil {
				return err
			}

			docPath, err := experiment.WriteSingleTurn(l.opts.OutputDir, records)
			if err != nil {
				return err
			}
			if _, err := experiment.WriteRunMeta(l.opts.OutputDir, experiment.RunMeta{
				RunID:     l.runID,
				Kind:      "single_turn",
				CreatedAt: time.Now().UTC(),
				Models:    modelIDs(models),
				Tasks:     taskIDs(taskList),
			}); err != nil {
				return err
			}
			reportPath, err := report.NewMarkdownReporter().WriteSingleTurn(records, docPath)
			if err != nil {
				return err
			}

			fmt.Println(statusOK(fmt.Sprintf("%d/%d units completed", len(records), len(models)*len(taskList))))
			fmt.Println(statusOK("results: " + docPath))
			fmt.Println(statusOK("report:  " + reportPath))
			return nil
		},
	}

	cmd.Flags().StringVar(&modelFilter, "models", "", "comma-separated subject model ids to run")
	cmd.Flags().StringArrayVar(&taskFilter, "tasks", nil, "task id to run (repeatable)")
	return cmd
}

func modelIDs(specs []config.ModelSpec) []string {
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = s.ID
	}
	return ids
}

func taskIDs(list []tasks.Task) []string {
	ids := make([]string, len(list))
	for i, t := range list {
		ids[i] = t.ID
	}
	return ids
}
