package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/experiment"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/observability"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/report"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/tasks"
)

func newRoundsCommand(flags *rootFlags) *cobra.Command {
	var rounds, workers int
	var modelFilter string
	var taskFilter []string

	cmd := &cobra.Command{
		Use:   "rounds",
		Short: "Run the multi-round longitudinal experiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer l.close()

			if cmd.Flags().Changed("rounds") {
				l.opts.Rounds = rounds
			}
			if cmd.Flags().Changed("workers") {
				l.opts.Workers = workers
			}

			models, err := filterModels(l.roster.ClientModels, modelFilter)
			if err != nil {
				return err
			}
			taskList, err := tasks.LoadLongitudinal(l.opts.ConfigDir)
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

			fmt.Println(statusInfo(fmt.Sprintf("running %d models x %d tasks, %d rounds, %d workers",
				len(models), len(taskList), l.opts.Rounds, l.opts.Workers)))

			runner := experiment.NewLongitudinalRunner(
				l.factory, l.agent, l.panel,
				l.opts.Rounds, l.opts.Workers,
				logging.Named(l.log, "rounds"),
			).Instrument(l.metrics, l.tracer.Tracer())
			results, err := runner.Run(ctx, models, taskList)
			if err != nil {
				return err
			}

			docPath, err := experiment.WriteLongitudinal(l.opts.OutputDir, results)
			if err != nil {
				return err
			}
			if _, err := experiment.WriteRunMeta(l.opts.OutputDir, experiment.RunMeta{
				RunID:     l.runID,
				Kind:      "longitudinal",
				CreatedAt: time.Now().UTC(),
				Models:    modelIDs(models),
				Tasks:     taskIDs(taskList),
			}); err != nil {
				return err
			}
			reportPath, err := report.NewMarkdownReporter().WriteLongitudinal(results, docPath)
			if err != nil {
				return err
			}

			completed := 0
			for _, outcome := range results {
				completed += len(outcome.Tasks)
			}
			if completed < len(models)*len(taskList) {
				fmt.Println(statusNotice(fmt.Sprintf("%d units failed, see the run log",
					len(models)*len(taskList)-completed)))
			}
			fmt.Println(statusOK(fmt.Sprintf("%d/%d units completed", completed, len(models)*len(taskList))))
			fmt.Println(statusOK("results: " + docPath))
			fmt.Println(statusOK("report:  " + reportPath))
			return nil
		},
	}

	cmd.Flags().IntVar(&rounds, "rounds", 5, "rounds per condition")
	cmd.Flags().IntVar(&workers, "workers", experiment.DefaultWorkers, "concurrent (model, task) units")
	cmd.Flags().StringVar(&modelFilter, "models", "", "comma-separated subject model ids to run")
	cmd.Flags().StringArrayVar(&taskFilter, "tasks", nil, "task id to run (repeatable)")
	return cmd
}
