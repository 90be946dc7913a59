package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/config"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/tasks"
)

// isTTY checks whether colored, interactive output makes sense.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func statusOK(msg string) string     { return green("✔ " + msg) }
func statusError(msg string) string  { return red("✖ " + msg) }
func statusInfo(msg string) string   { return cyan(msg) }
func statusNotice(msg string) string { return yellow(msg) }

// rootFlags are the persistent flags shared by run/rounds/report.
type rootFlags struct {
	configFile string
	configDir  string
	outputDir  string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "cbtlab",
		Short: "Run baseline-versus-reflective model experiments",
		Long: "cbtlab runs A/B experiments that compare a model's plain answers\n" +
			"against answers revised after a distortion critique, scores both with\n" +
			"a judge panel, and writes result documents and markdown reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to cbtlab.yaml")
	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "directory with models.yaml and task sets")
	root.PersistentFlags().StringVar(&flags.outputDir, "output", "", "directory for result documents and reports")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	if !isTTY() {
		color.NoColor = true
	}

	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newRoundsCommand(flags))
	root.AddCommand(newReportCommand(flags))
	root.AddCommand(newVersionCommand())
	return root
}

// loadOptions resolves runtime options and applies flag overrides.
func loadOptions(flags *rootFlags) (*config.Options, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	opts, err := config.LoadOptions(flags.configFile)
	if err != nil {
		return nil, err
	}
	if flags.configDir != "" {
		opts.ConfigDir = flags.configDir
	}
	if flags.outputDir != "" {
		opts.OutputDir = flags.outputDir
	}
	if flags.verbose {
		opts.LogLevel = "debug"
	}
	return opts, nil
}

func openRunLog(opts *config.Options) (*logging.RunLog, error) {
	return logging.NewRunLog(opts.OutputDir, logging.ParseLevel(opts.LogLevel), opts.LogConsole)
}

func loadRoster(opts *config.Options) (*config.Roster, error) {
	return config.LoadRoster(filepath.Join(opts.ConfigDir, "models.yaml"))
}

// filterModels keeps only the roster subjects named in the csv id list.
func filterModels(specs []config.ModelSpec, csv string) ([]config.ModelSpec, error) {
	if strings.TrimSpace(csv) == "" {
		return specs, nil
	}
	wanted := make(map[string]bool)
	for _, id := range strings.Split(csv, ",") {
		wanted[strings.TrimSpace(id)] = true
	}
	var kept []config.ModelSpec
	for _, spec := range specs {
		if wanted[spec.ID] {
			kept = append(kept, spec)
			delete(wanted, spec.ID)
		}
	}
	for id := range wanted {
		return nil, fmt.Errorf("unknown model id %q", id)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("model filter matched nothing")
	}
	return kept, nil
}

// filterTasks keeps only the tasks whose ids were requested.
func filterTasks(list []tasks.Task, ids []string) ([]tasks.Task, error) {
	if len(ids) == 0 {
		return list, nil
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[strings.TrimSpace(id)] = true
	}
	var kept []tasks.Task
	for _, task := range list {
		if wanted[task.ID] {
			kept = append(kept, task)
			delete(wanted, task.ID)
		}
	}
	for id := range wanted {
		return nil, fmt.Errorf("unknown task id %q", id)
	}
	return kept, nil
}
