package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/experiment"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/report"
)

func newReportCommand(flags *rootFlags) *cobra.Command {
	var input string
	var print bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Rebuild the markdown report from an existing result document",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(flags)
			if err != nil {
				return err
			}

			docPath := input
			if docPath == "" {
				docPath = filepath.Join(opts.OutputDir, experiment.SingleTurnArtifact)
			}

			reporter := report.NewMarkdownReporter()
			var reportPath string
			switch {
			case strings.HasSuffix(docPath, experiment.LongitudinalArtifact):
				results, err := experiment.ReadLongitudinal(docPath)
				if err != nil {
					return err
				}
				reportPath, err = reporter.WriteLongitudinal(results, docPath)
				if err != nil {
					return err
				}
			default:
				records, err := experiment.ReadSingleTurn(docPath)
				if err != nil {
					return err
				}
				reportPath, err = reporter.WriteSingleTurn(records, docPath)
				if err != nil {
					return err
				}
			}

			fmt.Println(statusOK("report: " + reportPath))
			if print {
				content, err := os.ReadFile(reportPath)
				if err != nil {
					return err
				}
				width := 80
				if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
					width = w
				}
				os.Stdout.Write(markdown.Render(string(content), width, 2))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "result document to report on")
	cmd.Flags().BoolVar(&print, "print", false, "render the report in the terminal")
	return cmd
}
