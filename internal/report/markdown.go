package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/experiment"
)

// MarkdownReporter renders summaries as markdown documents written next
// to the result document they describe.
type MarkdownReporter struct {
	now func() time.Time
}

func NewMarkdownReporter() *MarkdownReporter {
	return &MarkdownReporter{now: time.Now}
}

// WriteSingleTurn builds and writes the single-turn report. Returns the
// report path.
func (mr *MarkdownReporter) WriteSingleTurn(records []*experiment.Record, documentPath string) (string, error) {
	summary := Aggregate(records)
	content := mr.BuildSingleTurn(summary)
	return mr.write(documentPath, "single_turn_report.md", content)
}

// WriteLongitudinal builds and writes the longitudinal report.
func (mr *MarkdownReporter) WriteLongitudinal(results experiment.Results, documentPath string) (string, error) {
	summary := AggregateLongitudinal(results)
	content := mr.BuildLongitudinal(summary)
	return mr.write(documentPath, "longitudinal_report.md", content)
}

func (mr *MarkdownReporter) write(documentPath, name, content string) (string, error) {
	path := filepath.Join(filepath.Dir(documentPath), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// BuildSingleTurn renders a single-turn summary as markdown.
func (mr *MarkdownReporter) BuildSingleTurn(summary *Summary) string {
	var b strings.Builder
	mr.buildHeader(&b, "Reflective Revision Experiment Report")
	mr.buildOverview(&b, summary)
	mr.buildDimensionTable(&b, summary)
	mr.buildGroupTable(&b, "Per Model", summary.PerModel)
	mr.buildGroupTable(&b, "Per Task", summary.PerTask)
	mr.buildGroupTable(&b, "Per Judge", summary.PerJudge)
	mr.buildMatrix(&b, summary)
	mr.buildRevisionSection(&b, summary.Revision)
	mr.buildSignificanceSection(&b, summary.TTest)
	return b.String()
}

// BuildLongitudinal renders a longitudinal summary: the flattened
// final-round summary plus per-model final comparisons.
func (mr *MarkdownReporter) BuildLongitudinal(summary *LongitudinalSummary) string {
	var b strings.Builder
	mr.buildHeader(&b, "Longitudinal Experiment Report")
	mr.buildOverview(&b, summary.Summary)
	mr.buildFinalsSection(&b, summary.Finals)
	mr.buildDimensionTable(&b, summary.Summary)
	mr.buildGroupTable(&b, "Per Model", summary.Summary.PerModel)
	mr.buildGroupTable(&b, "Per Task", summary.Summary.PerTask)
	mr.buildGroupTable(&b, "Per Judge", summary.Summary.PerJudge)
	mr.buildMatrix(&b, summary.Summary)
	mr.buildRevisionSection(&b, summary.Summary.Revision)
	mr.buildSignificanceSection(&b, summary.Summary.TTest)
	return b.String()
}

func (mr *MarkdownReporter) buildHeader(b *strings.Builder, title string) {
	fmt.Fprintf(b, "# %s\n\n", title)
	fmt.Fprintf(b, "Generated: %s\n\n", mr.now().Format(time.RFC3339))
}

func (mr *MarkdownReporter) buildOverview(b *strings.Builder, summary *Summary) {
	b.WriteString("## Overview\n\n")
	fmt.Fprintf(b, "- Records: %d\n", summary.Records)
	fmt.Fprintf(b, "- Score records: %d parsed, %d unparsed (unparsed excluded from all means)\n",
		summary.Parsed, summary.Unparsed)
	fmt.Fprintf(b, "- Reflective lift: %.1f%% (mean overall / 10)\n\n", summary.LiftPercent)
}

func (mr *MarkdownReporter) buildDimensionTable(b *strings.Builder, summary *Summary) {
	b.WriteString("## Mean Scores by Dimension\n\n")
	b.WriteString("| Dimension | Mean | StdDev | Parsed | Unparsed |\n")
	b.WriteString("|-----------|------|--------|--------|----------|\n")
	for _, dim := range Dimensions {
		d := summary.Dimensions[dim]
		fmt.Fprintf(b, "| %s | %.2f | %.2f | %d | %d |\n", dim, d.Mean, d.StdDev, d.Parsed, d.Unparsed)
	}
	b.WriteString("\n")
}

func (mr *MarkdownReporter) buildGroupTable(b *strings.Builder, title string, groups map[string]GroupStats) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(groups) == 0 {
		b.WriteString("No scored records.\n\n")
		return
	}
	b.WriteString("| ID | Mean Overall | Parsed | Unparsed |\n")
	b.WriteString("|----|--------------|--------|----------|\n")
	for _, id := range sortedKeys(groups) {
		g := groups[id]
		fmt.Fprintf(b, "| %s | %.2f | %d | %d |\n", id, g.MeanOverall, g.Parsed, g.Unparsed)
	}
	b.WriteString("\n")
}

func (mr *MarkdownReporter) buildMatrix(b *strings.Builder, summary *Summary) {
	b.WriteString("## Model x Task Overall Means\n\n")
	if len(summary.ModelTaskOverall) == 0 {
		b.WriteString("No scored records.\n\n")
		return
	}

	taskSet := make(map[string]struct{})
	for _, row := range summary.ModelTaskOverall {
		for taskID := range row {
			taskSet[taskID] = struct{}{}
		}
	}
	taskIDs := make([]string, 0, len(taskSet))
	for id := range taskSet {
		taskIDs = append(taskIDs, id)
	}
	sort.Strings(taskIDs)

	fmt.Fprintf(b, "| Model | %s |\n", strings.Join(taskIDs, " | "))
	b.WriteString("|-------|" + strings.Repeat("------|", len(taskIDs)) + "\n")
	for _, modelID := range sortedKeys(summary.ModelTaskOverall) {
		row := summary.ModelTaskOverall[modelID]
		cells := make([]string, len(taskIDs))
		for i, taskID := range taskIDs {
			if v, ok := row[taskID]; ok {
				cells[i] = fmt.Sprintf("%.2f", v)
			} else {
				cells[i] = "-"
			}
		}
		fmt.Fprintf(b, "| %s | %s |\n", modelID, strings.Join(cells, " | "))
	}
	b.WriteString("\n")
}

func (mr *MarkdownReporter) buildRevisionSection(b *strings.Builder, rev *RevisionStats) {
	b.WriteString("## Revision Magnitude\n\n")
	if rev == nil || rev.Pairs == 0 {
		b.WriteString("No revision pairs.\n\n")
		return
	}
	fmt.Fprintf(b, "- Pairs: %d\n", rev.Pairs)
	fmt.Fprintf(b, "- Mean edit distance: %.1f\n", rev.MeanLevenshtein)
	fmt.Fprintf(b, "- Mean similarity: %.2f\n\n", rev.MeanSimilarity)
}

func (mr *MarkdownReporter) buildSignificanceSection(b *strings.Builder, tt *TTestResult) {
	b.WriteString("## Significance vs Neutral Midpoint\n\n")
	if tt == nil {
		b.WriteString("Not enough scored records for a t-test.\n\n")
		return
	}
	fmt.Fprintf(b, "- n = %d, mean = %.2f, midpoint = %.1f\n", tt.N, tt.Mean, Midpoint)
	fmt.Fprintf(b, "- t = %.3f (df = %.0f), p = %.4f\n\n", tt.TStat, tt.DF, tt.PValue)
}

func (mr *MarkdownReporter) buildFinalsSection(b *strings.Builder, finals map[string]FinalComparison) {
	b.WriteString("## Final Round Comparison\n\n")
	if len(finals) == 0 {
		b.WriteString("No completed units.\n\n")
		return
	}
	b.WriteString("| Model | Tasks | Mean Overall | Parsed | Unparsed |\n")
	b.WriteString("|-------|-------|--------------|--------|----------|\n")
	for _, id := range sortedKeys(finals) {
		f := finals[id]
		fmt.Fprintf(b, "| %s (%s) | %d | %.2f | %d | %d |\n", id, f.ModelName, f.Tasks, f.MeanOverall, f.Parsed, f.Unparsed)
	}
	b.WriteString("\n")
}
