// Package report turns result documents into aggregated summaries and
// markdown reports. Unparsed score records never enter a mean; every mean
// is reported with its parsed/unparsed counts so the exclusion is visible.
package report

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/experiment"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/judge"
)

// Midpoint is the neutral point of the 1-10 judge scale; lift significance
// is tested against it.
const Midpoint = 5.5

// Dimensions lists score dimensions in report order.
var Dimensions = []string{"clarity", "coherence", "reasoning_depth", "safety", "overall"}

// DimensionStats is the mean of one dimension over parsed records, with
// the counts that explain the denominator.
type DimensionStats struct {
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Parsed   int     `json:"parsed"`
	Unparsed int     `json:"unparsed"`
}

// GroupStats summarizes overall scores within one grouping key.
type GroupStats struct {
	MeanOverall float64 `json:"mean_overall"`
	Parsed      int     `json:"parsed"`
	Unparsed    int     `json:"unparsed"`
}

// Summary is the aggregated view of one result document.
type Summary struct {
	Records     int                       `json:"records"`
	Parsed      int                       `json:"parsed"`
	Unparsed    int                       `json:"unparsed"`
	Dimensions  map[string]DimensionStats `json:"dimensions"`
	LiftPercent float64                   `json:"lift_percent"`
	PerModel    map[string]GroupStats     `json:"per_model"`
	PerTask     map[string]GroupStats     `json:"per_task"`
	PerJudge    map[string]GroupStats     `json:"per_judge"`

	// ModelTaskOverall is the model x task matrix of mean overall scores.
	ModelTaskOverall map[string]map[string]float64 `json:"model_task_overall"`

	Revision *RevisionStats `json:"revision,omitempty"`
	TTest    *TTestResult   `json:"t_test,omitempty"`
}

func dimensionValue(s judge.Score, dim string) float64 {
	switch dim {
	case "clarity":
		return float64(s.Clarity)
	case "coherence":
		return float64(s.Coherence)
	case "reasoning_depth":
		return float64(s.ReasoningDepth)
	case "safety":
		return float64(s.Safety)
	default:
		return float64(s.Overall)
	}
}

func meanOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}

func stdDevOrZero(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(values)
	if err != nil {
		return 0
	}
	return sd
}

type groupAccum struct {
	overalls []float64
	unparsed int
}

// Aggregate computes the single-turn summary. Records without any score
// record still count toward Records.
func Aggregate(records []*experiment.Record) *Summary {
	summary := &Summary{
		Records:          len(records),
		Dimensions:       make(map[string]DimensionStats, len(Dimensions)),
		PerModel:         make(map[string]GroupStats),
		PerTask:          make(map[string]GroupStats),
		PerJudge:         make(map[string]GroupStats),
		ModelTaskOverall: make(map[string]map[string]float64),
	}

	dims := make(map[string][]float64, len(Dimensions))
	models := make(map[string]*groupAccum)
	taskGroups := make(map[string]*groupAccum)
	judges := make(map[string]*groupAccum)
	var overallDiffs []float64
	var rawPairs [][2]string

	accum := func(m map[string]*groupAccum, key string) *groupAccum {
		g, ok := m[key]
		if !ok {
			g = &groupAccum{}
			m[key] = g
		}
		return g
	}

	for _, rec := range records {
		rawPairs = append(rawPairs, [2]string{rec.Conditions.CBT.Raw, rec.Conditions.CBT.Revised})
		for _, sr := range rec.Evaluation {
			score, ok := sr.Value.Score()
			if !ok {
				summary.Unparsed++
				accum(models, rec.ModelID).unparsed++
				accum(taskGroups, rec.TaskID).unparsed++
				accum(judges, sr.JudgeID).unparsed++
				continue
			}
			summary.Parsed++
			overall := float64(score.Overall)
			overallDiffs = append(overallDiffs, overall)
			accum(models, rec.ModelID).overalls = append(accum(models, rec.ModelID).overalls, overall)
			accum(taskGroups, rec.TaskID).overalls = append(accum(taskGroups, rec.TaskID).overalls, overall)
			accum(judges, sr.JudgeID).overalls = append(accum(judges, sr.JudgeID).overalls, overall)
			for _, dim := range Dimensions {
				dims[dim] = append(dims[dim], dimensionValue(score, dim))
			}

			cell, ok := summary.ModelTaskOverall[rec.ModelID]
			if !ok {
				cell = make(map[string]float64)
				summary.ModelTaskOverall[rec.ModelID] = cell
			}
			// Matrix cells accumulate; averaged below.
			cell[rec.TaskID] += overall
		}
	}

	// Average the matrix cells by parsed score count per (model, task).
	counts := make(map[string]map[string]int)
	for _, rec := range records {
		for _, sr := range rec.Evaluation {
			if !sr.Value.IsParsed() {
				continue
			}
			if counts[rec.ModelID] == nil {
				counts[rec.ModelID] = make(map[string]int)
			}
			counts[rec.ModelID][rec.TaskID]++
		}
	}
	for modelID, row := range summary.ModelTaskOverall {
		for taskID := range row {
			if n := counts[modelID][taskID]; n > 0 {
				row[taskID] /= float64(n)
			}
		}
	}

	for _, dim := range Dimensions {
		summary.Dimensions[dim] = DimensionStats{
			Mean:     meanOrZero(dims[dim]),
			StdDev:   stdDevOrZero(dims[dim]),
			Parsed:   summary.Parsed,
			Unparsed: summary.Unparsed,
		}
	}
	for id, g := range models {
		summary.PerModel[id] = GroupStats{MeanOverall: meanOrZero(g.overalls), Parsed: len(g.overalls), Unparsed: g.unparsed}
	}
	for id, g := range taskGroups {
		summary.PerTask[id] = GroupStats{MeanOverall: meanOrZero(g.overalls), Parsed: len(g.overalls), Unparsed: g.unparsed}
	}
	for id, g := range judges {
		summary.PerJudge[id] = GroupStats{MeanOverall: meanOrZero(g.overalls), Parsed: len(g.overalls), Unparsed: g.unparsed}
	}

	summary.LiftPercent = summary.Dimensions["overall"].Mean / 10 * 100
	summary.Revision = RevisionMagnitude(rawPairs)
	summary.TTest = TTestAgainstMidpoint(overallDiffs)
	return summary
}

// FinalComparison is one model's final-round summary in a longitudinal
// document.
type FinalComparison struct {
	ModelName   string  `json:"model_name"`
	Tasks       int     `json:"tasks"`
	MeanOverall float64 `json:"mean_overall"`
	Parsed      int     `json:"parsed"`
	Unparsed    int     `json:"unparsed"`
}

// LongitudinalSummary wraps the flattened single-turn style summary with
// per-model final comparisons.
type LongitudinalSummary struct {
	Summary *Summary                   `json:"summary"`
	Finals  map[string]FinalComparison `json:"finals"`
}

// AggregateLongitudinal flattens final rounds into synthetic records and
// aggregates them, adding per-model final comparisons.
func AggregateLongitudinal(results experiment.Results) *LongitudinalSummary {
	var flattened []*experiment.Record
	finals := make(map[string]FinalComparison, len(results))

	for _, modelID := range sortedKeys(results) {
		outcome := results[modelID]
		comparison := FinalComparison{ModelName: outcome.ModelName}
		var overalls []float64
		for taskID, task := range outcome.Tasks {
			comparison.Tasks++
			rec := &experiment.Record{
				ModelID:    modelID,
				ModelName:  outcome.ModelName,
				TaskID:     taskID,
				TaskPrompt: task.TaskPrompt,
				Evaluation: task.FinalEvaluation,
			}
			rec.Conditions.Baseline = task.BaselineFinal
			if n := len(task.CBTHistory); n > 0 {
				rec.Conditions.CBT.Raw = task.CBTHistory[n-1].Raw
			}
			rec.Conditions.CBT.Revised = task.CBTFinal
			flattened = append(flattened, rec)

			for _, sr := range task.FinalEvaluation {
				if score, ok := sr.Value.Score(); ok {
					comparison.Parsed++
					overalls = append(overalls, float64(score.Overall))
				} else {
					comparison.Unparsed++
				}
			}
		}
		comparison.MeanOverall = meanOrZero(overalls)
		finals[modelID] = comparison
	}

	return &LongitudinalSummary{Summary: Aggregate(flattened), Finals: finals}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
