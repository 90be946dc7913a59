package report

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// TTestResult is a one-sample t-test of overall scores against Midpoint.
type TTestResult struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	TStat  float64 `json:"t_stat"`
	DF     float64 `json:"df"`
	PValue float64 `json:"p_value"`
}

// TTestAgainstMidpoint tests whether overall scores differ from the
// neutral midpoint. Returns nil when fewer than two values exist or the
// sample has no variance, since the statistic is undefined there.
func TTestAgainstMidpoint(values []float64) *TTestResult {
	n := len(values)
	if n < 2 {
		return nil
	}

	mean := meanOrZero(values)
	sd := stdDevOrZero(values)
	if sd == 0 {
		return nil
	}

	t := (mean - Midpoint) / (sd / math.Sqrt(float64(n)))
	df := float64(n - 1)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))

	return &TTestResult{N: n, Mean: mean, TStat: t, DF: df, PValue: p}
}
