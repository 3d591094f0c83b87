package association

import (
	"math"

	"github.com/KaramelBytes/statloom-cli/internal/inference"
)

// ChiSquareResult is Pearson's chi-square test of independence.
type ChiSquareResult struct {
	Statistic float64 `json:"statistic" yaml:"statistic"`
	DOF       int     `json:"dof" yaml:"dof"`
	PValue    float64 `json:"p_value" yaml:"p_value"`
	// Corrected reports whether Yates' continuity correction was applied,
	// which happens for 2×2 tables (one degree of freedom).
	Corrected bool `json:"corrected" yaml:"corrected"`
	// Terms holds each cell's contribution (O−E)²/E, after any correction.
	Terms [][]float64 `json:"terms" yaml:"terms"`
	// LowExpected counts cells with an expected frequency below 5.
	LowExpected int `json:"low_expected" yaml:"low_expected"`
}

// ChiSquare tests the independence of the two variables of c.
func ChiSquare(c *Contingency) (*ChiSquareResult, error) {
	r, k := len(c.Rows), len(c.Cols)
	if r < 2 || k < 2 {
		return nil, ErrTableTooSmall
	}
	dof := (r - 1) * (k - 1)
	res := &ChiSquareResult{DOF: dof, Corrected: dof == 1, Terms: grid(r, k)}
	for i := 0; i < r; i++ {
		for j := 0; j < k; j++ {
			e := c.Expected[i][j]
			if e <= 0 {
				continue
			}
			if e < 5 {
				res.LowExpected++
			}
			o := float64(c.Observed[i][j])
			if res.Corrected {
				o = yates(o, e)
			}
			term := (o - e) * (o - e) / e
			res.Terms[i][j] = term
			res.Statistic += term
		}
	}
	res.PValue = inference.UpperChiSquare(res.Statistic, float64(dof))
	return res, nil
}

// yates moves an observed count half a unit towards its expected value, never
// past it.
func yates(o, e float64) float64 {
	diff := e - o
	step := math.Min(0.5, math.Abs(diff))
	if diff < 0 {
		return o - step
	}
	return o + step
}
