// Package inference converts test statistics into probabilities using the
// Student t, Fisher F and chi-square distributions.
package inference

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultAlpha is the significance level used when none is configured.
const DefaultAlpha = 0.05

// TwoSidedT returns P(|T| >= |t|) for T ~ t(df).
func TwoSidedT(t float64, df float64) float64 {
	if math.IsNaN(t) || !(df > 0) {
		return math.NaN()
	}
	if math.IsInf(t, 0) {
		return 0
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return clamp(2 * dist.Survival(math.Abs(t)))
}

// UpperF returns P(F >= f) for F ~ F(d1, d2).
func UpperF(f float64, d1, d2 float64) float64 {
	if math.IsNaN(f) || !(d1 > 0) || !(d2 > 0) {
		return math.NaN()
	}
	if math.IsInf(f, 1) {
		return 0
	}
	if f <= 0 {
		return 1
	}
	dist := distuv.F{D1: d1, D2: d2}
	return clamp(dist.Survival(f))
}

// UpperChiSquare returns P(X >= x) for X ~ χ²(df).
func UpperChiSquare(x float64, df float64) float64 {
	if math.IsNaN(x) || !(df > 0) {
		return math.NaN()
	}
	if math.IsInf(x, 1) {
		return 0
	}
	if x <= 0 {
		return 1
	}
	dist := distuv.ChiSquared{K: df}
	return clamp(dist.Survival(x))
}

// CriticalT returns the two-sided critical value t* with P(|T| >= t*) = alpha.
func CriticalT(alpha, df float64) (float64, error) {
	if err := checkAlpha(alpha); err != nil {
		return 0, err
	}
	if !(df > 0) {
		return 0, fmt.Errorf("degrees of freedom must be positive, got %g", df)
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return dist.Quantile(1 - alpha/2), nil
}

// CriticalChiSquare returns x* with P(X >= x*) = alpha for X ~ χ²(df).
func CriticalChiSquare(alpha, df float64) (float64, error) {
	if err := checkAlpha(alpha); err != nil {
		return 0, err
	}
	if !(df > 0) {
		return 0, fmt.Errorf("degrees of freedom must be positive, got %g", df)
	}
	dist := distuv.ChiSquared{K: df}
	return dist.Quantile(1 - alpha), nil
}

// Decision is the outcome of comparing a p-value with a significance level.
type Decision struct {
	P      float64 `json:"p" yaml:"p"`
	Alpha  float64 `json:"alpha" yaml:"alpha"`
	Reject bool    `json:"reject" yaml:"reject"`
}

// Decide rejects the null hypothesis when p < alpha. A NaN p-value never rejects.
func Decide(p, alpha float64) Decision {
	return Decision{P: p, Alpha: alpha, Reject: p < alpha}
}

// String describes the decision in words, e.g. for report notes.
func (d Decision) String() string {
	if d.Reject {
		return fmt.Sprintf("reject H0 (p=%.4g < α=%g)", d.P, d.Alpha)
	}
	return fmt.Sprintf("fail to reject H0 (p=%.4g ≥ α=%g)", d.P, d.Alpha)
}

func checkAlpha(alpha float64) error {
	if !(alpha > 0 && alpha < 1) {
		return fmt.Errorf("alpha must be in (0, 1), got %g", alpha)
	}
	return nil
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
