package ols

import (
	"fmt"
	"strings"
)

// Solution holds the estimation output of a regression: everything that can
// be computed once XᵀX has been inverted, before any variance estimate.
//
// Coefficient-shaped slices have length K+1 and start with the intercept.
// Observation-shaped slices have length N in input order.
type Solution struct {
	N int `json:"n" yaml:"n"`
	K int `json:"k" yaml:"k"`

	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
	Fitted       []float64 `json:"fitted" yaml:"fitted"`
	Residuals    []float64 `json:"residuals" yaml:"residuals"`

	SST      float64 `json:"sst" yaml:"sst"`
	SSR      float64 `json:"ssr" yaml:"ssr"`
	SSE      float64 `json:"sse" yaml:"sse"`
	RSquared float64 `json:"r_squared" yaml:"r_squared"`
	// Exact is set when the residuals vanish up to rounding. They are then
	// reported as zero, so MSE is 0 and t and F are not finite.
	Exact bool `json:"exact" yaml:"exact"`

	// Intermediate products, exposed for reports that narrate the computation.
	Gram        [][]float64 `json:"gram" yaml:"gram"`
	GramInverse [][]float64 `json:"gram_inverse" yaml:"gram_inverse"`
	XtY         []float64   `json:"xty" yaml:"xty"`
}

// Result is a complete OLS fit. Statistics can be non-finite for a perfect fit
// (MSE = 0 gives infinite t and F); that is reported as is.
type Result struct {
	Solution `yaml:",inline"`

	StdErrors   []float64   `json:"std_errors" yaml:"std_errors"`
	TStats      []float64   `json:"t_stats" yaml:"t_stats"`
	Covariance  [][]float64 `json:"covariance" yaml:"covariance"`
	AdjRSquared float64     `json:"adj_r_squared" yaml:"adj_r_squared"`
	MSE         float64     `json:"mse" yaml:"mse"`
	MSR         float64     `json:"msr" yaml:"msr"`
	FStat       float64     `json:"f_stat" yaml:"f_stat"`
	DFModel     int         `json:"df_model" yaml:"df_model"`
	DFResidual  int         `json:"df_residual" yaml:"df_residual"`
}

// Intercept returns β̂₀.
func (s *Solution) Intercept() float64 { return s.Coefficients[0] }

// Slopes returns β̂₁..β̂ₖ.
func (s *Solution) Slopes() []float64 { return s.Coefficients[1:] }

// Predict evaluates the fitted hyperplane at one point of k explanatory values.
func (s *Solution) Predict(x []float64) (float64, error) {
	if len(x) != s.K {
		return 0, &DimensionError{Reason: fmt.Sprintf("prediction needs %d values, got %d", s.K, len(x))}
	}
	v := s.Coefficients[0]
	for j, xj := range x {
		v += s.Coefficients[j+1] * xj
	}
	return v, nil
}

// String renders a compact one-block summary, mostly for logs and debugging.
func (r *Result) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("OLS n=%d k=%d R²=%.4f adjR²=%.4f F(%d,%d)=%.4g\n",
		r.N, r.K, r.RSquared, r.AdjRSquared, r.DFModel, r.DFResidual, r.FStat))
	for i, c := range r.Coefficients {
		name := "const"
		if i > 0 {
			name = fmt.Sprintf("x%d", i)
		}
		b.WriteString(fmt.Sprintf("  %-6s %12.6g  se=%-12.6g t=%.4g\n", name, c, r.StdErrors[i], r.TStats[i]))
	}
	return b.String()
}
