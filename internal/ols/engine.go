// Package ols fits multiple linear regression models by ordinary least squares
// using the closed-form normal equations.
//
// The engine is pure: it holds only its tolerance settings, never logs and never
// computes probabilities. p-values for the t and F statistics it returns are
// the job of the inference package.
package ols

import (
	"errors"
	"fmt"
	"math"

	"github.com/KaramelBytes/statloom-cli/internal/options"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultConditionLimit is the largest condition number of the equilibrated
// Gram matrix accepted before the fit is rejected as singular.
const DefaultConditionLimit = 1e12

// exactFitTolerance is the largest SSE/SST ratio still treated as a perfect
// fit. Below it the residuals are rounding error and are reported as zero.
const exactFitTolerance = 1e-20

// negligibleTolerance bounds |β̂ᵢ|·‖xᵢ‖/‖y‖ for a coefficient of an exact fit to
// count as zero, whose t statistic is then undefined rather than infinite.
const negligibleTolerance = 1e-10

// Engine fits OLS models. The zero value is not usable; construct with New.
// An Engine is safe for concurrent use.
type Engine struct {
	conditionLimit float64
}

// Option configures an Engine.
type Option = options.Option[*Engine]

// WithConditionLimit overrides DefaultConditionLimit.
func WithConditionLimit(limit float64) Option {
	return options.New(func(e *Engine) error {
		if !(limit > 1) || math.IsInf(limit, 0) {
			return fmt.Errorf("condition limit must be a finite number greater than 1, got %g", limit)
		}
		e.conditionLimit = limit
		return nil
	})
}

// New returns an Engine configured by opts.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{conditionLimit: DefaultConditionLimit}
	if err := options.Apply(e, opts...); err != nil {
		return nil, err
	}
	return e, nil
}

// ConditionLimit reports the configured singularity threshold.
func (e *Engine) ConditionLimit() float64 { return e.conditionLimit }

var defaultEngine = &Engine{conditionLimit: DefaultConditionLimit}

// Fit runs a full regression with the default engine. See Engine.Fit.
func Fit(y []float64, x [][]float64) (*Result, error) { return defaultEngine.Fit(y, x) }

// Estimate computes coefficients and goodness of fit with the default engine.
// See Engine.Estimate.
func Estimate(y []float64, x [][]float64) (*Solution, error) { return defaultEngine.Estimate(y, x) }

// Fit regresses y on the k columns of x, where x holds one row of k values per
// observation. It requires n > k+1 so that the residual variance can be estimated.
//
// Errors, in the order they are checked: *DimensionError for malformed input,
// *InsufficientDataError when n-k-1 <= 0, *SingularMatrixError when XᵀX cannot be
// inverted, *DegenerateResponseError when y is constant.
//
// When the residuals vanish up to rounding the result is marked Exact and its
// t and F statistics are not finite.
func (e *Engine) Fit(y []float64, x [][]float64) (*Result, error) {
	d, err := newDesign(y, x)
	if err != nil {
		return nil, err
	}
	df := d.n - d.k - 1
	if df <= 0 {
		return nil, &InsufficientDataError{N: d.n, K: d.k}
	}
	sol, inv, err := e.solve(d)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Solution:   *sol,
		DFModel:    d.k,
		DFResidual: df,
	}
	res.MSE = sol.SSE / float64(df)
	res.MSR = sol.SSR / float64(d.k)
	res.FStat = res.MSR / res.MSE
	res.AdjRSquared = 1 - (1-sol.RSquared)*float64(d.n-1)/float64(df)

	p := d.k + 1
	var cov mat.Dense
	cov.Scale(res.MSE, inv)
	res.Covariance = denseRows(&cov)
	res.StdErrors = make([]float64, p)
	res.TStats = make([]float64, p)
	yNorm := mat.Norm(d.y, 2)
	for i := 0; i < p; i++ {
		se := math.Sqrt(math.Max(cov.At(i, i), 0))
		res.StdErrors[i] = se
		b := sol.Coefficients[i]
		if sol.Exact && math.Abs(b)*math.Sqrt(sol.Gram[i][i]) <= negligibleTolerance*yNorm {
			res.TStats[i] = math.NaN()
			continue
		}
		res.TStats[i] = b / se
	}
	return res, nil
}

// Estimate performs the estimation half of a fit: coefficients, fitted values,
// residuals, sums of squares and R². It only requires n >= k+1, so exactly k+1
// points in general position are reproduced with zero residuals.
func (e *Engine) Estimate(y []float64, x [][]float64) (*Solution, error) {
	d, err := newDesign(y, x)
	if err != nil {
		return nil, err
	}
	if d.n < d.k+1 {
		return nil, &InsufficientDataError{N: d.n, K: d.k}
	}
	sol, _, err := e.solve(d)
	return sol, err
}

// FitDense is Fit for callers already holding gonum values. x must be n×k.
func (e *Engine) FitDense(y mat.Vector, x mat.Matrix) (*Result, error) {
	n, k := x.Dims()
	if y.Len() != n {
		return nil, &DimensionError{Reason: fmt.Sprintf("response has %d values, design has %d rows", y.Len(), n)}
	}
	ys := make([]float64, n)
	xs := make([][]float64, n)
	for i := 0; i < n; i++ {
		ys[i] = y.AtVec(i)
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			row[j] = x.At(i, j)
		}
		xs[i] = row
	}
	return e.Fit(ys, xs)
}

// design is the augmented matrix [1 | X] together with the response.
type design struct {
	n, k int
	x    *mat.Dense
	y    *mat.VecDense
}

func newDesign(y []float64, x [][]float64) (*design, error) {
	n := len(y)
	if n == 0 {
		return nil, &DimensionError{Reason: "no observations"}
	}
	if len(x) != n {
		return nil, &DimensionError{Reason: fmt.Sprintf("response has %d values, explanatory data has %d rows", n, len(x))}
	}
	k := len(x[0])
	if k == 0 {
		return nil, &DimensionError{Reason: "no explanatory variables"}
	}
	data := make([]float64, 0, n*(k+1))
	for i, row := range x {
		if len(row) != k {
			return nil, &DimensionError{Reason: fmt.Sprintf("row %d has %d values, want %d", i, len(row), k)}
		}
		if !finite(y[i]) {
			return nil, &DimensionError{Reason: fmt.Sprintf("response value %d is not finite", i)}
		}
		data = append(data, 1)
		for j, v := range row {
			if !finite(v) {
				return nil, &DimensionError{Reason: fmt.Sprintf("explanatory value at row %d column %d is not finite", i, j)}
			}
			data = append(data, v)
		}
	}
	yv := make([]float64, n)
	copy(yv, y)
	return &design{
		n: n,
		k: k,
		x: mat.NewDense(n, k+1, data),
		y: mat.NewVecDense(n, yv),
	}, nil
}

// solve runs the normal equations and returns the estimation results along
// with (XᵀX)⁻¹ for the covariance step.
func (e *Engine) solve(d *design) (*Solution, *mat.Dense, error) {
	var gram mat.Dense
	gram.Mul(d.x.T(), d.x)

	inv, err := e.invert(&gram)
	if err != nil {
		return nil, nil, err
	}

	var xty, beta, fitted, resid mat.VecDense
	xty.MulVec(d.x.T(), d.y)
	beta.MulVec(inv, &xty)
	fitted.MulVec(d.x, &beta)
	resid.SubVec(d.y, &fitted)

	ys := d.y.RawVector().Data
	if constant(ys) {
		return nil, nil, &DegenerateResponseError{Value: ys[0]}
	}
	mean := stat.Mean(ys, nil)
	var sst, ssr, sse, sumSq float64
	for i := 0; i < d.n; i++ {
		dy := ys[i] - mean
		df := fitted.AtVec(i) - mean
		r := resid.AtVec(i)
		sst += dy * dy
		ssr += df * df
		sse += r * r
		sumSq += ys[i] * ys[i]
	}
	// A spread within rounding error of the mean is no spread at all.
	const eps = 0x1p-52
	if sst <= float64(d.n)*eps*eps*sumSq {
		return nil, nil, &DegenerateResponseError{Value: mean}
	}

	exact := sse <= exactFitTolerance*sst
	if exact {
		fitted.CopyVec(d.y)
		resid.Zero()
		sse, ssr = 0, sst
	}

	sol := &Solution{
		N:            d.n,
		K:            d.k,
		Coefficients: vecData(&beta),
		Fitted:       vecData(&fitted),
		Residuals:    vecData(&resid),
		SST:          sst,
		SSR:          ssr,
		SSE:          sse,
		RSquared:     ssr / sst,
		Exact:        exact,
		Gram:         denseRows(&gram),
		GramInverse:  denseRows(inv),
		XtY:          vecData(&xty),
	}
	return sol, inv, nil
}

// invert inverts the Gram matrix after scaling it to unit diagonal, so the
// singularity test does not depend on the units of the explanatory variables.
func (e *Engine) invert(gram *mat.Dense) (*mat.Dense, error) {
	p, _ := gram.Dims()
	scale := make([]float64, p)
	for i := 0; i < p; i++ {
		d := gram.At(i, i)
		if d <= 0 {
			return nil, &SingularMatrixError{Condition: math.Inf(1), Column: i - 1}
		}
		scale[i] = 1 / math.Sqrt(d)
	}
	var eq mat.Dense
	eq.Apply(func(i, j int, v float64) float64 { return v * scale[i] * scale[j] }, gram)

	cond := mat.Cond(&eq, 2)
	if math.IsNaN(cond) || cond > e.conditionLimit {
		return nil, &SingularMatrixError{Condition: cond, Column: -1}
	}
	var eqInv mat.Dense
	if err := eqInv.Inverse(&eq); err != nil {
		var c mat.Condition
		if errors.As(err, &c) {
			return nil, &SingularMatrixError{Condition: float64(c), Column: -1}
		}
		return nil, &SingularMatrixError{Condition: math.Inf(1), Column: -1}
	}
	inv := mat.NewDense(p, p, nil)
	inv.Apply(func(i, j int, v float64) float64 { return v * scale[i] * scale[j] }, &eqInv)
	return inv, nil
}

func constant(ys []float64) bool {
	for _, v := range ys[1:] {
		if v != ys[0] {
			return false
		}
	}
	return true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func denseRows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = m.At(i, j)
		}
		out[i] = row
	}
	return out
}
