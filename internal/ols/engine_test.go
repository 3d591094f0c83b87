package ols

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const tol = 1e-9

func column(vals ...float64) [][]float64 {
	out := make([][]float64, len(vals))
	for i, v := range vals {
		out[i] = []float64{v}
	}
	return out
}

// Two explanatory variables that are not collinear with each other or the intercept.
var (
	twoVarX = [][]float64{{1, 2}, {2, 1}, {3, 4}, {4, 3}, {5, 6}, {6, 5}, {7, 9}}
	twoVarY = []float64{3.1, 3.9, 7.2, 7.8, 11.1, 11.9, 16.4}
)

func TestFit_PerfectLine(t *testing.T) {
	res, err := Fit([]float64{2, 4, 6, 8}, column(1, 2, 3, 4))
	require.NoError(t, err)

	assert.InDelta(t, 0.0, res.Intercept(), tol)
	assert.InDelta(t, 2.0, res.Slopes()[0], tol)
	assert.InDelta(t, 1.0, res.RSquared, tol)
	assert.Equal(t, 1, res.DFModel)
	assert.Equal(t, 2, res.DFResidual)
	for _, e := range res.Residuals {
		assert.Equal(t, 0.0, e)
	}

	// Zero residual variance: F is infinite, the slope's t is +Inf and the
	// intercept, zero up to rounding, has an undefined t.
	assert.True(t, res.Exact)
	assert.Equal(t, 0.0, res.SSE)
	assert.Equal(t, 0.0, res.MSE)
	assert.True(t, math.IsInf(res.FStat, 1))
	assert.True(t, math.IsNaN(res.TStats[0]))
	assert.True(t, math.IsInf(res.TStats[1], 1))
	assert.Equal(t, 1.0, res.AdjRSquared)
}

func TestFit_ExactFitWithFractionalData(t *testing.T) {
	res, err := Fit([]float64{0.3, 0.6, 0.9, 1.2, 1.5}, column(1, 2, 3, 4, 5))
	require.NoError(t, err)
	assert.True(t, res.Exact)
	assert.True(t, math.IsInf(res.FStat, 1))
	assert.True(t, math.IsInf(res.TStats[1], 1))
	assert.InDelta(t, 0.3, res.Slopes()[0], tol)
	assert.Equal(t, []float64{0.3, 0.6, 0.9, 1.2, 1.5}, res.Fitted)
}

func TestFit_NoisyResponse(t *testing.T) {
	res, err := Fit([]float64{1, 2, 1, 2}, column(1, 2, 3, 4))
	require.NoError(t, err)

	assert.InDelta(t, 1.0, res.Intercept(), tol)
	assert.InDelta(t, 0.2, res.Slopes()[0], tol)
	assert.InDelta(t, 1.0, res.SST, tol)
	assert.InDelta(t, 0.2, res.SSR, tol)
	assert.InDelta(t, 0.8, res.SSE, tol)
	assert.InDelta(t, 0.2, res.RSquared, tol)
	assert.InDelta(t, 1-0.8*3/2, res.AdjRSquared, tol)
	assert.InDelta(t, 0.4, res.MSE, tol)
	assert.InDelta(t, 0.2, res.MSR, tol)
	assert.InDelta(t, 0.5, res.FStat, tol)
	assert.False(t, math.IsInf(res.FStat, 0) || math.IsNaN(res.FStat))
	assert.False(t, res.Exact)

	// Var(slope) = MSE / Sxx = 0.4 / 5
	assert.InDelta(t, math.Sqrt(0.08), res.StdErrors[1], tol)
	assert.InDelta(t, 0.2/math.Sqrt(0.08), res.TStats[1], tol)
	assert.InDelta(t, 0.08, res.Covariance[1][1], tol)

	nonZero := 0
	for _, e := range res.Residuals {
		if math.Abs(e) > tol {
			nonZero++
		}
	}
	assert.Greater(t, nonZero, 0)

	pred, err := res.Predict([]float64{5})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, pred, tol)

	_, err = res.Predict([]float64{1, 2})
	var dimErr *DimensionError
	assert.ErrorAs(t, err, &dimErr)
}

func TestFit_SumOfSquaresDecomposition(t *testing.T) {
	res, err := Fit(twoVarY, twoVarX)
	require.NoError(t, err)
	assert.InDelta(t, res.SST, res.SSR+res.SSE, 1e-8)
	assert.Len(t, res.Coefficients, 3)
	assert.Len(t, res.Fitted, len(twoVarY))
	assert.Len(t, res.Gram, 3)
	assert.Len(t, res.XtY, 3)
	assert.InDelta(t, float64(len(twoVarY)), res.Gram[0][0], tol)

	// Gram times its inverse is the identity.
	g := mat.NewDense(3, 3, nil)
	gi := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			g.Set(i, j, res.Gram[i][j])
			gi.Set(i, j, res.GramInverse[i][j])
		}
	}
	var id mat.Dense
	id.Mul(g, gi)
	assert.True(t, mat.EqualApprox(&id, mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-8))
}

func TestFit_InsufficientData(t *testing.T) {
	_, err := Fit([]float64{1, 2, 3}, [][]float64{{1, 0}, {0, 1}, {1, 1}})
	var insuf *InsufficientDataError
	require.ErrorAs(t, err, &insuf)
	assert.Equal(t, 3, insuf.N)
	assert.Equal(t, 2, insuf.K)
}

func TestEstimate_ExactFitWithKPlusOnePoints(t *testing.T) {
	x := [][]float64{{1, 0}, {0, 1}, {1, 1}}
	y := []float64{1, 2, 4}

	sol, err := Estimate(y, x)
	require.NoError(t, err)
	for i, e := range sol.Residuals {
		assert.InDelta(t, 0.0, e, 1e-9, "residual %d", i)
		assert.InDelta(t, y[i], sol.Fitted[i], 1e-9)
	}
	assert.InDelta(t, 1.0, sol.RSquared, 1e-9)

	_, err = Estimate(y[:2], x[:2])
	var insuf *InsufficientDataError
	assert.ErrorAs(t, err, &insuf)
}

func TestFit_CollinearColumns(t *testing.T) {
	x := [][]float64{{1, 2}, {2, 4}, {3, 6}, {4, 8}, {5, 10}}
	_, err := Fit([]float64{1, 3, 2, 5, 4}, x)
	var sing *SingularMatrixError
	require.ErrorAs(t, err, &sing)
	assert.Equal(t, -1, sing.Column)
	assert.Contains(t, err.Error(), "singular matrix")
}

func TestFit_ConstantColumnIsCollinearWithIntercept(t *testing.T) {
	_, err := Fit([]float64{1, 3, 2, 5}, column(7, 7, 7, 7))
	var sing *SingularMatrixError
	assert.ErrorAs(t, err, &sing)
}

func TestFit_ZeroColumn(t *testing.T) {
	x := [][]float64{{1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}}
	_, err := Fit([]float64{1, 3, 2, 5, 4}, x)
	var sing *SingularMatrixError
	require.ErrorAs(t, err, &sing)
	assert.Equal(t, 1, sing.Column)
	assert.True(t, math.IsInf(sing.Condition, 1))
}

func TestFit_DegenerateResponse(t *testing.T) {
	_, err := Fit([]float64{5, 5, 5, 5}, column(1, 2, 3, 4))
	var degen *DegenerateResponseError
	require.ErrorAs(t, err, &degen)
	assert.Equal(t, 5.0, degen.Value)
}

func TestFit_DegenerateFractionalResponse(t *testing.T) {
	_, err := Fit([]float64{0.1, 0.1, 0.1, 0.1}, column(1, 2, 3, 4))
	var degen *DegenerateResponseError
	require.ErrorAs(t, err, &degen)
	assert.Equal(t, 0.1, degen.Value)

	// Values whose mean is inexact in binary must still be caught, whatever n.
	for _, v := range []float64{0.1, 0.7, 3.3} {
		for n := 3; n <= 9; n++ {
			y := make([]float64, n)
			xs := make([]float64, n)
			for i := range y {
				y[i] = v
				xs[i] = float64(i + 1)
			}
			_, err := Fit(y, column(xs...))
			assert.ErrorAs(t, err, &degen, "v=%g n=%d", v, n)
		}
	}
}

func TestFit_ErrorPrecedence(t *testing.T) {
	// Too few rows wins over a constant response.
	_, err := Fit([]float64{1, 1}, column(1, 2))
	var insuf *InsufficientDataError
	assert.ErrorAs(t, err, &insuf)

	// Singularity wins over a constant response.
	_, err = Fit([]float64{1, 1, 1, 1}, [][]float64{{1, 2}, {2, 4}, {3, 6}, {4, 8}})
	var sing *SingularMatrixError
	assert.ErrorAs(t, err, &sing)
}

func TestFit_InvalidInput(t *testing.T) {
	cases := []struct {
		name string
		y    []float64
		x    [][]float64
	}{
		{"empty", nil, nil},
		{"row mismatch", []float64{1, 2, 3}, column(1, 2)},
		{"no columns", []float64{1, 2, 3}, [][]float64{{}, {}, {}}},
		{"ragged", []float64{1, 2, 3, 4}, [][]float64{{1}, {2}, {3, 4}, {5}}},
		{"nan response", []float64{1, math.NaN(), 3, 4}, column(1, 2, 3, 4)},
		{"inf explanatory", []float64{1, 2, 3, 4}, column(1, math.Inf(1), 3, 4)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Fit(tc.y, tc.x)
			var dimErr *DimensionError
			assert.ErrorAs(t, err, &dimErr)
		})
	}
}

func TestFit_ColumnPermutationInvariance(t *testing.T) {
	base, err := Fit(twoVarY, twoVarX)
	require.NoError(t, err)

	swapped := make([][]float64, len(twoVarX))
	for i, row := range twoVarX {
		swapped[i] = []float64{row[1], row[0]}
	}
	perm, err := Fit(twoVarY, swapped)
	require.NoError(t, err)

	assert.InDelta(t, base.Coefficients[0], perm.Coefficients[0], 1e-9)
	assert.InDelta(t, base.Coefficients[1], perm.Coefficients[2], 1e-9)
	assert.InDelta(t, base.Coefficients[2], perm.Coefficients[1], 1e-9)
	assert.InDelta(t, base.RSquared, perm.RSquared, 1e-12)
	assert.InDelta(t, base.FStat, perm.FStat, 1e-8)
	for i := range base.Fitted {
		assert.InDelta(t, base.Fitted[i], perm.Fitted[i], 1e-9)
		assert.InDelta(t, base.Residuals[i], perm.Residuals[i], 1e-9)
	}
}

func TestFit_ColumnScaleInvariance(t *testing.T) {
	base, err := Fit(twoVarY, twoVarX)
	require.NoError(t, err)

	const c = 1e6
	scaled := make([][]float64, len(twoVarX))
	for i, row := range twoVarX {
		scaled[i] = []float64{row[0] * c, row[1]}
	}
	res, err := Fit(twoVarY, scaled)
	require.NoError(t, err)

	assert.InDelta(t, base.Coefficients[1]/c, res.Coefficients[1], 1e-12)
	assert.InDelta(t, base.Coefficients[2], res.Coefficients[2], 1e-7)
	assert.InDelta(t, base.RSquared, res.RSquared, 1e-9)
	assert.InDelta(t, base.TStats[1], res.TStats[1], 1e-6)
	assert.InDelta(t, base.TStats[2], res.TStats[2], 1e-6)
	for i := range base.Fitted {
		assert.InDelta(t, base.Fitted[i], res.Fitted[i], 1e-7)
		assert.InDelta(t, base.Residuals[i], res.Residuals[i], 1e-7)
	}
}

func TestEngine_ConditionLimit(t *testing.T) {
	_, err := New(WithConditionLimit(0.5))
	assert.Error(t, err)
	_, err = New(WithConditionLimit(math.Inf(1)))
	assert.Error(t, err)

	strict, err := New(WithConditionLimit(1.01))
	require.NoError(t, err)
	assert.Equal(t, 1.01, strict.ConditionLimit())

	_, err = strict.Fit([]float64{1, 2, 1, 2}, column(1, 2, 3, 4))
	var sing *SingularMatrixError
	require.ErrorAs(t, err, &sing)
	assert.Greater(t, sing.Condition, 1.01)
}

func TestEngine_FitDense(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	y := mat.NewVecDense(4, []float64{2, 4, 6, 8})
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	res, err := e.FitDense(y, x)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Slopes()[0], tol)

	_, err = e.FitDense(mat.NewVecDense(3, []float64{1, 2, 3}), x)
	var dimErr *DimensionError
	assert.ErrorAs(t, err, &dimErr)
}

func TestEngine_ConcurrentFits(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	slopes := make([]float64, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := float64(i + 1)
			res, err := e.Fit([]float64{m, 2 * m, 3*m + 0.5, 4 * m}, column(1, 2, 3, 4))
			errs[i] = err
			if err == nil {
				slopes[i] = res.Slopes()[0]
			}
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err)
		assert.Greater(t, slopes[i], 0.0)
	}
}

func TestResult_String(t *testing.T) {
	res, err := Fit([]float64{1, 2, 1, 2}, column(1, 2, 3, 4))
	require.NoError(t, err)
	s := res.String()
	assert.Contains(t, s, "n=4 k=1")
	assert.Contains(t, s, "const")
	assert.Contains(t, s, "x1")
}
