package association

import (
	"math"
	"testing"

	"github.com/KaramelBytes/statloom-cli/internal/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrosstab(t *testing.T) {
	rows := []string{"a", "a", "b", "b", "b"}
	cols := []string{"x", "y", "x", "x", "y"}
	c, err := Crosstab(rows, cols, WithNames("group", "answer"))
	require.NoError(t, err)

	assert.Equal(t, "group", c.RowVar)
	assert.Equal(t, []string{"a", "b"}, c.Rows)
	assert.Equal(t, []string{"x", "y"}, c.Cols)
	assert.Equal(t, [][]int{{1, 1}, {2, 1}}, c.Observed)
	assert.Equal(t, []int{2, 3}, c.RowTotals)
	assert.Equal(t, []int{3, 2}, c.ColTotals)
	assert.Equal(t, 5, c.Total)

	assert.InDelta(t, 50.0, c.RowPercent[0][0], 1e-12)
	assert.InDelta(t, 100.0/3, c.ColPercent[0][0], 1e-12)
	assert.InDelta(t, 40.0, c.TotalPercent[1][0], 1e-12)
	assert.InDelta(t, 1.2, c.Expected[0][0], 1e-12)
	assert.InDelta(t, 0.8, c.Expected[0][1], 1e-12)

	_, err = Crosstab([]string{"a"}, nil)
	assert.Error(t, err)
}

func TestCrosstab_ExplicitOrder(t *testing.T) {
	rows := []string{"low", "high", "high", "mid", "zzz"}
	cols := []string{"no", "yes", "no", "yes", "no"}
	c, err := Crosstab(rows, cols,
		WithRowOrder("high", "mid", "low", "unused"),
		WithColOrder("yes", "no"))
	require.NoError(t, err)

	assert.Equal(t, []string{"high", "mid", "low"}, c.Rows)
	assert.Equal(t, []string{"yes", "no"}, c.Cols)
	assert.Equal(t, [][]int{{1, 1}, {1, 0}, {0, 1}}, c.Observed)
	assert.Equal(t, 1, c.Dropped)
	assert.Equal(t, 4, c.Total)

	_, err = Crosstab(rows, cols, WithRowOrder("a", "a"))
	assert.Error(t, err)
}

func TestChiSquare_YatesOnTwoByTwo(t *testing.T) {
	c, err := NewContingency([]string{"r1", "r2"}, []string{"c1", "c2"}, [][]int{{10, 20}, {20, 10}})
	require.NoError(t, err)
	res, err := ChiSquare(c)
	require.NoError(t, err)

	assert.True(t, res.Corrected)
	assert.Equal(t, 1, res.DOF)
	assert.InDelta(t, 5.4, res.Statistic, 1e-12)
	assert.InDelta(t, 1.35, res.Terms[0][0], 1e-12)
	assert.InDelta(t, inference.UpperChiSquare(5.4, 1), res.PValue, 1e-12)
	assert.InDelta(t, 0.0201, res.PValue, 1e-3)
	assert.Zero(t, res.LowExpected)
}

func TestChiSquare_CorrectionNeverOvershoots(t *testing.T) {
	c, err := Crosstab([]string{"a", "a", "b", "b", "b"}, []string{"x", "y", "x", "x", "y"})
	require.NoError(t, err)
	res, err := ChiSquare(c)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.Statistic, 1e-12)
	assert.InDelta(t, 1.0, res.PValue, 1e-12)
	assert.Equal(t, 4, res.LowExpected)
}

func TestChiSquare_Uncorrected(t *testing.T) {
	c, err := NewContingency([]string{"a", "b", "c"}, []string{"x", "y"}, [][]int{{10, 20}, {20, 10}, {15, 15}})
	require.NoError(t, err)
	res, err := ChiSquare(c)
	require.NoError(t, err)

	assert.False(t, res.Corrected)
	assert.Equal(t, 2, res.DOF)
	assert.InDelta(t, 100.0/15, res.Statistic, 1e-12)
	// χ²(2) survival is exp(-x/2).
	assert.InDelta(t, math.Exp(-100.0/30), res.PValue, 1e-9)
}

func TestChiSquare_TooSmall(t *testing.T) {
	c, err := Crosstab([]string{"a", "a"}, []string{"x", "y"})
	require.NoError(t, err)
	_, err = ChiSquare(c)
	assert.ErrorIs(t, err, ErrTableTooSmall)
}

func TestNewContingency_Validation(t *testing.T) {
	_, err := NewContingency([]string{"a"}, []string{"x"}, [][]int{{1}, {2}})
	assert.Error(t, err)
	_, err = NewContingency([]string{"a"}, []string{"x", "y"}, [][]int{{1}})
	assert.Error(t, err)
	_, err = NewContingency([]string{"a"}, []string{"x"}, [][]int{{-1}})
	assert.Error(t, err)
}

func TestPearson(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 5, 4, 5}
	c, err := Pearson(x, y, WithSeriesNames("x", "y"))
	require.NoError(t, err)

	wantR := 6 / math.Sqrt(60)
	wantT := wantR * math.Sqrt(3/(1-wantR*wantR))
	assert.InDelta(t, wantR, c.R, 1e-12)
	assert.InDelta(t, wantR*wantR, c.R2, 1e-12)
	assert.InDelta(t, wantT, c.T, 1e-9)
	assert.Equal(t, 3, c.DF)
	assert.InDelta(t, inference.TwoSidedT(wantT, 3), c.PValue, 1e-9)
	assert.Equal(t, Strong, c.Strength)
	assert.Equal(t, "positive", c.Direction)
	assert.InDelta(t, 6.0, c.SumDXDY, 1e-12)

	c, err = Pearson(x, y, WithThresholds(0.9, 0.5))
	require.NoError(t, err)
	assert.Equal(t, Moderate, c.Strength)
}

func TestPearson_PerfectNegative(t *testing.T) {
	c, err := Pearson([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, c.R, 1e-12)
	assert.Equal(t, "negative", c.Direction)
	assert.InDelta(t, 0.0, c.PValue, 1e-6)
}

func TestPearson_Errors(t *testing.T) {
	_, err := Pearson([]float64{1, 2, 3}, []float64{1, 2})
	assert.Error(t, err)
	_, err = Pearson([]float64{1, 2}, []float64{1, 2})
	assert.Error(t, err)
	_, err = Pearson([]float64{1, 2, 3}, []float64{1, 2, 3}, WithThresholds(0.3, 0.7))
	assert.Error(t, err)

	_, err = Pearson([]float64{1, 2, 3}, []float64{4, 4, 4}, WithSeriesNames("a", "b"))
	var degen *DegenerateError
	require.ErrorAs(t, err, &degen)
	assert.Equal(t, "b", degen.Name)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, Weak, StrengthLabel(-0.1, 0.7, 0.3))
	assert.Equal(t, None, StrengthLabel(0, 0.7, 0.3))
	assert.Equal(t, Moderate, StrengthLabel(0.3, 0.7, 0.3))
	assert.Equal(t, None, DirectionLabel(0))
}

func TestMatrix(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 5, 4, 5}
	c := []float64{5, 3, 4, 1, 2}
	m, err := Matrix([]string{"a", "b", "c"}, [][]float64{a, b, c})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 1.0, m.R[i][i])
		for j := 0; j < 3; j++ {
			assert.Equal(t, m.R[i][j], m.R[j][i])
		}
	}
	assert.InDelta(t, 6/math.Sqrt(60), m.R[0][1], 1e-12)

	_, err = Matrix([]string{"a", "flat"}, [][]float64{a, {1, 1, 1, 1, 1}})
	var degen *DegenerateError
	require.ErrorAs(t, err, &degen)
	assert.Equal(t, "flat", degen.Name)

	_, err = Matrix([]string{"a"}, [][]float64{a})
	assert.Error(t, err)
}
