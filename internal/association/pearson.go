package association

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/statloom-cli/internal/inference"
	"github.com/KaramelBytes/statloom-cli/internal/options"
	"gonum.org/v1/gonum/stat"
)

// Strength labels for |r|.
const (
	Strong   = "strong"
	Moderate = "moderate"
	Weak     = "weak"
	None     = "none"
)

// DegenerateError reports a series with zero variance, for which the
// correlation coefficient is undefined.
type DegenerateError struct {
	Name string
}

func (e *DegenerateError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("correlation undefined: %q has zero variance", e.Name)
	}
	return "correlation undefined: a series has zero variance"
}

// Correlation is a Pearson product-moment correlation with its t test.
type Correlation struct {
	X         string  `json:"x" yaml:"x"`
	Y         string  `json:"y" yaml:"y"`
	N         int     `json:"n" yaml:"n"`
	R         float64 `json:"r" yaml:"r"`
	R2        float64 `json:"r_squared" yaml:"r_squared"`
	T         float64 `json:"t" yaml:"t"`
	DF        int     `json:"df" yaml:"df"`
	PValue    float64 `json:"p_value" yaml:"p_value"`
	Strength  string  `json:"strength" yaml:"strength"`
	Direction string  `json:"direction" yaml:"direction"`

	// Intermediate sums for narrated reports.
	MeanX   float64 `json:"mean_x" yaml:"mean_x"`
	MeanY   float64 `json:"mean_y" yaml:"mean_y"`
	SumDXDY float64 `json:"sum_dxdy" yaml:"sum_dxdy"`
	StdX    float64 `json:"std_x" yaml:"std_x"`
	StdY    float64 `json:"std_y" yaml:"std_y"`
}

type pearsonConfig struct {
	xName, yName     string
	strong, moderate float64
}

// PearsonOption configures Pearson and Matrix.
type PearsonOption = options.Option[*pearsonConfig]

// WithSeriesNames labels the two series.
func WithSeriesNames(x, y string) PearsonOption {
	return options.NoError(func(c *pearsonConfig) { c.xName, c.yName = x, y })
}

// WithThresholds sets the |r| cut-offs for strong and moderate correlation
// (defaults 0.7 and 0.3).
func WithThresholds(strong, moderate float64) PearsonOption {
	return options.New(func(c *pearsonConfig) error {
		if !(moderate > 0 && moderate < strong && strong <= 1) {
			return fmt.Errorf("thresholds must satisfy 0 < moderate < strong <= 1, got %g and %g", moderate, strong)
		}
		c.strong, c.moderate = strong, moderate
		return nil
	})
}

func newPearsonConfig(opts []PearsonOption) (*pearsonConfig, error) {
	cfg := &pearsonConfig{strong: 0.7, moderate: 0.3}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Pearson computes r = Σ(dx·dy) / ((n−1)·sx·sy) and its two-sided p-value from
// t = r·√((n−2)/(1−r²)) with n−2 degrees of freedom.
func Pearson(x, y []float64, opts ...PearsonOption) (*Correlation, error) {
	cfg, err := newPearsonConfig(opts)
	if err != nil {
		return nil, err
	}
	return pearson(x, y, cfg)
}

func pearson(x, y []float64, cfg *pearsonConfig) (*Correlation, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("correlation: series lengths differ (%d vs %d)", len(x), len(y))
	}
	n := len(x)
	if n < 3 {
		return nil, fmt.Errorf("correlation: need at least 3 pairs, got %d", n)
	}
	for i := 0; i < n; i++ {
		if !finite(x[i]) || !finite(y[i]) {
			return nil, fmt.Errorf("correlation: pair %d is not finite", i)
		}
	}
	c := &Correlation{X: cfg.xName, Y: cfg.yName, N: n, DF: n - 2}
	c.MeanX, c.StdX = stat.MeanStdDev(x, nil)
	c.MeanY, c.StdY = stat.MeanStdDev(y, nil)
	if c.StdX == 0 {
		return nil, &DegenerateError{Name: cfg.xName}
	}
	if c.StdY == 0 {
		return nil, &DegenerateError{Name: cfg.yName}
	}
	for i := 0; i < n; i++ {
		c.SumDXDY += (x[i] - c.MeanX) * (y[i] - c.MeanY)
	}
	r := c.SumDXDY / (float64(n-1) * c.StdX * c.StdY)
	c.R = math.Max(-1, math.Min(1, r))
	c.R2 = c.R * c.R
	if c.R2 >= 1 {
		c.T = math.Copysign(math.Inf(1), c.R)
	} else {
		c.T = c.R * math.Sqrt(float64(n-2)/(1-c.R2))
	}
	c.PValue = inference.TwoSidedT(c.T, float64(c.DF))
	c.Strength = StrengthLabel(c.R, cfg.strong, cfg.moderate)
	c.Direction = DirectionLabel(c.R)
	return c, nil
}

// StrengthLabel classifies |r| against the strong and moderate cut-offs.
func StrengthLabel(r, strong, moderate float64) string {
	a := math.Abs(r)
	switch {
	case a >= strong:
		return Strong
	case a >= moderate:
		return Moderate
	case a > 0:
		return Weak
	}
	return None
}

// DirectionLabel returns "positive", "negative" or "none".
func DirectionLabel(r float64) string {
	switch {
	case r > 0:
		return "positive"
	case r < 0:
		return "negative"
	}
	return None
}

// CorrMatrix is a symmetric matrix of pairwise Pearson coefficients.
type CorrMatrix struct {
	Columns []string    `json:"columns" yaml:"columns"`
	R       [][]float64 `json:"r" yaml:"r"`
	PValues [][]float64 `json:"p_values" yaml:"p_values"`
}

// Matrix correlates every pair of columns. columns[j] holds the values of
// names[j]; all columns must have the same length.
func Matrix(names []string, columns [][]float64, opts ...PearsonOption) (*CorrMatrix, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("correlation matrix: %d names for %d columns", len(names), len(columns))
	}
	if len(columns) < 2 {
		return nil, fmt.Errorf("correlation matrix: need at least 2 columns, got %d", len(columns))
	}
	cfg, err := newPearsonConfig(opts)
	if err != nil {
		return nil, err
	}
	k := len(columns)
	m := &CorrMatrix{Columns: names, R: grid(k, k), PValues: grid(k, k)}
	for i := 0; i < k; i++ {
		m.R[i][i] = 1
		for j := i + 1; j < k; j++ {
			pc := *cfg
			pc.xName, pc.yName = names[i], names[j]
			c, err := pearson(columns[i], columns[j], &pc)
			if err != nil {
				return nil, err
			}
			m.R[i][j], m.R[j][i] = c.R, c.R
			m.PValues[i][j], m.PValues[j][i] = c.PValue, c.PValue
		}
	}
	return m, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
