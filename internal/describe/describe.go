// Package describe computes the descriptive statistics of a single numeric
// sample: position, quantiles, dispersion, shape and IQR outliers.
package describe

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/statloom-cli/internal/options"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrEmptySample is returned when there is nothing to describe.
	ErrEmptySample = errors.New("empty sample")
	// ErrPercentileRange is returned for percentile orders outside [0, 100].
	ErrPercentileRange = errors.New("percentile order out of range [0, 100]")
)

// Shape labels.
const (
	SkewPositive  = "positive"
	SkewNegative  = "negative"
	SkewSymmetric = "symmetric"

	Leptokurtic = "leptokurtic"
	Platykurtic = "platykurtic"
	Mesokurtic  = "mesokurtic"
)

// Quantile is a named percentile of the sample, e.g. P10 or D3.
type Quantile struct {
	Label string  `json:"label" yaml:"label"`
	Order float64 `json:"order" yaml:"order"` // percent, 0..100
	Value float64 `json:"value" yaml:"value"`
}

// Summary is the full descriptive profile of a sample.
type Summary struct {
	N      int       `json:"n" yaml:"n"`
	Sum    float64   `json:"sum" yaml:"sum"`
	Mean   float64   `json:"mean" yaml:"mean"`
	Median float64   `json:"median" yaml:"median"`
	Modes  []float64 `json:"modes" yaml:"modes"` // empty when every value is unique

	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Range float64 `json:"range" yaml:"range"`

	Q1          float64    `json:"q1" yaml:"q1"`
	Q3          float64    `json:"q3" yaml:"q3"`
	IQR         float64    `json:"iqr" yaml:"iqr"`
	FenceFactor float64    `json:"fence_factor" yaml:"fence_factor"`
	LowerFence  float64    `json:"lower_fence" yaml:"lower_fence"`
	UpperFence  float64    `json:"upper_fence" yaml:"upper_fence"`
	Outliers    []float64  `json:"outliers" yaml:"outliers"` // input order
	Percentiles []Quantile `json:"percentiles" yaml:"percentiles"`
	Deciles     []Quantile `json:"deciles" yaml:"deciles"`

	MeanAbsDev float64 `json:"mean_abs_dev" yaml:"mean_abs_dev"`
	Variance   float64 `json:"variance" yaml:"variance"` // sample, n-1
	StdDev     float64 `json:"std_dev" yaml:"std_dev"`
	StdErr     float64 `json:"std_err" yaml:"std_err"`
	CV         float64 `json:"cv_percent" yaml:"cv_percent"`

	Skewness      float64 `json:"skewness" yaml:"skewness"`
	SkewShape     string  `json:"skew_shape" yaml:"skew_shape"`
	Kurtosis      float64 `json:"excess_kurtosis" yaml:"excess_kurtosis"`
	KurtosisShape string  `json:"kurtosis_shape" yaml:"kurtosis_shape"`

	sorted []float64
}

// Sorted returns the sample in ascending order.
func (s *Summary) Sorted() []float64 { return s.sorted }

type config struct {
	fence       float64
	percentiles []float64
	deciles     []int
	band        float64
}

// Option configures Describe.
type Option = options.Option[*config]

// WithFenceFactor sets the IQR multiplier for the outlier fences (default 1.5).
func WithFenceFactor(f float64) Option {
	return options.New(func(c *config) error {
		if !(f > 0) || math.IsInf(f, 0) {
			return fmt.Errorf("fence factor must be positive, got %g", f)
		}
		c.fence = f
		return nil
	})
}

// WithPercentiles replaces the extra percentile orders reported (default 10, 20, 80, 90).
func WithPercentiles(ps ...float64) Option {
	return options.New(func(c *config) error {
		for _, p := range ps {
			if p < 0 || p > 100 || math.IsNaN(p) {
				return fmt.Errorf("%w: %g", ErrPercentileRange, p)
			}
		}
		c.percentiles = append([]float64(nil), ps...)
		return nil
	})
}

// WithDeciles replaces the decile orders reported (default 3, 4, 6, 7).
func WithDeciles(ds ...int) Option {
	return options.New(func(c *config) error {
		for _, d := range ds {
			if d < 1 || d > 9 {
				return fmt.Errorf("decile order must be between 1 and 9, got %d", d)
			}
		}
		c.deciles = append([]int(nil), ds...)
		return nil
	})
}

// WithShapeBand sets the half-width of the band around zero inside which a
// distribution is called symmetric or mesokurtic (default 0.5).
func WithShapeBand(b float64) Option {
	return options.New(func(c *config) error {
		if b < 0 || math.IsNaN(b) {
			return fmt.Errorf("shape band must be non-negative, got %g", b)
		}
		c.band = b
		return nil
	})
}

// Describe profiles values. The input is not modified.
func Describe(values []float64, opts ...Option) (*Summary, error) {
	cfg := &config{
		fence:       1.5,
		percentiles: []float64{10, 20, 80, 90},
		deciles:     []int{3, 4, 6, 7},
		band:        0.5,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}
	n := len(values)
	if n == 0 {
		return nil, ErrEmptySample
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("value %d is not finite", i)
		}
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	s := &Summary{N: n, sorted: sorted, FenceFactor: cfg.fence}
	for _, v := range values {
		s.Sum += v
	}
	s.Mean = stat.Mean(values, nil)
	s.Median = mustPercentile(sorted, 50)
	s.Modes = Modes(values)
	s.Min, s.Max = sorted[0], sorted[n-1]
	s.Range = s.Max - s.Min

	s.Q1 = mustPercentile(sorted, 25)
	s.Q3 = mustPercentile(sorted, 75)
	s.IQR = s.Q3 - s.Q1
	s.LowerFence = s.Q1 - cfg.fence*s.IQR
	s.UpperFence = s.Q3 + cfg.fence*s.IQR
	for _, v := range values {
		if v < s.LowerFence || v > s.UpperFence {
			s.Outliers = append(s.Outliers, v)
		}
	}
	for _, p := range cfg.percentiles {
		s.Percentiles = append(s.Percentiles, Quantile{Label: fmt.Sprintf("P%g", p), Order: p, Value: mustPercentile(sorted, p)})
	}
	for _, d := range cfg.deciles {
		p := float64(d * 10)
		s.Deciles = append(s.Deciles, Quantile{Label: fmt.Sprintf("D%d", d), Order: p, Value: mustPercentile(sorted, p)})
	}

	for _, v := range values {
		s.MeanAbsDev += math.Abs(v - s.Mean)
	}
	s.MeanAbsDev /= float64(n)
	if n > 1 {
		s.Variance = stat.Variance(values, nil)
		s.StdDev = math.Sqrt(s.Variance)
		s.StdErr = s.StdDev / math.Sqrt(float64(n))
	}
	if s.Mean != 0 {
		s.CV = s.StdDev / s.Mean * 100
	}

	if s.StdDev > 0 {
		if n >= 3 {
			s.Skewness = stat.Skew(values, nil)
		}
		if n >= 4 {
			s.Kurtosis = stat.ExKurtosis(values, nil)
		}
	}
	s.SkewShape = SkewLabel(s.Skewness, cfg.band)
	s.KurtosisShape = KurtosisLabel(s.Kurtosis, cfg.band)
	return s, nil
}

// Percentile returns the p-th percentile of an ascending slice by linear
// interpolation at position (n-1)·p/100.
func Percentile(sorted []float64, p float64) (float64, error) {
	if len(sorted) == 0 {
		return 0, ErrEmptySample
	}
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, fmt.Errorf("%w: %g", ErrPercentileRange, p)
	}
	pos := float64(len(sorted)-1) * p / 100
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1], nil
	}
	frac := pos - float64(lo)
	if frac == 0 {
		return sorted[lo], nil
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo]), nil
}

func mustPercentile(sorted []float64, p float64) float64 {
	v, err := Percentile(sorted, p)
	if err != nil {
		panic(err)
	}
	return v
}

// Modes returns every value that reaches the highest frequency, ascending.
// It returns nil when all values are distinct.
func Modes(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	counts := make(map[float64]int, len(values))
	best := 0
	for _, v := range values {
		counts[v]++
		if counts[v] > best {
			best = counts[v]
		}
	}
	if best == 1 {
		return nil
	}
	var out []float64
	for v, c := range counts {
		if c == best {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// SkewLabel classifies a skewness coefficient.
func SkewLabel(g1, band float64) string {
	switch {
	case g1 > band:
		return SkewPositive
	case g1 < -band:
		return SkewNegative
	}
	return SkewSymmetric
}

// KurtosisLabel classifies an excess kurtosis coefficient.
func KurtosisLabel(g2, band float64) string {
	switch {
	case g2 > band:
		return Leptokurtic
	case g2 < -band:
		return Platykurtic
	}
	return Mesokurtic
}
