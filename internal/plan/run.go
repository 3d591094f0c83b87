package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KaramelBytes/statloom-cli/internal/association"
	"github.com/KaramelBytes/statloom-cli/internal/dataset"
	"github.com/KaramelBytes/statloom-cli/internal/describe"
	"github.com/KaramelBytes/statloom-cli/internal/logging"
	"github.com/KaramelBytes/statloom-cli/internal/ols"
	"github.com/KaramelBytes/statloom-cli/internal/options"
	"github.com/KaramelBytes/statloom-cli/internal/report"
)

type runner struct {
	logger   *slog.Logger
	engine   *ols.Engine
	fence    float64
	strong   float64
	moderate float64
	table    *dataset.Table
	builder  *report.Builder
	order    map[string][]string
}

// Option configures Run.
type Option = options.Option[*runner]

func WithLogger(l *slog.Logger) Option {
	return options.NoError(func(r *runner) { r.logger = logging.OrDiscard(l) })
}

// WithEngine sets the OLS engine used by regress entries.
func WithEngine(e *ols.Engine) Option {
	return options.New(func(r *runner) error {
		if e == nil {
			return fmt.Errorf("nil engine")
		}
		r.engine = e
		return nil
	})
}

// WithFenceFactor sets the default IQR multiplier for describe entries that
// do not set their own.
func WithFenceFactor(f float64) Option {
	return options.NoError(func(r *runner) { r.fence = f })
}

// WithThresholds sets the strong and moderate |r| cut-offs for correlations.
func WithThresholds(strong, moderate float64) Option {
	return options.NoError(func(r *runner) { r.strong, r.moderate = strong, moderate })
}

// Run executes the analyses of p in order against t, adding their results to
// b. The plan's exclusions and labels must already be applied (see Prepare).
// It stops at the first failing entry and checks ctx between entries.
func Run(ctx context.Context, p *Plan, t *dataset.Table, b *report.Builder, opts ...Option) error {
	r := &runner{
		logger:   logging.Discard(),
		fence:    1.5,
		strong:   0.7,
		moderate: 0.3,
		table:    t,
		builder:  b,
		order:    p.Order,
	}
	if err := options.Apply(r, opts...); err != nil {
		return err
	}
	if r.engine == nil {
		e, err := ols.New()
		if err != nil {
			return err
		}
		r.engine = e
	}
	for i, a := range p.Analyses {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("analysis %d: %w", i+1, err)
		}
		kind := a.Kind()
		r.logger.Debug("running analysis", "index", i+1, "kind", kind, "source", p.Source)
		if err := r.run(a); err != nil {
			return fmt.Errorf("analysis %d (%s): %w", i+1, kind, err)
		}
	}
	r.logger.Info("plan complete", "source", p.Source, "analyses", len(p.Analyses))
	return nil
}

func (r *runner) run(a Analysis) error {
	switch {
	case a.Describe != nil:
		return r.describe(a.Describe)
	case a.Frequencies != nil:
		return r.frequencies(a.Frequencies.Column)
	case a.Classes != nil:
		return r.classes(a.Classes.Column)
	case a.Crosstab != nil:
		return r.crosstab(a.Crosstab)
	case a.Correlate != nil:
		return r.correlate(a.Correlate)
	case a.Matrix != nil:
		return r.matrix(a.Matrix.Columns)
	case a.Regress != nil:
		return r.regress(a.Regress)
	}
	return fmt.Errorf("empty analysis")
}

// numeric loads columns and records how many rows were unusable.
func (r *runner) numeric(names ...string) ([][]float64, error) {
	cols, dropped, err := r.table.Numeric(names...)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		r.logger.Debug("dropped rows with missing values", "columns", names, "dropped", dropped)
		r.builder.AddNote("%v: %d rows with missing or non-numeric values were dropped", names, dropped)
	}
	return cols, nil
}

func (r *runner) describe(s *DescribeStep) error {
	cols, err := r.numeric(s.Column)
	if err != nil {
		return err
	}
	fence := r.fence
	if s.Fence > 0 {
		fence = s.Fence
	}
	opts := []describe.Option{describe.WithFenceFactor(fence)}
	if len(s.Percentiles) > 0 {
		opts = append(opts, describe.WithPercentiles(s.Percentiles...))
	}
	if len(s.Deciles) > 0 {
		opts = append(opts, describe.WithDeciles(s.Deciles...))
	}
	sum, err := describe.Describe(cols[0], opts...)
	if err != nil {
		return err
	}
	r.builder.AddSummary(s.Column, sum)
	if s.StemScale > 0 {
		stem, err := describe.StemAndLeaf(cols[0], s.StemScale)
		if err != nil {
			return err
		}
		r.builder.AddStemLeaf(s.Column, stem)
	}
	return nil
}

func (r *runner) frequencies(column string) error {
	cols, err := r.numeric(column)
	if err != nil {
		return err
	}
	ft, err := describe.Frequencies(cols[0])
	if err != nil {
		return err
	}
	r.builder.AddFrequencies(column, ft)
	return nil
}

func (r *runner) classes(column string) error {
	cols, err := r.numeric(column)
	if err != nil {
		return err
	}
	ct, err := describe.Classes(cols[0])
	if err != nil {
		return err
	}
	r.builder.AddClasses(column, ct)
	return nil
}

func (r *runner) crosstab(s *CrosstabStep) error {
	cols, dropped, err := r.table.Strings(s.Rows, s.Cols)
	if err != nil {
		return err
	}
	if dropped > 0 {
		r.builder.AddNote("%s × %s: %d rows with missing categories were dropped", s.Rows, s.Cols, dropped)
	}
	opts := []association.CrosstabOption{association.WithNames(s.Rows, s.Cols)}
	if order := r.orderFor(s.Rows, s.RowOrder); len(order) > 0 {
		opts = append(opts, association.WithRowOrder(order...))
	}
	if order := r.orderFor(s.Cols, s.ColOrder); len(order) > 0 {
		opts = append(opts, association.WithColOrder(order...))
	}
	ct, err := association.Crosstab(cols[0], cols[1], opts...)
	if err != nil {
		return err
	}
	chi, err := association.ChiSquare(ct)
	if err != nil {
		return err
	}
	r.builder.AddCrosstab(ct).AddChiSquare(ct, chi)
	return nil
}

// orderFor prefers the entry's own order over the plan-wide one for column.
func (r *runner) orderFor(column string, own []string) []string {
	if len(own) > 0 {
		return own
	}
	return r.order[column]
}

func (r *runner) correlate(s *CorrelateStep) error {
	for _, pair := range s.Pairs {
		cols, err := r.numeric(pair[0], pair[1])
		if err != nil {
			return err
		}
		c, err := association.Pearson(cols[0], cols[1],
			association.WithSeriesNames(pair[0], pair[1]),
			association.WithThresholds(r.strong, r.moderate))
		if err != nil {
			return fmt.Errorf("%s ~ %s: %w", pair[0], pair[1], err)
		}
		r.builder.AddCorrelation(c)
	}
	return nil
}

func (r *runner) matrix(columns []string) error {
	cols, err := r.numeric(columns...)
	if err != nil {
		return err
	}
	m, err := association.Matrix(columns, cols, association.WithThresholds(r.strong, r.moderate))
	if err != nil {
		return err
	}
	r.builder.AddMatrix(m)
	return nil
}

func (r *runner) regress(s *RegressStep) error {
	cols, err := r.numeric(append([]string{s.Response}, s.Explanatory...)...)
	if err != nil {
		return err
	}
	y := cols[0]
	x := make([][]float64, len(y))
	for i := range y {
		row := make([]float64, len(s.Explanatory))
		for j := range s.Explanatory {
			row[j] = cols[j+1][i]
		}
		x[i] = row
	}
	fit, err := r.engine.Fit(y, x)
	var insuf *ols.InsufficientDataError
	if errors.As(err, &insuf) && insuf.N == insuf.K+1 {
		sol, err := r.engine.Estimate(y, x)
		if err != nil {
			return err
		}
		r.logger.Debug("regression solved exactly", "response", s.Response, "n", sol.N)
		r.builder.AddEstimate(s.Response, s.Explanatory, sol)
		return nil
	}
	if err != nil {
		return err
	}
	r.logger.Debug("regression fitted", "response", s.Response, "n", fit.N, "r_squared", fit.RSquared)
	r.builder.AddRegression(s.Response, s.Explanatory, fit)
	return nil
}
