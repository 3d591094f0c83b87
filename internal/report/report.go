// Package report collects analysis results into a single document and renders
// it as Markdown, JSON or YAML.
package report

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/KaramelBytes/statloom-cli/internal/association"
	"github.com/KaramelBytes/statloom-cli/internal/describe"
	"github.com/KaramelBytes/statloom-cli/internal/inference"
	"github.com/KaramelBytes/statloom-cli/internal/ols"
	"github.com/KaramelBytes/statloom-cli/internal/options"
	"github.com/google/uuid"
)

// Kind identifies the analysis a Section carries.
type Kind string

const (
	KindSummary     Kind = "summary"
	KindFrequencies Kind = "frequencies"
	KindClasses     Kind = "classes"
	KindStemLeaf    Kind = "stem_leaf"
	KindCrosstab    Kind = "crosstab"
	KindChiSquare   Kind = "chi_square"
	KindCorrelation Kind = "correlation"
	KindMatrix      Kind = "matrix"
	KindRegression  Kind = "regression"
	KindEstimate    Kind = "exact_solution"
)

// Report is an ordered list of analysis sections about one data source.
type Report struct {
	ID        string    `json:"id" yaml:"id"`
	Source    string    `json:"source" yaml:"source"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Alpha     float64   `json:"alpha" yaml:"alpha"`
	Sections  []Section `json:"sections" yaml:"sections"`
	Notes     []string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Section is one analysis result. Exactly one payload field is set, matching Kind.
type Section struct {
	Kind  Kind   `json:"kind" yaml:"kind"`
	Title string `json:"title" yaml:"title"`

	Summary     *describe.Summary            `json:"summary,omitempty" yaml:"summary,omitempty"`
	Frequencies *describe.FrequencyTable     `json:"frequencies,omitempty" yaml:"frequencies,omitempty"`
	Classes     *describe.ClassTable         `json:"classes,omitempty" yaml:"classes,omitempty"`
	StemLeaf    *describe.StemLeaf           `json:"stem_leaf,omitempty" yaml:"stem_leaf,omitempty"`
	Crosstab    *association.Contingency     `json:"crosstab,omitempty" yaml:"crosstab,omitempty"`
	ChiSquare   *association.ChiSquareResult `json:"chi_square,omitempty" yaml:"chi_square,omitempty"`
	Correlation *association.Correlation     `json:"correlation,omitempty" yaml:"correlation,omitempty"`
	Matrix      *association.CorrMatrix      `json:"matrix,omitempty" yaml:"matrix,omitempty"`
	Regression  *Regression                  `json:"regression,omitempty" yaml:"regression,omitempty"`
	Estimate    *Estimate                    `json:"estimate,omitempty" yaml:"estimate,omitempty"`

	// Decision is the hypothesis test outcome for chi-square and correlation sections.
	Decision *inference.Decision `json:"decision,omitempty" yaml:"decision,omitempty"`
}

// Regression is an OLS fit with its variable names and significance tests.
type Regression struct {
	Response    string      `json:"response" yaml:"response"`
	Explanatory []string    `json:"explanatory" yaml:"explanatory"`
	Fit         *ols.Result `json:"fit" yaml:"fit"`

	// PValues holds the two-sided t-test p-value of each coefficient, intercept first.
	PValues      []float64            `json:"p_values" yaml:"p_values"`
	Coefficients []inference.Decision `json:"coefficient_tests" yaml:"coefficient_tests"`
	FPValue      float64              `json:"f_p_value" yaml:"f_p_value"`
	Model        inference.Decision   `json:"model_test" yaml:"model_test"`
	// CriticalT is the two-sided critical value at the report's alpha.
	CriticalT float64 `json:"critical_t" yaml:"critical_t"`
}

// Terms returns the coefficient names, "const" first.
func (r *Regression) Terms() []string {
	return append([]string{"const"}, r.Explanatory...)
}

// Estimate is a regression with exactly k+1 observations: the hyperplane
// through the points, with no residual degrees of freedom left for tests.
type Estimate struct {
	Response    string        `json:"response" yaml:"response"`
	Explanatory []string      `json:"explanatory" yaml:"explanatory"`
	Solution    *ols.Solution `json:"solution" yaml:"solution"`
}

// Terms returns the coefficient names, "const" first.
func (e *Estimate) Terms() []string {
	return append([]string{"const"}, e.Explanatory...)
}

// Builder assembles a Report. Add methods record the first error and become
// no-ops afterwards; Build returns it.
type Builder struct {
	rep *Report
	err error
	now func() time.Time
}

// Option configures a Builder.
type Option = options.Option[*Builder]

// WithAlpha sets the significance level used for decisions.
func WithAlpha(alpha float64) Option {
	return options.New(func(b *Builder) error {
		if !(alpha > 0 && alpha < 1) {
			return fmt.Errorf("alpha must be in (0,1), got %g", alpha)
		}
		b.rep.Alpha = alpha
		return nil
	})
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return options.NoError(func(b *Builder) { b.now = now })
}

// New starts a report about source.
func New(source string, opts ...Option) *Builder {
	b := &Builder{
		rep: &Report{ID: uuid.NewString(), Source: source, Alpha: inference.DefaultAlpha},
		now: time.Now,
	}
	b.err = options.Apply(b, opts...)
	return b
}

// Alpha returns the configured significance level.
func (b *Builder) Alpha() float64 { return b.rep.Alpha }

// Len reports how many sections were added so far.
func (b *Builder) Len() int { return len(b.rep.Sections) }

func (b *Builder) add(s Section) *Builder {
	if b.err == nil {
		b.rep.Sections = append(b.rep.Sections, s)
	}
	return b
}

func (b *Builder) fail(format string, args ...any) *Builder {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
	return b
}

// AddNote appends a free-form remark rendered at the end of the report.
func (b *Builder) AddNote(format string, args ...any) *Builder {
	if b.err == nil {
		b.rep.Notes = append(b.rep.Notes, fmt.Sprintf(format, args...))
	}
	return b
}

func (b *Builder) AddSummary(column string, s *describe.Summary) *Builder {
	if s == nil {
		return b.fail("summary of %s: nil result", column)
	}
	return b.add(Section{Kind: KindSummary, Title: column, Summary: s})
}

func (b *Builder) AddFrequencies(column string, f *describe.FrequencyTable) *Builder {
	if f == nil {
		return b.fail("frequencies of %s: nil result", column)
	}
	return b.add(Section{Kind: KindFrequencies, Title: column, Frequencies: f})
}

func (b *Builder) AddClasses(column string, c *describe.ClassTable) *Builder {
	if c == nil {
		return b.fail("classes of %s: nil result", column)
	}
	return b.add(Section{Kind: KindClasses, Title: column, Classes: c})
}

func (b *Builder) AddStemLeaf(column string, s *describe.StemLeaf) *Builder {
	if s == nil {
		return b.fail("stem-and-leaf of %s: nil result", column)
	}
	return b.add(Section{Kind: KindStemLeaf, Title: column, StemLeaf: s})
}

func (b *Builder) AddCrosstab(c *association.Contingency) *Builder {
	if c == nil {
		return b.fail("crosstab: nil result")
	}
	if c.Dropped > 0 {
		b.AddNote("%s × %s: %d observations outside the requested categories were left out", c.RowVar, c.ColVar, c.Dropped)
	}
	return b.add(Section{Kind: KindCrosstab, Title: crossTitle(c), Crosstab: c})
}

// AddChiSquare adds the independence test of c, decided at the report's alpha.
func (b *Builder) AddChiSquare(c *association.Contingency, res *association.ChiSquareResult) *Builder {
	if c == nil || res == nil {
		return b.fail("chi-square: nil result")
	}
	d := inference.Decide(res.PValue, b.rep.Alpha)
	if res.LowExpected > 0 {
		b.AddNote("%s: %d cells have expected frequency below 5; the chi-square approximation may be unreliable", crossTitle(c), res.LowExpected)
	}
	return b.add(Section{Kind: KindChiSquare, Title: crossTitle(c), Crosstab: c, ChiSquare: res, Decision: &d})
}

func (b *Builder) AddCorrelation(c *association.Correlation) *Builder {
	if c == nil {
		return b.fail("correlation: nil result")
	}
	d := inference.Decide(c.PValue, b.rep.Alpha)
	return b.add(Section{Kind: KindCorrelation, Title: c.X + " ~ " + c.Y, Correlation: c, Decision: &d})
}

func (b *Builder) AddMatrix(m *association.CorrMatrix) *Builder {
	if m == nil {
		return b.fail("correlation matrix: nil result")
	}
	return b.add(Section{Kind: KindMatrix, Title: strings.Join(m.Columns, ", "), Matrix: m})
}

// AddRegression adds an OLS fit and derives its p-values and decisions.
// explanatory must name the K columns of the fit in order.
func (b *Builder) AddRegression(response string, explanatory []string, fit *ols.Result) *Builder {
	if fit == nil {
		return b.fail("regression of %s: nil result", response)
	}
	if len(explanatory) != fit.K {
		return b.fail("regression of %s: %d names for %d explanatory variables", response, len(explanatory), fit.K)
	}
	reg := &Regression{
		Response:    response,
		Explanatory: append([]string(nil), explanatory...),
		Fit:         fit,
	}
	df := float64(fit.DFResidual)
	reg.PValues = make([]float64, len(fit.TStats))
	reg.Coefficients = make([]inference.Decision, len(fit.TStats))
	for i, t := range fit.TStats {
		reg.PValues[i] = inference.TwoSidedT(t, df)
		reg.Coefficients[i] = inference.Decide(reg.PValues[i], b.rep.Alpha)
	}
	reg.FPValue = inference.UpperF(fit.FStat, float64(fit.DFModel), df)
	reg.Model = inference.Decide(reg.FPValue, b.rep.Alpha)
	crit, err := inference.CriticalT(b.rep.Alpha, df)
	if err != nil {
		return b.fail("regression of %s: %w", response, err)
	}
	reg.CriticalT = crit
	if fit.Exact || math.IsInf(fit.FStat, 0) || math.IsNaN(fit.FStat) {
		b.AddNote("%s: the fit is exact (zero residual variance); t and F statistics are not finite", response)
	}
	title := response + " ~ " + strings.Join(explanatory, " + ")
	return b.add(Section{Kind: KindRegression, Title: title, Regression: reg})
}

// AddEstimate adds the exact solution of a regression that has as many
// observations as coefficients.
func (b *Builder) AddEstimate(response string, explanatory []string, sol *ols.Solution) *Builder {
	if sol == nil {
		return b.fail("regression of %s: nil solution", response)
	}
	if len(explanatory) != sol.K {
		return b.fail("regression of %s: %d names for %d explanatory variables", response, len(explanatory), sol.K)
	}
	b.AddNote("%s: %d observations for %d coefficients leave no residual degrees of freedom; standard errors and tests are not available",
		response, sol.N, sol.K+1)
	est := &Estimate{
		Response:    response,
		Explanatory: append([]string(nil), explanatory...),
		Solution:    sol,
	}
	title := response + " ~ " + strings.Join(explanatory, " + ")
	return b.add(Section{Kind: KindEstimate, Title: title, Estimate: est})
}

// ErrEmptyReport is returned by Build when no section was added.
var ErrEmptyReport = errors.New("report has no sections")

// Build finalizes the report.
func (b *Builder) Build() (*Report, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.rep.Sections) == 0 {
		return nil, ErrEmptyReport
	}
	b.rep.CreatedAt = b.now().UTC()
	return b.rep, nil
}

func crossTitle(c *association.Contingency) string {
	return c.RowVar + " × " + c.ColVar
}
