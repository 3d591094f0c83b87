package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/statloom-cli/internal/association"
	"github.com/KaramelBytes/statloom-cli/internal/describe"
)

// RenderOptions controls number formatting and narration.
type RenderOptions struct {
	// Decimals is the number of decimal places printed for statistics.
	Decimals int
	// Verbose adds the intermediate steps of each computation.
	Verbose bool
}

// DefaultRenderOptions prints four decimals without narration.
func DefaultRenderOptions() RenderOptions { return RenderOptions{Decimals: 4} }

// maxNarratedRows caps the observation-level rows printed in verbose mode.
const maxNarratedRows = 10

type mdWriter struct {
	b   strings.Builder
	opt RenderOptions
}

func (w *mdWriter) printf(format string, args ...any) {
	w.b.WriteString(fmt.Sprintf(format, args...))
}

func (w *mdWriter) num(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	}
	return strconv.FormatFloat(v, 'f', w.opt.Decimals, 64)
}

// pval prints tiny p-values as an inequality instead of rounding them to zero.
func (w *mdWriter) pval(p float64) string {
	if math.IsNaN(p) {
		return "NaN"
	}
	floor := math.Pow(10, -float64(w.opt.Decimals))
	if p < floor {
		return "< " + strconv.FormatFloat(floor, 'f', w.opt.Decimals, 64)
	}
	return w.num(p)
}

func (w *mdWriter) pct(v float64) string { return w.num(v) + "%" }

func (w *mdWriter) list(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = w.num(v)
	}
	return strings.Join(parts, ", ")
}

func (w *mdWriter) tableHeader(cols ...string) {
	w.b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	w.b.WriteString("|" + strings.Repeat(" --- |", len(cols)) + "\n")
}

func (w *mdWriter) tableRow(cells ...string) {
	for i, c := range cells {
		cells[i] = safeVal(c)
	}
	w.b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func (w *mdWriter) matrix(label string, rows [][]float64, names []string) {
	w.printf("%s:\n", label)
	w.tableHeader(append([]string{""}, names...)...)
	for i, row := range rows {
		cells := []string{names[i]}
		for _, v := range row {
			cells = append(cells, w.num(v))
		}
		w.tableRow(cells...)
	}
}

// Markdown renders the report with one bracketed header per section.
func (r *Report) Markdown(opt RenderOptions) string {
	if opt.Decimals < 0 {
		opt.Decimals = 0
	}
	w := &mdWriter{opt: opt}
	w.b.WriteString("[REPORT]\n")
	w.printf("Source: %s\n", safeName(r.Source))
	if !r.CreatedAt.IsZero() {
		w.printf("Generated: %s\n", r.CreatedAt.Format(time.RFC3339))
	}
	w.printf("Significance level: α = %g\n", r.Alpha)
	for _, s := range r.Sections {
		w.b.WriteString("\n")
		switch s.Kind {
		case KindSummary:
			w.summary(s.Title, s.Summary)
		case KindFrequencies:
			w.frequencies(s.Title, s.Frequencies)
		case KindClasses:
			w.classes(s.Title, s.Classes)
		case KindStemLeaf:
			w.printf("[STEM-AND-LEAF: %s]\n", s.Title)
			if s.StemLeaf.Scale != 1 {
				w.printf("Values divided by %g\n", s.StemLeaf.Scale)
			}
			w.printf("```\n%s```\n", s.StemLeaf.String())
		case KindCrosstab:
			w.crosstab(s.Title, s.Crosstab)
		case KindChiSquare:
			w.chiSquare(s)
		case KindCorrelation:
			w.correlation(s)
		case KindMatrix:
			w.corrMatrix(s.Matrix)
		case KindRegression:
			w.regression(s.Title, s.Regression)
		case KindEstimate:
			w.estimate(s.Title, s.Estimate)
		}
	}
	if len(r.Notes) > 0 {
		w.b.WriteString("\n[NOTES]\n")
		for _, n := range r.Notes {
			w.printf("- %s\n", n)
		}
	}
	return w.b.String()
}

func (w *mdWriter) summary(title string, s *describe.Summary) {
	w.printf("[DESCRIPTIVE STATISTICS: %s]\n", title)
	w.printf("- n: %d\n", s.N)
	w.printf("- sum: %s\n", w.num(s.Sum))
	w.printf("- mean: %s\n", w.num(s.Mean))
	w.printf("- median: %s\n", w.num(s.Median))
	if len(s.Modes) == 0 {
		w.b.WriteString("- mode: none (all values unique)\n")
	} else {
		w.printf("- mode: %s\n", w.list(s.Modes))
	}
	w.printf("- min / max / range: %s / %s / %s\n", w.num(s.Min), w.num(s.Max), w.num(s.Range))
	w.printf("- Q1 / Q3 / IQR: %s / %s / %s\n", w.num(s.Q1), w.num(s.Q3), w.num(s.IQR))
	w.printf("- fences (%g × IQR): [%s, %s]\n", s.FenceFactor, w.num(s.LowerFence), w.num(s.UpperFence))
	if len(s.Outliers) == 0 {
		w.b.WriteString("- outliers: none\n")
	} else {
		w.printf("- outliers (%d): %s\n", len(s.Outliers), w.list(s.Outliers))
	}
	for _, q := range append(append([]describe.Quantile(nil), s.Percentiles...), s.Deciles...) {
		w.printf("- %s: %s\n", q.Label, w.num(q.Value))
	}
	w.printf("- mean absolute deviation: %s\n", w.num(s.MeanAbsDev))
	w.printf("- variance: %s\n", w.num(s.Variance))
	w.printf("- standard deviation: %s\n", w.num(s.StdDev))
	w.printf("- standard error: %s\n", w.num(s.StdErr))
	w.printf("- coefficient of variation: %s\n", w.pct(s.CV))
	w.printf("- skewness: %s (%s)\n", w.num(s.Skewness), s.SkewShape)
	w.printf("- excess kurtosis: %s (%s)\n", w.num(s.Kurtosis), s.KurtosisShape)
	if w.opt.Verbose {
		w.printf("Sorted sample: %s\n", w.list(s.Sorted()))
	}
}

func (w *mdWriter) frequencies(title string, f *describe.FrequencyTable) {
	w.printf("[FREQUENCIES: %s]\n", title)
	w.printf("n = %d\n", f.N)
	w.tableHeader("Value", "Count", "Relative", "Cumulative", "Cumulative relative")
	for _, r := range f.Rows {
		w.tableRow(strconv.FormatFloat(r.Value, 'g', -1, 64), strconv.Itoa(r.Count),
			w.pct(100*r.Relative), strconv.Itoa(r.Cumulative), w.pct(100*r.CumulativeRelative))
	}
}

func (w *mdWriter) classes(title string, c *describe.ClassTable) {
	w.printf("[CLASS DISTRIBUTION: %s]\n", title)
	w.printf("n = %d, Sturges k = %d, width = %s\n", c.N, c.K, w.num(c.Width))
	w.tableHeader("Class", "Midpoint", "Count", "Percent", "Cumulative", "Cumulative percent")
	for i, r := range c.Classes {
		closer := ")"
		if i == len(c.Classes)-1 {
			closer = "]"
		}
		w.tableRow(fmt.Sprintf("[%g, %g%s", r.Lower, r.Upper, closer), w.num(r.Midpoint), strconv.Itoa(r.Count),
			w.pct(r.Percent), strconv.Itoa(r.Cumulative), w.pct(r.CumulativePercent))
	}
}

func (w *mdWriter) crosstab(title string, c *association.Contingency) {
	w.printf("[CROSSTAB: %s]\n", title)
	w.b.WriteString("Observed:\n")
	w.tableHeader(append(append([]string{c.RowVar + " \\ " + c.ColVar}, c.Cols...), "Total")...)
	for i, row := range c.Observed {
		cells := []string{c.Rows[i]}
		for _, o := range row {
			cells = append(cells, strconv.Itoa(o))
		}
		w.tableRow(append(cells, strconv.Itoa(c.RowTotals[i]))...)
	}
	totals := []string{"Total"}
	for _, t := range c.ColTotals {
		totals = append(totals, strconv.Itoa(t))
	}
	w.tableRow(append(totals, strconv.Itoa(c.Total))...)

	w.percentTable("Row percent", c, c.RowPercent)
	w.percentTable("Column percent", c, c.ColPercent)
	w.percentTable("Percent of total", c, c.TotalPercent)
	if w.opt.Verbose {
		w.b.WriteString("\n")
		w.matrixLabeled("Expected (row total × column total / N)", c.Rows, c.Cols, c.Expected)
	}
}

func (w *mdWriter) percentTable(label string, c *association.Contingency, p [][]float64) {
	w.printf("\n%s:\n", label)
	w.tableHeader(append([]string{""}, c.Cols...)...)
	for i, row := range p {
		cells := []string{c.Rows[i]}
		for _, v := range row {
			cells = append(cells, w.pct(v))
		}
		w.tableRow(cells...)
	}
}

func (w *mdWriter) matrixLabeled(label string, rows, cols []string, m [][]float64) {
	w.printf("%s:\n", label)
	w.tableHeader(append([]string{""}, cols...)...)
	for i, row := range m {
		cells := []string{rows[i]}
		for _, v := range row {
			cells = append(cells, w.num(v))
		}
		w.tableRow(cells...)
	}
}

func (w *mdWriter) chiSquare(s Section) {
	res, c := s.ChiSquare, s.Crosstab
	w.printf("[CHI-SQUARE TEST: %s]\n", s.Title)
	w.printf("- H0: %s and %s are independent\n", c.RowVar, c.ColVar)
	w.printf("- χ² = %s, df = %d, p = %s\n", w.num(res.Statistic), res.DOF, w.pval(res.PValue))
	if res.Corrected {
		w.b.WriteString("- Yates continuity correction applied\n")
	}
	if res.LowExpected > 0 {
		w.printf("- cells with expected frequency < 5: %d\n", res.LowExpected)
	}
	w.printf("- decision: %s\n", s.Decision)
	if w.opt.Verbose {
		w.b.WriteString("\n")
		w.matrixLabeled("Expected", c.Rows, c.Cols, c.Expected)
		w.b.WriteString("\n")
		w.matrixLabeled("Cell contributions (O − E)² / E", c.Rows, c.Cols, res.Terms)
	}
}

func (w *mdWriter) correlation(s Section) {
	c := s.Correlation
	w.printf("[CORRELATION: %s]\n", s.Title)
	w.printf("- n: %d\n", c.N)
	w.printf("- r: %s (%s, %s)\n", w.num(c.R), c.Strength, c.Direction)
	w.printf("- r²: %s\n", w.num(c.R2))
	w.printf("- t = %s, df = %d, p = %s\n", w.num(c.T), c.DF, w.pval(c.PValue))
	w.printf("- decision: %s\n", s.Decision)
	if w.opt.Verbose {
		w.printf("Means: x̄ = %s, ȳ = %s\n", w.num(c.MeanX), w.num(c.MeanY))
		w.printf("Σ(x − x̄)(y − ȳ) = %s\n", w.num(c.SumDXDY))
		w.printf("s_x = %s, s_y = %s\n", w.num(c.StdX), w.num(c.StdY))
		w.printf("r = %s / (%d × %s × %s)\n", w.num(c.SumDXDY), c.N-1, w.num(c.StdX), w.num(c.StdY))
	}
}

func (w *mdWriter) corrMatrix(m *association.CorrMatrix) {
	w.b.WriteString("[CORRELATION MATRIX]\n")
	w.matrix("Pearson r", m.R, m.Columns)
	if w.opt.Verbose {
		w.b.WriteString("\n")
		w.matrix("p-values", m.PValues, m.Columns)
	}
}

func (w *mdWriter) estimate(title string, est *Estimate) {
	sol := est.Solution
	w.printf("[EXACT SOLUTION: %s]\n", title)
	w.printf("n = %d, explanatory variables = %d\n", sol.N, sol.K)
	w.tableHeader("Term", "Coefficient")
	for i, term := range est.Terms() {
		w.tableRow(term, w.num(sol.Coefficients[i]))
	}
	w.printf("R²: %s\n", w.num(sol.RSquared))
	if !w.opt.Verbose {
		return
	}
	terms := est.Terms()
	w.b.WriteString("\n")
	w.matrix("XᵀX", sol.Gram, terms)
	w.b.WriteString("\n")
	w.matrix("(XᵀX)⁻¹", sol.GramInverse, terms)
	w.printf("\nXᵀy: %s\n", w.list(sol.XtY))
	w.printf("β = (XᵀX)⁻¹ Xᵀy: %s\n", w.list(sol.Coefficients))
}

func (w *mdWriter) regression(title string, reg *Regression) {
	fit := reg.Fit
	w.printf("[REGRESSION: %s]\n", title)
	w.printf("n = %d, explanatory variables = %d\n", fit.N, fit.K)
	w.tableHeader("Term", "Coefficient", "Std. error", "t", "p-value", "Significant")
	for i, term := range reg.Terms() {
		sig := "no"
		if reg.Coefficients[i].Reject {
			sig = "yes"
		}
		w.tableRow(term, w.num(fit.Coefficients[i]), w.num(fit.StdErrors[i]), w.num(fit.TStats[i]), w.pval(reg.PValues[i]), sig)
	}
	w.printf("Critical t (two-sided, df = %d): %s\n", fit.DFResidual, w.num(reg.CriticalT))

	w.b.WriteString("\nModel fit:\n")
	w.printf("- R²: %s\n", w.num(fit.RSquared))
	w.printf("- adjusted R²: %s\n", w.num(fit.AdjRSquared))
	w.printf("- F(%d, %d) = %s, p = %s\n", fit.DFModel, fit.DFResidual, w.num(fit.FStat), w.pval(reg.FPValue))
	w.printf("- decision: %s\n", reg.Model)

	w.b.WriteString("\nAnalysis of variance:\n")
	w.tableHeader("Source", "SS", "df", "MS")
	w.tableRow("Regression", w.num(fit.SSR), strconv.Itoa(fit.DFModel), w.num(fit.MSR))
	w.tableRow("Residual", w.num(fit.SSE), strconv.Itoa(fit.DFResidual), w.num(fit.MSE))
	w.tableRow("Total", w.num(fit.SST), strconv.Itoa(fit.N-1), "")

	if !w.opt.Verbose {
		return
	}
	terms := reg.Terms()
	w.b.WriteString("\n")
	w.matrix("XᵀX", fit.Gram, terms)
	w.b.WriteString("\n")
	w.matrix("(XᵀX)⁻¹", fit.GramInverse, terms)
	w.printf("\nXᵀy: %s\n", w.list(fit.XtY))
	w.printf("β = (XᵀX)⁻¹ Xᵀy: %s\n", w.list(fit.Coefficients))
	w.b.WriteString("\n")
	w.matrix("Covariance of β (MSE × (XᵀX)⁻¹)", fit.Covariance, terms)

	rows := fit.N
	if rows > maxNarratedRows {
		rows = maxNarratedRows
	}
	w.printf("\nFirst %d observations:\n", rows)
	w.tableHeader("#", "Fitted", "Residual")
	for i := 0; i < rows; i++ {
		w.tableRow(strconv.Itoa(i+1), w.num(fit.Fitted[i]), w.num(fit.Residuals[i]))
	}
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
