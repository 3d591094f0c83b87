// Package association measures the relationship between two variables:
// contingency tables with a chi-square test of independence for categorical
// pairs, and Pearson correlation for numeric pairs.
package association

import (
	"errors"
	"fmt"
	"sort"

	"github.com/KaramelBytes/statloom-cli/internal/options"
)

// ErrTableTooSmall is returned when a contingency table has fewer than two
// non-empty rows or columns.
var ErrTableTooSmall = errors.New("contingency table needs at least 2 rows and 2 columns")

// Contingency is a two-way frequency table of observed counts.
//
// Percent matrices are in percent (0..100). RowPercent rows sum to 100,
// ColPercent columns sum to 100 and TotalPercent sums to 100 overall.
type Contingency struct {
	RowVar string   `json:"row_var" yaml:"row_var"`
	ColVar string   `json:"col_var" yaml:"col_var"`
	Rows   []string `json:"rows" yaml:"rows"`
	Cols   []string `json:"cols" yaml:"cols"`

	Observed  [][]int `json:"observed" yaml:"observed"`
	RowTotals []int   `json:"row_totals" yaml:"row_totals"`
	ColTotals []int   `json:"col_totals" yaml:"col_totals"`
	Total     int     `json:"total" yaml:"total"`
	// Dropped counts pairs whose category was not in an explicit order.
	Dropped int `json:"dropped" yaml:"dropped"`

	RowPercent   [][]float64 `json:"row_percent" yaml:"row_percent"`
	ColPercent   [][]float64 `json:"col_percent" yaml:"col_percent"`
	TotalPercent [][]float64 `json:"total_percent" yaml:"total_percent"`
	Expected     [][]float64 `json:"expected" yaml:"expected"`
}

type crosstabConfig struct {
	rowVar, colVar     string
	rowOrder, colOrder []string
}

// CrosstabOption configures Crosstab.
type CrosstabOption = options.Option[*crosstabConfig]

// WithNames records the variable names shown in reports.
func WithNames(rowVar, colVar string) CrosstabOption {
	return options.NoError(func(c *crosstabConfig) {
		c.rowVar, c.colVar = rowVar, colVar
	})
}

// WithRowOrder fixes the row categories and their order. Observations with
// other row values are dropped.
func WithRowOrder(order ...string) CrosstabOption {
	return options.New(func(c *crosstabConfig) error {
		if err := checkOrder(order); err != nil {
			return fmt.Errorf("row order: %w", err)
		}
		c.rowOrder = order
		return nil
	})
}

// WithColOrder is WithRowOrder for columns.
func WithColOrder(order ...string) CrosstabOption {
	return options.New(func(c *crosstabConfig) error {
		if err := checkOrder(order); err != nil {
			return fmt.Errorf("column order: %w", err)
		}
		c.colOrder = order
		return nil
	})
}

func checkOrder(order []string) error {
	seen := map[string]bool{}
	for _, o := range order {
		if seen[o] {
			return fmt.Errorf("duplicate category %q", o)
		}
		seen[o] = true
	}
	return nil
}

// Crosstab counts the joint occurrences of rows[i] and cols[i]. Without an
// explicit order, categories are sorted lexically. Categories that end up with
// no observations are omitted.
func Crosstab(rows, cols []string, opts ...CrosstabOption) (*Contingency, error) {
	if len(rows) != len(cols) {
		return nil, fmt.Errorf("crosstab: %d row values but %d column values", len(rows), len(cols))
	}
	cfg := &crosstabConfig{}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}
	rowIdx := indexOf(cfg.rowOrder, rows)
	colIdx := indexOf(cfg.colOrder, cols)

	rowCats := categories(rowIdx)
	colCats := categories(colIdx)
	counts := make([][]int, len(rowCats))
	for i := range counts {
		counts[i] = make([]int, len(colCats))
	}
	c := &Contingency{RowVar: cfg.rowVar, ColVar: cfg.colVar}
	for i := range rows {
		ri, rok := rowIdx[rows[i]]
		ci, cok := colIdx[cols[i]]
		if !rok || !cok {
			c.Dropped++
			continue
		}
		counts[ri][ci]++
	}

	// Drop empty categories while preserving order.
	var keepR, keepC []int
	for i := range rowCats {
		if sumRow(counts[i]) > 0 {
			keepR = append(keepR, i)
		}
	}
	for j := range colCats {
		s := 0
		for i := range counts {
			s += counts[i][j]
		}
		if s > 0 {
			keepC = append(keepC, j)
		}
	}
	for _, i := range keepR {
		c.Rows = append(c.Rows, rowCats[i])
	}
	for _, j := range keepC {
		c.Cols = append(c.Cols, colCats[j])
	}
	c.Observed = make([][]int, len(keepR))
	for a, i := range keepR {
		c.Observed[a] = make([]int, len(keepC))
		for b, j := range keepC {
			c.Observed[a][b] = counts[i][j]
		}
	}
	c.fill()
	return c, nil
}

// NewContingency builds a table from already aggregated counts, e.g. a table
// typed in by hand.
func NewContingency(rowLabels, colLabels []string, observed [][]int) (*Contingency, error) {
	if len(observed) != len(rowLabels) {
		return nil, fmt.Errorf("contingency: %d row labels for %d rows", len(rowLabels), len(observed))
	}
	c := &Contingency{Rows: rowLabels, Cols: colLabels, Observed: make([][]int, len(observed))}
	for i, row := range observed {
		if len(row) != len(colLabels) {
			return nil, fmt.Errorf("contingency: row %d has %d cells, want %d", i, len(row), len(colLabels))
		}
		for j, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("contingency: negative count at row %d column %d", i, j)
			}
		}
		c.Observed[i] = append([]int(nil), row...)
	}
	c.fill()
	return c, nil
}

// fill names unnamed variables and computes marginals, percentages and
// expected counts E = row·col/N.
func (c *Contingency) fill() {
	if c.RowVar == "" {
		c.RowVar = "row"
	}
	if c.ColVar == "" {
		c.ColVar = "col"
	}
	r, k := len(c.Rows), len(c.Cols)
	c.RowTotals = make([]int, r)
	c.ColTotals = make([]int, k)
	c.Total = 0
	for i := 0; i < r; i++ {
		for j := 0; j < k; j++ {
			v := c.Observed[i][j]
			c.RowTotals[i] += v
			c.ColTotals[j] += v
			c.Total += v
		}
	}
	c.RowPercent = grid(r, k)
	c.ColPercent = grid(r, k)
	c.TotalPercent = grid(r, k)
	c.Expected = grid(r, k)
	for i := 0; i < r; i++ {
		for j := 0; j < k; j++ {
			o := float64(c.Observed[i][j])
			if c.RowTotals[i] > 0 {
				c.RowPercent[i][j] = o / float64(c.RowTotals[i]) * 100
			}
			if c.ColTotals[j] > 0 {
				c.ColPercent[i][j] = o / float64(c.ColTotals[j]) * 100
			}
			if c.Total > 0 {
				c.TotalPercent[i][j] = o / float64(c.Total) * 100
				c.Expected[i][j] = float64(c.RowTotals[i]) * float64(c.ColTotals[j]) / float64(c.Total)
			}
		}
	}
}

func indexOf(order, values []string) map[string]int {
	idx := map[string]int{}
	if len(order) > 0 {
		for i, o := range order {
			idx[o] = i
		}
		return idx
	}
	var cats []string
	for _, v := range values {
		if _, ok := idx[v]; !ok {
			idx[v] = 0
			cats = append(cats, v)
		}
	}
	sort.Strings(cats)
	for i, v := range cats {
		idx[v] = i
	}
	return idx
}

func categories(idx map[string]int) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[i] = k
	}
	return out
}

func sumRow(row []int) int {
	s := 0
	for _, v := range row {
		s += v
	}
	return s
}

func grid(r, k int) [][]float64 {
	g := make([][]float64, r)
	for i := range g {
		g[i] = make([]float64, k)
	}
	return g
}
