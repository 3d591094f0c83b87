// Package plan describes a battery of analyses over one table in YAML and
// runs it into a report.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/statloom-cli/internal/dataset"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Plan is one table and the analyses to run on it.
type Plan struct {
	Source     string `yaml:"source" validate:"required"`
	Sheet      string `yaml:"sheet,omitempty"`
	SheetIndex int    `yaml:"sheet_index,omitempty" validate:"gte=0"`
	Delimiter  string `yaml:"delimiter,omitempty" validate:"omitempty,max=4"`
	Decimal    string `yaml:"decimal,omitempty" validate:"omitempty,oneof=. ,"`
	Thousands  string `yaml:"thousands,omitempty" validate:"omitempty,max=4"`

	// Labels maps column -> code -> label. Unlabelled codes become missing.
	Labels map[string]map[string]string `yaml:"labels,omitempty"`
	// Order fixes the category order of a column in crosstabs.
	Order   map[string][]string `yaml:"order,omitempty"`
	Exclude []Exclusion         `yaml:"exclude,omitempty" validate:"dive"`

	Analyses []Analysis `yaml:"analyses" validate:"required,min=1,dive"`

	// dir is the directory of the plan file; a relative Source resolves against it.
	dir string
}

// Exclusion removes the rows where Column equals Value.
type Exclusion struct {
	Column string `yaml:"column" validate:"required"`
	Value  string `yaml:"value"`
}

// Analysis is one entry of a plan. Exactly one field must be set.
type Analysis struct {
	Describe    *DescribeStep  `yaml:"describe,omitempty"`
	Frequencies *ColumnStep    `yaml:"frequencies,omitempty"`
	Classes     *ColumnStep    `yaml:"classes,omitempty"`
	Crosstab    *CrosstabStep  `yaml:"crosstab,omitempty"`
	Correlate   *CorrelateStep `yaml:"correlate,omitempty"`
	Matrix      *MatrixStep    `yaml:"matrix,omitempty"`
	Regress     *RegressStep   `yaml:"regress,omitempty"`
}

// DescribeStep profiles one numeric column. A positive StemScale adds a
// stem-and-leaf display of the values divided by it.
type DescribeStep struct {
	Column      string    `yaml:"column" validate:"required"`
	Percentiles []float64 `yaml:"percentiles,omitempty" validate:"dive,gte=0,lte=100"`
	Deciles     []int     `yaml:"deciles,omitempty" validate:"dive,gte=1,lte=9"`
	Fence       float64   `yaml:"fence,omitempty" validate:"gte=0"`
	StemScale   float64   `yaml:"stem_scale,omitempty" validate:"gte=0"`
}

type ColumnStep struct {
	Column string `yaml:"column" validate:"required"`
}

// CrosstabStep cross-tabulates two categorical columns and tests their independence.
type CrosstabStep struct {
	Rows     string   `yaml:"rows" validate:"required"`
	Cols     string   `yaml:"cols" validate:"required"`
	RowOrder []string `yaml:"row_order,omitempty" validate:"dive,required"`
	ColOrder []string `yaml:"col_order,omitempty" validate:"dive,required"`
}

type CorrelateStep struct {
	Pairs [][]string `yaml:"pairs" validate:"required,min=1,dive,len=2,dive,required"`
}

type MatrixStep struct {
	Columns []string `yaml:"columns" validate:"required,min=2,dive,required"`
}

type RegressStep struct {
	Response    string   `yaml:"response" validate:"required"`
	Explanatory []string `yaml:"explanatory" validate:"required,min=1,dive,required"`
}

// Kind names the analysis set on a, or "" when none or several are set.
func (a Analysis) Kind() string {
	kinds := a.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (a Analysis) kinds() []string {
	var out []string
	if a.Describe != nil {
		out = append(out, "describe")
	}
	if a.Frequencies != nil {
		out = append(out, "frequencies")
	}
	if a.Classes != nil {
		out = append(out, "classes")
	}
	if a.Crosstab != nil {
		out = append(out, "crosstab")
	}
	if a.Correlate != nil {
		out = append(out, "correlate")
	}
	if a.Matrix != nil {
		out = append(out, "matrix")
	}
	if a.Regress != nil {
		out = append(out, "regress")
	}
	return out
}

// Validate checks required fields and that every entry names exactly one analysis.
func (p *Plan) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	for i, a := range p.Analyses {
		switch kinds := a.kinds(); len(kinds) {
		case 0:
			return fmt.Errorf("invalid plan: analysis %d names no analysis", i+1)
		case 1:
		default:
			return fmt.Errorf("invalid plan: analysis %d names several analyses (%s)", i+1, strings.Join(kinds, ", "))
		}
	}
	for _, s := range []string{p.Delimiter, p.Thousands} {
		if s != "" && utf8.RuneCountInString(unescape(s)) != 1 {
			return fmt.Errorf("invalid plan: separator %q must be a single character", s)
		}
	}
	return nil
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	p.dir = filepath.Dir(path)
	return p, nil
}

// Parse decodes a plan from YAML, rejecting unknown keys.
func Parse(b []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("plan is empty")
		}
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// SourcePath resolves Source against the plan file's directory.
func (p *Plan) SourcePath() string {
	if filepath.IsAbs(p.Source) || p.dir == "" {
		return p.Source
	}
	return filepath.Join(p.dir, p.Source)
}

// DatasetOptions overlays the plan's loader settings on base.
func (p *Plan) DatasetOptions(base dataset.Options) dataset.Options {
	opt := base
	if r, ok := firstRune(p.Delimiter); ok {
		opt.Delimiter = r
	}
	if r, ok := firstRune(p.Decimal); ok {
		opt.DecimalSeparator = r
	}
	if r, ok := firstRune(p.Thousands); ok {
		opt.ThousandsSeparator = r
	}
	if p.Sheet != "" {
		opt.SheetName = p.Sheet
	}
	if p.SheetIndex > 0 {
		opt.SheetIndex = p.SheetIndex
	}
	return opt
}

// Prepare applies the plan's exclusions, then its labels, to t. It returns the
// prepared table and how many rows the exclusions removed.
func (p *Plan) Prepare(t *dataset.Table) (*dataset.Table, int, error) {
	removed := 0
	for _, ex := range p.Exclude {
		next, n, err := t.Exclude(ex.Column, ex.Value)
		if err != nil {
			return nil, 0, fmt.Errorf("exclude %s=%s: %w", ex.Column, ex.Value, err)
		}
		t = next
		removed += n
	}
	for column, labels := range p.Labels {
		next, err := t.Relabel(column, labels)
		if err != nil {
			return nil, 0, fmt.Errorf("labels for %s: %w", column, err)
		}
		t = next
	}
	return t, removed, nil
}

func unescape(s string) string {
	if s == `\t` {
		return "\t"
	}
	return s
}

func firstRune(s string) (rune, bool) {
	s = unescape(s)
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, true
}
