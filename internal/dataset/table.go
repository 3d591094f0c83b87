// Package dataset loads delimited text and XLSX workbooks into string tables
// and extracts clean numeric or categorical columns from them.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Options controls how tables are read and how numbers are parsed.
type Options struct {
	// Delimiter for CSV. If 0, .tsv files use tab and other files are sniffed
	// from the header line among ',', ';' and tab.
	Delimiter rune
	// DecimalSeparator: if 0, auto-detect per value.
	DecimalSeparator rune
	// ThousandsSeparator: if 0, common separators other than the decimal are stripped.
	ThousandsSeparator rune
	// SheetName selects an XLSX sheet by name (case-insensitive).
	SheetName string
	// SheetIndex selects an XLSX sheet by 1-based position when SheetName is empty.
	SheetIndex int
	// MaxRows limits rows kept; 0 means unlimited.
	MaxRows int
}

// DefaultOptions returns auto-detecting options.
func DefaultOptions() Options { return Options{} }

// Column describes one header cell, split into a clean name and a unit when
// the header carries one, e.g. "Concentration (g/L)".
type Column struct {
	Header string `json:"header" yaml:"header"`
	Name   string `json:"name" yaml:"name"`
	Unit   string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Table is an immutable in-memory table of trimmed string cells. Every row has
// exactly len(Columns) cells.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]string
	// Truncated is set when MaxRows cut the input short.
	Truncated bool

	opt Options
}

// ColumnError reports a column name that does not exist in the table.
type ColumnError struct {
	Name      string
	Available []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q not found; available columns: %s", e.Name, strings.Join(e.Available, ", "))
}

// Load reads path as XLSX when it has a .xlsx extension and as delimited text otherwise.
func Load(path string, opt Options) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadXLSX(path, opt)
	}
	return LoadCSV(path, opt)
}

// LoadCSV reads a delimited text file whose first record is the header.
func LoadCSV(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path, br)
	}
	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: %s is empty", filepath.Base(path))
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := newTable(filepath.Base(path), header, opt)
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		if !t.appendRow(rec) {
			break
		}
	}
	return t, nil
}

func newTable(name string, header []string, opt Options) *Table {
	t := &Table{Name: name, opt: opt, Columns: make([]Column, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		clean, unit := splitUnits(h)
		t.Columns[i] = Column{Header: h, Name: clean, Unit: unit}
	}
	return t
}

// appendRow normalizes rec to the header width and reports whether more rows
// may be added.
func (t *Table) appendRow(rec []string) bool {
	if t.opt.MaxRows > 0 && len(t.Rows) >= t.opt.MaxRows {
		t.Truncated = true
		return false
	}
	row := make([]string, len(t.Columns))
	empty := true
	for i := range row {
		if i < len(rec) {
			row[i] = strings.TrimSpace(rec[i])
			if row[i] != "" {
				empty = false
			}
		}
	}
	if !empty {
		t.Rows = append(t.Rows, row)
	}
	return true
}

// Names returns the clean column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Index resolves a column by clean name or full header, ignoring case.
func (t *Table) Index(name string) (int, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, c := range t.Columns {
		if strings.ToLower(c.Name) == want || strings.ToLower(c.Header) == want {
			return i, nil
		}
	}
	return -1, &ColumnError{Name: name, Available: t.Names()}
}

// Numeric returns the named columns as parallel float slices, keeping only the
// rows where every named cell parses as a finite number. dropped counts the
// rows that were discarded.
func (t *Table) Numeric(names ...string) (cols [][]float64, dropped int, err error) {
	idx, err := t.indexes(names)
	if err != nil {
		return nil, 0, err
	}
	cols = make([][]float64, len(idx))
	vals := make([]float64, len(idx))
	for _, row := range t.Rows {
		ok := true
		for j, c := range idx {
			v, good := ParseNumeric(row[c], t.opt)
			if !good {
				ok = false
				break
			}
			vals[j] = v
		}
		if !ok {
			dropped++
			continue
		}
		for j := range idx {
			cols[j] = append(cols[j], vals[j])
		}
	}
	return cols, dropped, nil
}

// Strings returns the named columns, keeping only rows where every named cell
// is non-empty.
func (t *Table) Strings(names ...string) (cols [][]string, dropped int, err error) {
	idx, err := t.indexes(names)
	if err != nil {
		return nil, 0, err
	}
	cols = make([][]string, len(idx))
	for _, row := range t.Rows {
		ok := true
		for _, c := range idx {
			if row[c] == "" {
				ok = false
				break
			}
		}
		if !ok {
			dropped++
			continue
		}
		for j, c := range idx {
			cols[j] = append(cols[j], row[c])
		}
	}
	return cols, dropped, nil
}

// Exclude returns a copy of the table without the rows whose column equals
// value (case-insensitive), and how many rows were removed.
func (t *Table) Exclude(column, value string) (*Table, int, error) {
	c, err := t.Index(column)
	if err != nil {
		return nil, 0, err
	}
	out := t.derive()
	removed := 0
	for _, row := range t.Rows {
		if strings.EqualFold(row[c], strings.TrimSpace(value)) {
			removed++
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out, removed, nil
}

// Relabel returns a copy of the table with the column's codes replaced by
// labels. Codes without a label become empty (missing) cells. Numeric codes
// match numerically, so "1", "1.0" and "1,0" share a label.
func (t *Table) Relabel(column string, labels map[string]string) (*Table, error) {
	c, err := t.Index(column)
	if err != nil {
		return nil, err
	}
	numeric := map[float64]string{}
	for code, label := range labels {
		if v, ok := ParseNumeric(code, t.opt); ok {
			numeric[v] = label
		}
	}
	out := t.derive()
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cp := append([]string(nil), row...)
		label, ok := labels[row[c]]
		if !ok {
			if v, isNum := ParseNumeric(row[c], t.opt); isNum {
				label, ok = numeric[v]
			}
		}
		if ok {
			cp[c] = label
		} else {
			cp[c] = ""
		}
		out.Rows[i] = cp
	}
	return out, nil
}

func (t *Table) derive() *Table {
	return &Table{Name: t.Name, Columns: t.Columns, Truncated: t.Truncated, opt: t.opt}
}

func (t *Table) indexes(names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, errors.New("no columns requested")
	}
	idx := make([]int, len(names))
	for i, n := range names {
		c, err := t.Index(n)
		if err != nil {
			return nil, err
		}
		idx[i] = c
	}
	return idx, nil
}

// sniffDelimiter picks a delimiter from the file extension, falling back to
// the most frequent candidate in the header line.
func sniffDelimiter(path string, br *bufio.Reader) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	line, _ := br.Peek(4096)
	if i := strings.IndexByte(string(line), '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(string(line), string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// ParseNumeric parses a locale-formatted number such as "1.234,5", "1,234.5",
// "12%" or "3e-4". Empty cells and non-finite results are rejected.
func ParseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.ReplaceAll(raw, "\u00a0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec, thou := opt.DecimalSeparator, opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.*?)\s*\(([^)]+)\)$`),  // Alpha (%)
	regexp.MustCompile(`^(.*?)\s*\[([^\]]+)\]$`), // Mass [mg/L]
	regexp.MustCompile(`^(.*?)[_\s-]+(mg/L|g/L|ug/L|°[CF]|Brix|%|ppm|ppb|kg|km|R\$|USD)$`),
}

func splitUnits(header string) (name, unit string) {
	for _, re := range unitPatterns {
		if m := re.FindStringSubmatch(header); len(m) == 3 {
			base, u := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return header, ""
}
