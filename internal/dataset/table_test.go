package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var csvRows = []string{
	"Empresa;Preço (R$);Market Cap;Volatilidade (%);Porte",
	"Alfa;10,5;1.200.000,0;12%;1",
	"Beta;20,0;2.500.000,0;8%;2",
	"Gama;;900.000,0;15%;1",
	"Delta;15,25;1.800.000,0;n/a;3",
	"Pão de Açúcar;30,0;4.100.000,0;5%;2",
	";;;;",
}

func writeCSV(t *testing.T, name string, rows []string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return p
}

func TestLoadCSV_SniffsDelimiterAndSplitsUnits(t *testing.T) {
	tab, err := Load(writeCSV(t, "financeiro.csv", csvRows), DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tab.Name != "financeiro.csv" {
		t.Fatalf("name = %q", tab.Name)
	}
	want := []Column{
		{Header: "Empresa", Name: "Empresa"},
		{Header: "Preço (R$)", Name: "Preço", Unit: "R$"},
		{Header: "Market Cap", Name: "Market Cap"},
		{Header: "Volatilidade (%)", Name: "Volatilidade", Unit: "%"},
		{Header: "Porte", Name: "Porte"},
	}
	if diff := cmp.Diff(want, tab.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if len(tab.Rows) != 5 {
		t.Fatalf("rows = %d, want 5 (blank row skipped)", len(tab.Rows))
	}
}

func TestNumeric_DropsIncompleteRows(t *testing.T) {
	tab, err := Load(writeCSV(t, "financeiro.csv", csvRows), DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cols, dropped, err := tab.Numeric("preço", "Market Cap (x)", "Volatilidade")
	var colErr *ColumnError
	if !errors.As(err, &colErr) {
		t.Fatalf("expected ColumnError, got %v", err)
	}
	if !strings.Contains(colErr.Error(), "Market Cap") {
		t.Fatalf("column error should list available columns: %v", colErr)
	}

	cols, dropped, err = tab.Numeric("preço", "market cap", "Volatilidade (%)")
	if err != nil {
		t.Fatalf("Numeric: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	want := [][]float64{
		{10.5, 20, 30},
		{1200000, 2500000, 4100000},
		{12, 8, 5},
	}
	if diff := cmp.Diff(want, cols); diff != "" {
		t.Fatalf("numeric mismatch (-want +got):\n%s", diff)
	}
}

func TestStringsExcludeRelabel(t *testing.T) {
	tab, err := Load(writeCSV(t, "financeiro.csv", csvRows), DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	without, removed, err := tab.Exclude("Empresa", "pão de açúcar")
	if err != nil {
		t.Fatalf("Exclude: %v", err)
	}
	if removed != 1 || len(without.Rows) != 4 || len(tab.Rows) != 5 {
		t.Fatalf("exclude removed=%d rows=%d original=%d", removed, len(without.Rows), len(tab.Rows))
	}

	labeled, err := without.Relabel("Porte", map[string]string{"1": "Pequena", "2.0": "Média"})
	if err != nil {
		t.Fatalf("Relabel: %v", err)
	}
	cols, dropped, err := labeled.Strings("Empresa", "Porte")
	if err != nil {
		t.Fatalf("Strings: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1 (unmapped code 3)", dropped)
	}
	if diff := cmp.Diff([]string{"Pequena", "Média", "Pequena"}, cols[1]); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
	if tab.Rows[0][4] != "1" {
		t.Fatalf("relabel must not modify the source table")
	}
}

func TestLoadCSV_MaxRowsAndTSV(t *testing.T) {
	rows := []string{"a\tb", "1\t2", "3\t4", "5\t6"}
	tab, err := Load(writeCSV(t, "data.tsv", rows), Options{MaxRows: 2})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tab.Rows) != 2 || !tab.Truncated {
		t.Fatalf("rows = %d truncated = %v", len(tab.Rows), tab.Truncated)
	}
	cols, _, err := tab.Numeric("b")
	if err != nil {
		t.Fatalf("Numeric: %v", err)
	}
	if diff := cmp.Diff([]float64{2, 4}, cols[0]); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestLoadCSV_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv"), DefaultOptions()); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeCSV(t, "empty.csv", nil), DefaultOptions()); err == nil {
		t.Fatalf("expected error for empty file")
	}
	tab, err := Load(writeCSV(t, "x.csv", []string{"a,b", "1,2"}), DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, _, err := tab.Numeric(); err == nil {
		t.Fatalf("expected error when no columns requested")
	}
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		opt  Options
		want float64
		ok   bool
	}{
		{"1.234,5", Options{}, 1234.5, true},
		{"1,234.5", Options{}, 1234.5, true},
		{"0,25", Options{}, 0.25, true},
		{"12%", Options{}, 12, true},
		{"3e-4", Options{}, 0.0003, true},
		{"1 000", Options{}, 1000, true},
		{"1,000", Options{DecimalSeparator: '.', ThousandsSeparator: ','}, 1000, true},
		{"", Options{}, 0, false},
		{"abc", Options{}, 0, false},
		{"NaN", Options{}, 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumeric(tc.in, tc.opt)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseNumeric(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSplitUnits(t *testing.T) {
	tests := []struct{ in, name, unit string }{
		{"Concentration (g/L)", "Concentration", "g/L"},
		{"Mass [mg/L]", "Mass", "mg/L"},
		{"Temp_°C", "Temp", "°C"},
		{"peso_kg", "peso", "kg"},
		{"Score", "Score", ""},
	}
	for _, tt := range tests {
		name, unit := splitUnits(tt.in)
		if name != tt.name || unit != tt.unit {
			t.Errorf("splitUnits(%q) = %q, %q; want %q, %q", tt.in, name, unit, tt.name, tt.unit)
		}
	}
}
