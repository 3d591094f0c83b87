package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/statloom-cli/internal/workspace"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const vendasCSV = `loja,area,vendas,funcionarios,porte,regiao
A,50,120,3,1,Sul
B,80,190,4,2,Norte
C,65,150,4,1,Sul
D,120,260,7,2,Norte
E,95,230,5,2,Sul
F,40,100,2,1,Norte
G,110,250,6,2,Sul
H,70,170,5,1,Norte
`

// resetFlags restores every flag of c and its children to its default so
// values do not leak between invocations of the shared root command.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runRoot is a helper to execute the root command with args and capture its output.
func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	out, err := tryCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func tryCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// setupHome isolates config and workspaces in a temp HOME and writes the sample table.
func setupHome(t *testing.T) (home, csvPath string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"STATLOOM_ALPHA", "STATLOOM_DECIMALS", "STATLOOM_FORMAT", "STATLOOM_LOG_LEVEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	csvPath = filepath.Join(home, "vendas.csv")
	if err := os.WriteFile(csvPath, []byte(vendasCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return home, csvPath
}

func TestCLI_Describe(t *testing.T) {
	_, csvPath := setupHome(t)
	out := runRoot(t, "describe", csvPath, "-c", "vendas", "--stem-scale", "10")
	for _, want := range []string{"[REPORT]", "[DESCRIPTIVE STATISTICS: vendas]", "[STEM-AND-LEAF: vendas]", "Source: vendas.csv"} {
		if !strings.Contains(out, want) {
			t.Fatalf("describe output missing %q:\n%s", want, out)
		}
	}
	if _, err := tryCmd(t, "describe", csvPath); err == nil {
		t.Fatalf("expected error without --column")
	}
	if _, err := tryCmd(t, "describe", csvPath, "-c", "loja"); err == nil {
		t.Fatalf("expected error describing a text column")
	}
}

func TestCLI_FreqAndClasses(t *testing.T) {
	_, csvPath := setupHome(t)
	out := runRoot(t, "freq", csvPath, "-c", "funcionarios")
	if !strings.Contains(out, "[FREQUENCIES: funcionarios]") {
		t.Fatalf("unexpected freq output:\n%s", out)
	}
	out = runRoot(t, "freq", csvPath, "-c", "area", "--classes")
	if !strings.Contains(out, "[CLASS DISTRIBUTION: area]") || strings.Contains(out, "[FREQUENCIES") {
		t.Fatalf("unexpected classes output:\n%s", out)
	}
}

func TestCLI_CrosstabWithLabelsAndExclude(t *testing.T) {
	_, csvPath := setupHome(t)
	out := runRoot(t, "crosstab", csvPath, "--rows", "porte", "--cols", "regiao",
		"--row-labels", "1=Pequena", "--row-labels", "2=Grande",
		"--row-order", "Pequena,Grande", "--exclude", "loja=H")
	for _, want := range []string{"[CROSSTAB: porte × regiao]", "[CHI-SQUARE TEST", "Pequena", "Grande", "1 rows excluded by filter"} {
		if !strings.Contains(out, want) {
			t.Fatalf("crosstab output missing %q:\n%s", want, out)
		}
	}
	if _, err := tryCmd(t, "crosstab", csvPath, "--rows", "porte", "--cols", "regiao", "--row-labels", "oops"); err == nil {
		t.Fatalf("expected error for malformed label")
	}
}

func TestCLI_Correlate(t *testing.T) {
	_, csvPath := setupHome(t)
	out := runRoot(t, "correlate", csvPath, "-x", "area", "-y", "vendas")
	if !strings.Contains(out, "[CORRELATION: area ~ vendas]") {
		t.Fatalf("unexpected correlate output:\n%s", out)
	}
	out = runRoot(t, "correlate", csvPath, "--matrix", "area,vendas,funcionarios")
	if !strings.Contains(out, "[CORRELATION MATRIX]") {
		t.Fatalf("unexpected matrix output:\n%s", out)
	}
	if _, err := tryCmd(t, "correlate", csvPath, "-x", "area", "--matrix", "area,vendas"); err == nil {
		t.Fatalf("expected error mixing -x and --matrix")
	}
}

func TestCLI_RegressFormats(t *testing.T) {
	home, csvPath := setupHome(t)
	out := runRoot(t, "regress", csvPath, "-y", "vendas", "-x", "area,funcionarios", "--verbose")
	for _, want := range []string{"[REGRESSION:", "Analysis of variance", "XᵀX"} {
		if !strings.Contains(out, want) {
			t.Fatalf("regress output missing %q:\n%s", want, out)
		}
	}

	jsonPath := filepath.Join(home, "out", "fit.json")
	out = runRoot(t, "regress", csvPath, "-y", "vendas", "-x", "area", "-o", jsonPath)
	if !strings.Contains(out, "✓ Wrote report to") {
		t.Fatalf("unexpected output: %s", out)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, data)
	}
	if _, ok := doc["sections"]; !ok {
		t.Fatalf("json report has no sections: %s", data)
	}

	out = runRoot(t, "regress", csvPath, "-y", "vendas", "-x", "area", "--format", "yaml")
	if !strings.Contains(out, "sections:") {
		t.Fatalf("expected yaml output:\n%s", out)
	}

	if _, err := tryCmd(t, "regress", csvPath, "-y", "vendas", "-x", "area", "--format", "pdf"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if _, err := tryCmd(t, "regress", csvPath, "-y", "vendas", "-x", "loja"); err == nil {
		t.Fatalf("expected error regressing on a text column")
	}
}

func TestCLI_RunPlans(t *testing.T) {
	home, csvPath := setupHome(t)
	_ = csvPath
	p1 := filepath.Join(home, "um.yaml")
	p2 := filepath.Join(home, "dois.yaml")
	if err := os.WriteFile(p1, []byte("source: vendas.csv\nanalyses:\n  - describe: { column: area }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p2, []byte("source: vendas.csv\nanalyses:\n  - regress: { response: vendas, explanatory: [area] }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := runRoot(t, "run", p1, p2, "--jobs", "2")
	first := strings.Index(out, "[DESCRIPTIVE STATISTICS: area]")
	second := strings.Index(out, "[REGRESSION:")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("reports missing or out of order:\n%s", out)
	}
	if !strings.Contains(out, "=== [1/2] um.yaml ===") {
		t.Fatalf("missing separator:\n%s", out)
	}

	if _, err := tryCmd(t, "run", p1, p2, "-o", filepath.Join(home, "x.md")); err == nil {
		t.Fatalf("expected error for --output with several plans")
	}

	bad := filepath.Join(home, "bad.yaml")
	if err := os.WriteFile(bad, []byte("source: vendas.csv\nanalyses:\n  - describe: { column: nada }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := tryCmd(t, "run", p1, bad)
	if err == nil || !strings.Contains(err.Error(), "bad.yaml") {
		t.Fatalf("expected error naming the failing plan, got %v", err)
	}
}

func TestCLI_ConfigShowAndSet(t *testing.T) {
	home, _ := setupHome(t)
	out := runRoot(t, "config", "show")
	if !strings.Contains(out, "alpha: 0.05") || !strings.Contains(out, "format: md") {
		t.Fatalf("unexpected config output:\n%s", out)
	}
	runRoot(t, "config", "set", "decimals", "2")
	if _, err := os.Stat(filepath.Join(home, ".statloom", "config.yaml")); err != nil {
		t.Fatalf("config not saved: %v", err)
	}
	out = runRoot(t, "config", "show")
	if !strings.Contains(out, "decimals: 2") {
		t.Fatalf("decimals not persisted:\n%s", out)
	}
	if _, err := tryCmd(t, "config", "set", "alpha", "2"); err == nil {
		t.Fatalf("expected validation error for alpha=2")
	}
	if _, err := tryCmd(t, "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
	// --alpha overrides the saved value for one invocation only.
	out = runRoot(t, "--alpha", "0.1", "config", "show")
	if !strings.Contains(out, "alpha: 0.1") {
		t.Fatalf("flag override not applied:\n%s", out)
	}
}

func TestCLI_WorkspaceFlow(t *testing.T) {
	home, csvPath := setupHome(t)
	runRoot(t, "workspace", "init", "estudo", "-d", "vendas por loja")

	wsDir := filepath.Join(home, ".statloom", "workspaces", "estudo")
	if _, err := os.Stat(filepath.Join(wsDir, workspace.FileName)); err != nil {
		t.Fatalf("workspace.json missing: %v", err)
	}

	out := runRoot(t, "describe", csvPath, "-c", "vendas", "-w", "estudo")
	if !strings.Contains(out, "✓ Saved report to") {
		t.Fatalf("unexpected output: %s", out)
	}
	runRoot(t, "regress", csvPath, "-y", "vendas", "-x", "area", "-w", "estudo", "--format", "json")

	ws, err := workspace.Open(wsDir)
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	if len(ws.Entries) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(ws.Entries))
	}
	for _, e := range ws.List() {
		if _, err := os.Stat(ws.Path(e)); err != nil {
			t.Fatalf("report file missing: %v", err)
		}
	}

	out = runRoot(t, "workspace", "list", "estudo")
	if !strings.Contains(out, "describe.md") || !strings.Contains(out, "regression-vendas.json") {
		t.Fatalf("unexpected workspace list:\n%s", out)
	}
	if _, err := tryCmd(t, "workspace", "init", "estudo"); err == nil {
		t.Fatalf("expected error re-initializing a workspace")
	}
	if _, err := tryCmd(t, "describe", csvPath, "-c", "vendas", "-w", "ausente"); err == nil {
		t.Fatalf("expected error for missing workspace")
	}
}
