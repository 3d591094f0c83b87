package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/statloom-cli/internal/dataset"
	"github.com/KaramelBytes/statloom-cli/internal/ols"
	"github.com/KaramelBytes/statloom-cli/internal/plan"
	"github.com/KaramelBytes/statloom-cli/internal/report"
	"github.com/KaramelBytes/statloom-cli/internal/utils"
	"github.com/KaramelBytes/statloom-cli/internal/workspace"
	"github.com/spf13/cobra"
)

// Loader flags shared by every command that reads a table.
var (
	ldDelimiter  string
	ldDecimal    string
	ldThousands  string
	ldSheetName  string
	ldSheetIndex int
	ldMaxRows    int
	ldExclude    []string
)

func addLoaderFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&ldDelimiter, "delimiter", "", "CSV delimiter: ',', ';' or 'tab' (default: auto-detect)")
	f.StringVar(&ldDecimal, "decimal", "", "decimal separator: '.' or 'comma' (default: auto)")
	f.StringVar(&ldThousands, "thousands", "", "thousands separator: ',', '.' or 'space'")
	f.StringVar(&ldSheetName, "sheet-name", "", "XLSX sheet name")
	f.IntVar(&ldSheetIndex, "sheet-index", 0, "XLSX sheet position, starting at 1")
	f.IntVar(&ldMaxRows, "max-rows", 0, "read at most this many rows (0 = all)")
	f.StringArrayVar(&ldExclude, "exclude", nil, "drop rows where column=value (repeatable)")
}

func loaderOptions() (dataset.Options, error) {
	opt := dataset.DefaultOptions()
	switch ldDelimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab", `\t`:
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", ldDelimiter)
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(ldDecimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", ldDecimal)
	}
	switch strings.ToLower(ldThousands) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", ldThousands)
	}
	opt.SheetName = ldSheetName
	opt.SheetIndex = ldSheetIndex
	if ldMaxRows > 0 {
		opt.MaxRows = ldMaxRows
	}
	return opt, nil
}

// parsePairs splits repeated key=value flag values.
func parsePairs(flag string, vals []string) (map[string]string, error) {
	out := make(map[string]string, len(vals))
	for _, kv := range vals {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --%s %q (want key=value)", flag, kv)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

func exclusions() ([]plan.Exclusion, error) {
	var out []plan.Exclusion
	for _, kv := range ldExclude {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --exclude %q (want column=value)", kv)
		}
		out = append(out, plan.Exclusion{Column: strings.TrimSpace(k), Value: strings.TrimSpace(v)})
	}
	return out, nil
}

// adhocPlan wraps analyses requested on the command line into a plan over path.
func adhocPlan(path string, analyses ...plan.Analysis) (*plan.Plan, error) {
	ex, err := exclusions()
	if err != nil {
		return nil, err
	}
	p := &plan.Plan{Source: path, Exclude: ex, Analyses: analyses}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// execute loads the plan's table, applies its exclusions and labels, and runs
// its analyses into a report.
func execute(ctx context.Context, p *plan.Plan) (*report.Report, error) {
	base, err := loaderOptions()
	if err != nil {
		return nil, err
	}
	src := p.SourcePath()
	tbl, err := dataset.Load(src, p.DatasetOptions(base))
	if err != nil {
		return nil, err
	}
	logger.Debug("table loaded", "file", src, "rows", len(tbl.Rows), "columns", len(tbl.Columns))
	prepared, removed, err := p.Prepare(tbl)
	if err != nil {
		return nil, err
	}
	engine, err := ols.New(ols.WithConditionLimit(cfg.ConditionLimit))
	if err != nil {
		return nil, err
	}
	b := report.New(filepath.Base(src), report.WithAlpha(cfg.Alpha))
	if tbl.Truncated {
		b.AddNote("only the first %d rows of %s were read", len(tbl.Rows), filepath.Base(src))
	}
	if removed > 0 {
		b.AddNote("%d rows excluded by filter", removed)
	}
	err = plan.Run(ctx, p, prepared, b,
		plan.WithLogger(logger),
		plan.WithEngine(engine),
		plan.WithFenceFactor(cfg.FenceFactor),
		plan.WithThresholds(cfg.StrongCorr, cfg.ModerateCorr))
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// outputFormat is the configured format, or the one implied by the --output
// extension when --format was not given.
func outputFormat() (report.Format, error) {
	if flagOutput != "" && !rootCmd.PersistentFlags().Changed("format") {
		switch strings.ToLower(filepath.Ext(flagOutput)) {
		case ".json":
			return report.FormatJSON, nil
		case ".yaml", ".yml":
			return report.FormatYAML, nil
		case ".md", ".markdown":
			return report.FormatMarkdown, nil
		}
	}
	return report.ParseFormat(cfg.Format)
}

// emit writes rep to --output, else into --workspace, else to stdout.
func emit(cmd *cobra.Command, rep *report.Report, title string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	opt := report.RenderOptions{Decimals: cfg.Decimals, Verbose: flagVerbose}
	out := cmd.OutOrStdout()

	if flagOutput != "" {
		data, err := rep.Render(format, opt)
		if err != nil {
			return err
		}
		if dir := filepath.Dir(flagOutput); dir != "." {
			if err := utils.EnsureDir(dir); err != nil {
				return fmt.Errorf("ensure output dir: %w", err)
			}
		}
		if err := utils.SafeWriteFile(flagOutput, data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(out, "✓ Wrote report to %s\n", flagOutput)
		return nil
	}
	if flagWorkspace != "" {
		dir, err := resolveWorkspaceDir(flagWorkspace)
		if err != nil {
			return err
		}
		ws, err := workspace.Open(dir)
		if err != nil {
			return err
		}
		e, err := ws.AddReport(rep, title, format, opt)
		if err != nil {
			return err
		}
		if err := ws.Save(); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Saved report to %s\n", ws.Path(e))
		return nil
	}
	data, err := rep.Render(format, opt)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Fprintln(out)
	}
	return nil
}

// workspacesRoot returns the configured workspace directory, expanding ~.
func workspacesRoot() (string, error) {
	dir := ""
	if cfg != nil {
		dir = cfg.WorkspaceDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	if dir == "" {
		return filepath.Join(home, ".statloom", "workspaces"), nil
	}
	if strings.HasPrefix(dir, "~") {
		dir = strings.TrimPrefix(dir, "~")
		dir = strings.TrimPrefix(dir, string(os.PathSeparator))
		dir = strings.TrimPrefix(dir, "/")
		dir = filepath.Join(home, dir)
	}
	return filepath.Clean(dir), nil
}

// resolveWorkspaceDir maps a bare name into the workspaces root and keeps
// anything that looks like a path as is.
func resolveWorkspaceDir(name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) || strings.Contains(name, "/") || name == "." || name == ".." {
		return filepath.Clean(name), nil
	}
	root, err := workspacesRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, name), nil
}
