package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	cfgpkg "github.com/KaramelBytes/statloom-cli/internal/config"
	"github.com/KaramelBytes/statloom-cli/internal/logging"
	"github.com/KaramelBytes/statloom-cli/internal/report"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile       string
	debug         bool
	flagFormat    string
	flagDecimals  int
	flagAlpha     float64
	flagWorkspace string
	flagOutput    string
	flagVerbose   bool

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "statloom",
	Short: "StatLoom CLI: descriptive statistics, association tests and OLS regression for tabular data",
	Long: `StatLoom reads CSV/TSV/XLSX tables and produces reports with descriptive statistics,
frequency distributions, contingency tables with chi-square tests, Pearson correlations
and multiple linear regression fitted by ordinary least squares.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization cycle
	// (rootCmd -> loadConfig -> rootCmd).
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return loadConfig() }

	// Persistent global flags available to all subcommands
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default is ~/.statloom/config.yaml)")
	f.BoolVar(&debug, "debug", false, "enable debug logging")
	f.StringVar(&flagFormat, "format", "", "report format: md, json or yaml (overrides config)")
	f.IntVar(&flagDecimals, "decimals", 0, "decimal places in Markdown reports (overrides config)")
	f.Float64Var(&flagAlpha, "alpha", 0, "significance level for hypothesis tests (overrides config)")
	f.StringVarP(&flagWorkspace, "workspace", "w", "", "store the report in this workspace (name or directory)")
	f.StringVarP(&flagOutput, "output", "o", "", "write the report to this file")
	f.BoolVar(&flagVerbose, "verbose", false, "narrate intermediate steps of each computation")
}

func loadConfig() error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Default()
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("format") {
		format, err := report.ParseFormat(flagFormat)
		if err != nil {
			return err
		}
		cfg.Format = string(format)
	}
	if f.Changed("decimals") {
		cfg.Decimals = flagDecimals
	}
	if f.Changed("alpha") {
		cfg.Alpha = flagAlpha
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	l, err := logging.New(os.Stderr, cfg.LogLevel, debug)
	if err != nil {
		return err
	}
	logger = l
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", "alpha", cfg.Alpha, "format", cfg.Format, "decimals", cfg.Decimals)
	return nil
}
