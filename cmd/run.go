package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/statloom-cli/internal/plan"
	"github.com/KaramelBytes/statloom-cli/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	runJobs  int
	runQuiet bool
)

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml...>",
	Short: "Run one or more YAML analysis plans",
	Long: `Each plan names a table and a list of analyses (describe, frequencies, classes,
crosstab, correlate, matrix, regress). Plans run concurrently; their reports are
emitted in argument order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagOutput != "" && len(args) > 1 {
			return fmt.Errorf("--output takes a single plan; use --workspace to keep several reports")
		}
		plans := make([]*plan.Plan, len(args))
		for i, path := range args {
			p, err := plan.Load(path)
			if err != nil {
				return err
			}
			plans[i] = p
		}

		reports := make([]*report.Report, len(plans))
		g, ctx := errgroup.WithContext(cmd.Context())
		if runJobs > 0 {
			g.SetLimit(runJobs)
		}
		total := len(plans)
		for i, p := range plans {
			i, p := i, p
			g.Go(func() error {
				logger.Info("running plan", "plan", args[i], "source", p.Source, "index", i+1, "total", total)
				rep, err := execute(ctx, p)
				if err != nil {
					return fmt.Errorf("%s: %w", filepath.Base(args[i]), err)
				}
				reports[i] = rep
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, rep := range reports {
			title := strings.TrimSuffix(filepath.Base(args[i]), filepath.Ext(args[i]))
			if !runQuiet && total > 1 && flagWorkspace == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n=== [%d/%d] %s ===\n", i+1, total, filepath.Base(args[i]))
			}
			if err := emit(cmd, rep, title); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVarP(&runJobs, "jobs", "j", 4, "plans to run in parallel (0 = unlimited)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not print separators between reports")
	addLoaderFlags(runCmd)
}
