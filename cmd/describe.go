package cmd

import (
	"fmt"

	"github.com/KaramelBytes/statloom-cli/internal/plan"
	"github.com/spf13/cobra"
)

var (
	descColumns     []string
	descPercentiles []float64
	descDeciles     []int
	descFence       float64
	descStemScale   float64
)

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Descriptive statistics of numeric columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(descColumns) == 0 {
			return fmt.Errorf("at least one --column is required")
		}
		var steps []plan.Analysis
		for _, col := range descColumns {
			steps = append(steps, plan.Analysis{Describe: &plan.DescribeStep{
				Column:      col,
				Percentiles: descPercentiles,
				Deciles:     descDeciles,
				Fence:       descFence,
				StemScale:   descStemScale,
			}})
		}
		p, err := adhocPlan(args[0], steps...)
		if err != nil {
			return err
		}
		rep, err := execute(cmd.Context(), p)
		if err != nil {
			return err
		}
		return emit(cmd, rep, "describe")
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringSliceVarP(&descColumns, "column", "c", nil, "numeric column to describe (repeatable)")
	describeCmd.Flags().Float64SliceVar(&descPercentiles, "percentiles", nil, "extra percentiles to report (default 10,20,80,90)")
	describeCmd.Flags().IntSliceVar(&descDeciles, "deciles", nil, "deciles to report (default 3,4,6,7)")
	describeCmd.Flags().Float64Var(&descFence, "fence", 0, "IQR multiplier for outlier fences (default from config)")
	describeCmd.Flags().Float64Var(&descStemScale, "stem-scale", 0, "add a stem-and-leaf display of values divided by this scale")
	addLoaderFlags(describeCmd)
}
