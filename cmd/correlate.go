package cmd

import (
	"fmt"

	"github.com/KaramelBytes/statloom-cli/internal/plan"
	"github.com/spf13/cobra"
)

var (
	corrX      string
	corrY      string
	corrMatrix []string
)

var correlateCmd = &cobra.Command{
	Use:   "correlate <file>",
	Short: "Pearson correlation of two numeric columns, or a correlation matrix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var step plan.Analysis
		switch {
		case len(corrMatrix) > 0 && (corrX != "" || corrY != ""):
			return fmt.Errorf("use either -x/-y or --matrix, not both")
		case len(corrMatrix) > 0:
			step.Matrix = &plan.MatrixStep{Columns: corrMatrix}
		case corrX != "" && corrY != "":
			step.Correlate = &plan.CorrelateStep{Pairs: [][]string{{corrX, corrY}}}
		default:
			return fmt.Errorf("-x and -y (or --matrix) are required")
		}
		p, err := adhocPlan(args[0], step)
		if err != nil {
			return err
		}
		rep, err := execute(cmd.Context(), p)
		if err != nil {
			return err
		}
		return emit(cmd, rep, "correlation")
	},
}

func init() {
	rootCmd.AddCommand(correlateCmd)
	correlateCmd.Flags().StringVarP(&corrX, "x", "x", "", "first column")
	correlateCmd.Flags().StringVarP(&corrY, "y", "y", "", "second column")
	correlateCmd.Flags().StringSliceVar(&corrMatrix, "matrix", nil, "columns for a correlation matrix, e.g. a,b,c")
	addLoaderFlags(correlateCmd)
}
