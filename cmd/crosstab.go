package cmd

import (
	"fmt"

	"github.com/KaramelBytes/statloom-cli/internal/plan"
	"github.com/spf13/cobra"
)

var (
	ctRows      string
	ctCols      string
	ctRowLabels []string
	ctColLabels []string
	ctRowOrder  []string
	ctColOrder  []string
)

var crosstabCmd = &cobra.Command{
	Use:   "crosstab <file>",
	Short: "Contingency table of two categorical columns with a chi-square test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ctRows == "" || ctCols == "" {
			return fmt.Errorf("--rows and --cols are required")
		}
		p, err := adhocPlan(args[0], plan.Analysis{Crosstab: &plan.CrosstabStep{
			Rows:     ctRows,
			Cols:     ctCols,
			RowOrder: ctRowOrder,
			ColOrder: ctColOrder,
		}})
		if err != nil {
			return err
		}
		labels := map[string]map[string]string{}
		if len(ctRowLabels) > 0 {
			m, err := parsePairs("row-labels", ctRowLabels)
			if err != nil {
				return err
			}
			labels[ctRows] = m
		}
		if len(ctColLabels) > 0 {
			m, err := parsePairs("col-labels", ctColLabels)
			if err != nil {
				return err
			}
			labels[ctCols] = m
		}
		p.Labels = labels

		rep, err := execute(cmd.Context(), p)
		if err != nil {
			return err
		}
		return emit(cmd, rep, ctRows+"-by-"+ctCols)
	},
}

func init() {
	rootCmd.AddCommand(crosstabCmd)
	crosstabCmd.Flags().StringVar(&ctRows, "rows", "", "row variable")
	crosstabCmd.Flags().StringVar(&ctCols, "cols", "", "column variable")
	crosstabCmd.Flags().StringArrayVar(&ctRowLabels, "row-labels", nil, "relabel row codes, code=label (repeatable)")
	crosstabCmd.Flags().StringArrayVar(&ctColLabels, "col-labels", nil, "relabel column codes, code=label (repeatable)")
	crosstabCmd.Flags().StringSliceVar(&ctRowOrder, "row-order", nil, "row categories in display order")
	crosstabCmd.Flags().StringSliceVar(&ctColOrder, "col-order", nil, "column categories in display order")
	addLoaderFlags(crosstabCmd)
}
