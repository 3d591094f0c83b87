package cmd

import (
	"fmt"

	"github.com/KaramelBytes/statloom-cli/internal/plan"
	"github.com/spf13/cobra"
)

var (
	freqColumns []string
	freqClasses bool
)

var freqCmd = &cobra.Command{
	Use:   "freq <file>",
	Short: "Frequency distribution of numeric columns",
	Long: `Tabulates each distinct value with absolute, relative and cumulative frequencies.
With --classes the values are grouped into Sturges class intervals instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(freqColumns) == 0 {
			return fmt.Errorf("at least one --column is required")
		}
		var steps []plan.Analysis
		for _, col := range freqColumns {
			if freqClasses {
				steps = append(steps, plan.Analysis{Classes: &plan.ColumnStep{Column: col}})
			} else {
				steps = append(steps, plan.Analysis{Frequencies: &plan.ColumnStep{Column: col}})
			}
		}
		p, err := adhocPlan(args[0], steps...)
		if err != nil {
			return err
		}
		rep, err := execute(cmd.Context(), p)
		if err != nil {
			return err
		}
		return emit(cmd, rep, "frequencies")
	},
}

func init() {
	rootCmd.AddCommand(freqCmd)
	freqCmd.Flags().StringSliceVarP(&freqColumns, "column", "c", nil, "column to tabulate (repeatable)")
	freqCmd.Flags().BoolVar(&freqClasses, "classes", false, "group values into Sturges classes")
	addLoaderFlags(freqCmd)
}
