package cmd

import (
	"fmt"

	"github.com/KaramelBytes/statloom-cli/internal/plan"
	"github.com/spf13/cobra"
)

var (
	regResponse    string
	regExplanatory []string
)

var regressCmd = &cobra.Command{
	Use:   "regress <file>",
	Short: "Multiple linear regression by ordinary least squares",
	Long: `Fits response = b0 + b1*x1 + ... + bk*xk by the normal equations and reports
coefficients with standard errors, t tests, R², adjusted R², the F test and the
analysis of variance. Use --verbose to print XᵀX, its inverse and Xᵀy.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if regResponse == "" || len(regExplanatory) == 0 {
			return fmt.Errorf("-y and at least one -x are required")
		}
		p, err := adhocPlan(args[0], plan.Analysis{Regress: &plan.RegressStep{
			Response:    regResponse,
			Explanatory: regExplanatory,
		}})
		if err != nil {
			return err
		}
		rep, err := execute(cmd.Context(), p)
		if err != nil {
			return err
		}
		return emit(cmd, rep, "regression-"+regResponse)
	},
}

func init() {
	rootCmd.AddCommand(regressCmd)
	regressCmd.Flags().StringVarP(&regResponse, "response", "y", "", "response column")
	regressCmd.Flags().StringSliceVarP(&regExplanatory, "explanatory", "x", nil, "explanatory columns (repeatable or comma-separated)")
	addLoaderFlags(regressCmd)
}
