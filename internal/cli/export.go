package cli

import (
	"github.com/spf13/cobra"

	"budgetwatch/internal/app"
)

var (
	exportBudget        string
	exportAsOf          string
	exportPNGPath       string
	exportCSVPath       string
	exportMaxCategories int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a budget comparison as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseTime("as-of", exportAsOf)
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			BudgetID:      exportBudget,
			AsOf:          asOf,
			PNGPath:       exportPNGPath,
			CSVPath:       exportCSVPath,
			MaxCategories: exportMaxCategories,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportBudget, "budget", "", "Budget ID (defaults to engine.budget_ids)")
	exportCmd.Flags().StringVar(&exportAsOf, "as-of", "", "Evaluation time (RFC3339 or YYYY-MM-DD, defaults to now)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxCategories, "max-categories", 0, "Maximum categories to chart (defaults to config)")
}
