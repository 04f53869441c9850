package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"budgetwatch/internal/app"
)

var (
	simulateCategory string
	simulateBudgeted string
	simulateActual   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic budget alert through the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		budgeted, err := decimal.NewFromString(simulateBudgeted)
		if err != nil {
			return errors.New("--budgeted must be a decimal number")
		}
		actual, err := decimal.NewFromString(simulateActual)
		if err != nil {
			return errors.New("--actual must be a decimal number")
		}
		if !budgeted.IsPositive() {
			return errors.New("--budgeted must be greater than 0")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Category: simulateCategory,
			Budgeted: budgeted,
			Actual:   actual,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateCategory, "category", "Simulated", "Category name")
	simulateCmd.Flags().StringVar(&simulateBudgeted, "budgeted", "100", "Allocated amount")
	simulateCmd.Flags().StringVar(&simulateActual, "actual", "95", "Spent amount")
}
