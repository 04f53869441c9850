package cli

import (
	"github.com/spf13/cobra"

	"budgetwatch/internal/app"
)

var (
	alertsBudget string
	alertsStatus string
	alertsLimit  int
	alertsJSON   bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List and manage budget alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored alerts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListAlerts(cmd.Context(), app.AlertListOptions{
			BudgetID: alertsBudget,
			Status:   alertsStatus,
			Limit:    alertsLimit,
			JSON:     alertsJSON,
		})
	},
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge an active alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AcknowledgeAlert(cmd.Context(), args[0])
	},
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Resolve an active or acknowledged alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ResolveAlert(cmd.Context(), args[0])
	},
}

func init() {
	alertsListCmd.Flags().StringVar(&alertsBudget, "budget", "", "Only alerts of this budget")
	alertsListCmd.Flags().StringVar(&alertsStatus, "status", "", "Filter by status: active, acknowledged, resolved")
	alertsListCmd.Flags().IntVar(&alertsLimit, "limit", 50, "Maximum rows")
	alertsListCmd.Flags().BoolVar(&alertsJSON, "json", false, "Print JSON instead of a table")

	alertsCmd.AddCommand(alertsListCmd, alertsAckCmd, alertsResolveCmd)
}
