package cli

import (
	"github.com/spf13/cobra"

	"budgetwatch/internal/app"
)

var (
	reportBudget  string
	reportOwner   string
	reportAsOf    string
	reportJSON    bool
	reportPersist bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show budget variance, alerts and upcoming obligations",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseTime("as-of", reportAsOf)
		if err != nil {
			return err
		}
		return getApp().Report(cmd.Context(), app.ReportOptions{
			BudgetID: reportBudget,
			OwnerID:  reportOwner,
			AsOf:     asOf,
			JSON:     reportJSON,
			Persist:  reportPersist,
		})
	},
}

var (
	upcomingOwner   string
	upcomingAsOf    string
	upcomingHorizon int
	upcomingLimit   int
	upcomingJSON    bool
)

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List recurring obligations due soon",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseTime("as-of", upcomingAsOf)
		if err != nil {
			return err
		}
		return getApp().Upcoming(cmd.Context(), app.UpcomingOptions{
			OwnerID: upcomingOwner,
			AsOf:    asOf,
			Horizon: upcomingHorizon,
			Limit:   upcomingLimit,
			JSON:    upcomingJSON,
		})
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportBudget, "budget", "", "Budget ID (defaults to engine.budget_ids)")
	reportCmd.Flags().StringVar(&reportOwner, "owner", "", "Owner whose obligations are projected")
	reportCmd.Flags().StringVar(&reportAsOf, "as-of", "", "Evaluation time (RFC3339 or YYYY-MM-DD, defaults to now)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print JSON instead of tables")
	reportCmd.Flags().BoolVar(&reportPersist, "persist", false, "Record new alerts and send notifications")

	upcomingCmd.Flags().StringVar(&upcomingOwner, "owner", "", "Owner ID (defaults to engine.owner_id)")
	upcomingCmd.Flags().StringVar(&upcomingAsOf, "as-of", "", "Reference time (RFC3339 or YYYY-MM-DD, defaults to now)")
	upcomingCmd.Flags().IntVar(&upcomingHorizon, "horizon", 0, "Days ahead to include (defaults to config)")
	upcomingCmd.Flags().IntVar(&upcomingLimit, "limit", 0, "Maximum rows (defaults to config)")
	upcomingCmd.Flags().BoolVar(&upcomingJSON, "json", false, "Print JSON instead of a table")
}
