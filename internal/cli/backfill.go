package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"budgetwatch/internal/app"
)

var (
	backfillBudget string
	backfillFrom   string
	backfillTo     string
	backfillDryRun bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay daily evaluations to record historical alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillFrom == "" || backfillTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		from, err := parseTime("from", backfillFrom)
		if err != nil {
			return err
		}
		to, err := parseTime("to", backfillTo)
		if err != nil {
			return err
		}
		if !from.Before(to) {
			return fmt.Errorf("--from must be before --to")
		}

		opts := app.BackfillOptions{
			BudgetID: backfillBudget,
			From:     from,
			To:       to,
			DryRun:   backfillDryRun,
		}
		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillBudget, "budget", "", "Budget ID (defaults to engine.budget_ids)")
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "First day (RFC3339 or YYYY-MM-DD, inclusive)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "End (RFC3339 or YYYY-MM-DD, exclusive)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Replay in memory without writing alerts")
}
