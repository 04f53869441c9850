package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"budgetwatch/internal/alerting"
	"budgetwatch/internal/variance"
)

// SimulateOptions describe a synthetic category used to exercise alert channels.
type SimulateOptions struct {
	Category string
	Budgeted decimal.Decimal
	Actual   decimal.Decimal
}

// SimulateAlert pushes a synthetic comparison through the classifier and the
// configured channels without touching any store.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	category := opts.Category
	if category == "" {
		category = "Simulated"
	}
	comparisons, _ := variance.Compare(
		[]variance.Allocation{{CategoryName: category, AllocatedAmount: opts.Budgeted}},
		[]variance.Transaction{{ID: "simulated", CategoryName: category, Amount: opts.Actual}},
	)
	if len(comparisons) == 0 {
		return fmt.Errorf("allocation for %q was rejected, budgeted must be non-negative", category)
	}

	now := a.clock()().UTC()
	meta := alerting.Meta{BudgetID: "simulated", PeriodKey: now.Format("2006-01-02"), Now: now}
	evt := alerting.Evaluate(comparisons[0], a.Config.Alerting.Thresholds, nil, meta)
	if evt == nil {
		a.Logger.Info().
			Str("category", category).
			Str("percentage", comparisons[0].Percentage.StringFixed(2)).
			Msg("no threshold crossed, nothing to send")
		return nil
	}

	return notifier.Notify(ctx, alerting.Notification{
		Event:         *evt,
		BudgetName:    "Simulation",
		Channels:      a.Config.Alerting.Channels,
		AdditionalMsg: "simulated alert",
	})
}
