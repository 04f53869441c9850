package app

import (
	"context"
	"fmt"

	"budgetwatch/internal/alerting"
	"budgetwatch/internal/service"
	"budgetwatch/internal/storage"
)

// ListAlerts prints stored alerts, newest first.
func (a *App) ListAlerts(ctx context.Context, opts AlertListOptions) error {
	status := alerting.Status(opts.Status)
	switch status {
	case "", alerting.StatusActive, alerting.StatusAcknowledged, alerting.StatusResolved:
	default:
		return fmt.Errorf("unknown status %q: use active, acknowledged or resolved", opts.Status)
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListAlerts(ctx, storage.AlertFilter{BudgetID: opts.BudgetID, Status: status, Limit: opts.Limit})
	if err != nil {
		return err
	}

	if opts.JSON {
		return writeJSON(a.Out, alerts)
	}
	if len(alerts) == 0 {
		fmt.Fprintln(a.Out, "no alerts found")
		return nil
	}
	fmt.Fprint(a.Out, alertTable("Alerts", alerts).render())
	return nil
}

// AcknowledgeAlert marks an active alert as acknowledged.
func (a *App) AcknowledgeAlert(ctx context.Context, id string) error {
	return a.transitionAlert(ctx, "acknowledged", func(svc *service.Service) (alerting.Event, error) {
		return svc.Acknowledge(ctx, id)
	})
}

// ResolveAlert closes an active or acknowledged alert.
func (a *App) ResolveAlert(ctx context.Context, id string) error {
	return a.transitionAlert(ctx, "resolved", func(svc *service.Service) (alerting.Event, error) {
		return svc.Resolve(ctx, id)
	})
}

func (a *App) transitionAlert(ctx context.Context, verb string, apply func(*service.Service) (alerting.Event, error)) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	// Status changes only touch the alert store, so no record source is wired.
	svc := service.New(a.Config, nil, nil, store, nil, a.Logger, service.WithClock(a.clock()))
	evt, err := apply(svc)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "alert %s %s (%s, %s %d%%)\n", evt.ID, verb, evt.BudgetID, evt.Category, evt.Threshold)
	return nil
}
