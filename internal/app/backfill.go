package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetwatch/internal/service"
	"budgetwatch/internal/storage"
)

const day = 24 * time.Hour

// Backfill replays daily evaluations between From and To so alerts that would
// have fired in the past are recorded with the day they were crossed.
// Notifications are never sent.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	ids, err := a.budgetIDs(opts.BudgetID)
	if err != nil {
		return err
	}

	start := alignForward(opts.From.UTC(), day)
	end := opts.To.UTC()
	if !start.Before(end) {
		return errors.New("backfill range is empty, check --from/--to")
	}

	rt, err := a.open(ctx, nil, false)
	if err != nil {
		return err
	}
	defer rt.close()

	svc := rt.svc
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: alerts are replayed in memory and not written")
		svc = service.New(a.Config, nil, rt.source, storage.NewOverlayAlertStore(rt.alerts), nil, a.Logger, service.WithClock(a.clock()))
	}

	processed := 0
	failed := 0
	raised := 0
	for at := start; at.Before(end); at = at.Add(day) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for _, id := range ids {
			res, err := svc.Evaluate(ctx, service.Request{BudgetID: id, AsOf: at, Quiet: true})
			if err != nil {
				failed++
				a.Logger.Error().Err(err).Str("budget_id", id).Time("as_of", at).Msg("backfill evaluation failed")
				continue
			}
			processed++
			raised += len(res.NewAlerts)
			for _, evt := range res.NewAlerts {
				a.Logger.Info().
					Str("budget_id", id).
					Str("category", evt.Category).
					Int("threshold", int(evt.Threshold)).
					Time("as_of", at).
					Msg("backfilled alert")
			}
		}
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Int("alerts", raised).Msg("backfill finished")
	if failed > 0 {
		return fmt.Errorf("%d backfill evaluations failed, check the logs", failed)
	}
	return nil
}

func alignForward(t time.Time, interval time.Duration) time.Time {
	truncated := t.Truncate(interval)
	if truncated.Before(t) {
		return truncated.Add(interval)
	}
	return truncated
}
