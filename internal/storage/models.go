package storage

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"budgetwatch/internal/alerting"
)

// AlertFilter narrows ListAlerts. Zero values match everything.
type AlertFilter struct {
	BudgetID string
	Status   alerting.Status
	Limit    int
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}

func scanAlert(row pgx.Row) (alerting.Event, error) {
	var (
		evt          alerting.Event
		threshold    int
		severity     string
		status       string
		percentStr   string
		budgetedStr  string
		actualStr    string
		periodEnd    *time.Time
		acknowledged *time.Time
		resolved     *time.Time
	)
	if err := row.Scan(
		&evt.ID,
		&evt.BudgetID,
		&evt.Category,
		&evt.PeriodKey,
		&periodEnd,
		&threshold,
		&percentStr,
		&budgetedStr,
		&actualStr,
		&severity,
		&status,
		&evt.CreatedAt,
		&acknowledged,
		&resolved,
	); err != nil {
		return alerting.Event{}, err
	}

	var err error
	if evt.Percentage, err = parseDecimal("percentage", percentStr); err != nil {
		return alerting.Event{}, err
	}
	if evt.Budgeted, err = parseDecimal("budgeted", budgetedStr); err != nil {
		return alerting.Event{}, err
	}
	if evt.Actual, err = parseDecimal("actual", actualStr); err != nil {
		return alerting.Event{}, err
	}
	evt.Threshold = alerting.Level(threshold)
	evt.Severity = alerting.Severity(severity)
	evt.Status = alerting.Status(status)
	if periodEnd != nil {
		evt.PeriodEnd = periodEnd.UTC()
	}
	evt.AcknowledgedAt = acknowledged
	evt.ResolvedAt = resolved
	return evt, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
