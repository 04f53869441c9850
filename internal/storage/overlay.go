package storage

import (
	"context"
	"errors"
	"time"

	"budgetwatch/internal/alerting"
	"budgetwatch/internal/variance"
)

// OverlayAlertStore reads through to a base store and keeps every write in
// memory. The base store is never modified.
type OverlayAlertStore struct {
	base  AlertStore
	local *MemoryAlertStore
}

// NewOverlayAlertStore wraps base.
func NewOverlayAlertStore(base AlertStore) *OverlayAlertStore {
	return &OverlayAlertStore{base: base, local: NewMemoryAlertStore()}
}

// ListFiredThresholds implements AlertStore.
func (o *OverlayAlertStore) ListFiredThresholds(ctx context.Context, budgetID, periodKey string) (map[string]alerting.Fired, error) {
	fired, err := o.base.ListFiredThresholds(ctx, budgetID, periodKey)
	if err != nil {
		return nil, err
	}
	if fired == nil {
		fired = make(map[string]alerting.Fired)
	}
	local, err := o.local.ListFiredThresholds(ctx, budgetID, periodKey)
	if err != nil {
		return nil, err
	}
	for key, levels := range local {
		if fired[key] == nil {
			fired[key] = alerting.Fired{}
		}
		for level := range levels {
			fired[key][level] = true
		}
	}
	return fired, nil
}

// InsertAlert implements AlertStore. An alert already recorded in the base
// store is reported as a duplicate.
func (o *OverlayAlertStore) InsertAlert(ctx context.Context, evt alerting.Event) (bool, error) {
	fired, err := o.base.ListFiredThresholds(ctx, evt.BudgetID, evt.PeriodKey)
	if err != nil {
		return false, err
	}
	if fired[variance.CategoryKey(evt.Category)][evt.Threshold] {
		return false, nil
	}
	return o.local.InsertAlert(ctx, evt)
}

// GetAlert implements AlertStore.
func (o *OverlayAlertStore) GetAlert(ctx context.Context, id string) (alerting.Event, error) {
	evt, err := o.local.GetAlert(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return o.base.GetAlert(ctx, id)
	}
	return evt, err
}

// UpdateAlertStatus implements AlertStore. Only alerts written through the
// overlay can change.
func (o *OverlayAlertStore) UpdateAlertStatus(ctx context.Context, evt alerting.Event, from alerting.Status) error {
	return o.local.UpdateAlertStatus(ctx, evt, from)
}

// ListAlerts implements AlertStore.
func (o *OverlayAlertStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]alerting.Event, error) {
	base, err := o.base.ListAlerts(ctx, filter)
	if err != nil {
		return nil, err
	}
	local, err := o.local.ListAlerts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newestFirst(append(local, base...), filter.Limit), nil
}

// DeleteAlertsBefore implements AlertStore.
func (o *OverlayAlertStore) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	return o.local.DeleteAlertsBefore(ctx, olderThan)
}
