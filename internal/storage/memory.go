package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"budgetwatch/internal/alerting"
	"budgetwatch/internal/variance"
)

// MemoryAlertStore keeps alerts in process memory. It is used when no
// database is configured and by tests.
type MemoryAlertStore struct {
	mu     sync.Mutex
	alerts map[string]alerting.Event
}

// NewMemoryAlertStore returns an empty store.
func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{alerts: make(map[string]alerting.Event)}
}

func dedupKey(evt alerting.Event) string {
	return fmt.Sprintf("%s|%s|%s|%d", evt.BudgetID, variance.CategoryKey(evt.Category), evt.PeriodKey, evt.Threshold)
}

// ListFiredThresholds implements AlertStore.
func (m *MemoryAlertStore) ListFiredThresholds(_ context.Context, budgetID, periodKey string) (map[string]alerting.Fired, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fired := make(map[string]alerting.Fired)
	for _, evt := range m.alerts {
		if evt.BudgetID != budgetID || evt.PeriodKey != periodKey {
			continue
		}
		key := variance.CategoryKey(evt.Category)
		if fired[key] == nil {
			fired[key] = alerting.Fired{}
		}
		fired[key][evt.Threshold] = true
	}
	return fired, nil
}

// InsertAlert implements AlertStore.
func (m *MemoryAlertStore) InsertAlert(_ context.Context, evt alerting.Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := dedupKey(evt)
	for _, existing := range m.alerts {
		if dedupKey(existing) == key {
			return false, nil
		}
	}
	m.alerts[evt.ID] = evt
	return true, nil
}

// GetAlert implements AlertStore.
func (m *MemoryAlertStore) GetAlert(_ context.Context, id string) (alerting.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evt, ok := m.alerts[id]
	if !ok {
		return alerting.Event{}, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return evt, nil
}

// UpdateAlertStatus implements AlertStore.
func (m *MemoryAlertStore) UpdateAlertStatus(_ context.Context, evt alerting.Event, from alerting.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.alerts[evt.ID]
	if !ok {
		return fmt.Errorf("alert %s: %w", evt.ID, ErrNotFound)
	}
	if stored.Status != from {
		return fmt.Errorf("alert %s: %w", evt.ID, ErrStaleAlert)
	}
	stored.Status = evt.Status
	stored.AcknowledgedAt = evt.AcknowledgedAt
	stored.ResolvedAt = evt.ResolvedAt
	m.alerts[evt.ID] = stored
	return nil
}

// ListAlerts implements AlertStore.
func (m *MemoryAlertStore) ListAlerts(_ context.Context, filter AlertFilter) ([]alerting.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]alerting.Event, 0, len(m.alerts))
	for _, evt := range m.alerts {
		if filter.BudgetID != "" && evt.BudgetID != filter.BudgetID {
			continue
		}
		if filter.Status != "" && evt.Status != filter.Status {
			continue
		}
		out = append(out, evt)
	}
	return newestFirst(out, filter.Limit), nil
}

// newestFirst orders alerts newest first and truncates them to limit.
func newestFirst(out []alerting.Event, limit int) []alerting.Event {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		if out[i].Threshold != out[j].Threshold {
			return out[i].Threshold > out[j].Threshold
		}
		return out[i].ID < out[j].ID
	})
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DeleteAlertsBefore implements AlertStore. Alerts of a period still running
// at olderThan are kept so their thresholds stay fired.
func (m *MemoryAlertStore) DeleteAlertsBefore(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, evt := range m.alerts {
		if evt.Status == alerting.StatusResolved && evt.CreatedAt.Before(olderThan) && periodEnded(evt, olderThan) {
			delete(m.alerts, id)
			deleted++
		}
	}
	return deleted, nil
}

func periodEnded(evt alerting.Event, at time.Time) bool {
	return !evt.PeriodEnd.IsZero() && !evt.PeriodEnd.After(at)
}

var (
	_ AlertStore = (*Store)(nil)
	_ AlertStore = (*MemoryAlertStore)(nil)
)
