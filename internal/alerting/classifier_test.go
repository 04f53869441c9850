package alerting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetwatch/internal/variance"
)

var meta = Meta{
	BudgetID:  "b1",
	PeriodKey: "2026-01-01",
	PeriodEnd: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	Now:       time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
}

func comparison(category string, pct int64) variance.ComparisonResult {
	return variance.ComparisonResult{
		Category:   category,
		Budgeted:   decimal.NewFromInt(100),
		Actual:     decimal.NewFromInt(pct),
		Difference: decimal.NewFromInt(pct - 100),
		Percentage: decimal.NewFromInt(pct),
		Status:     variance.ClassifyPercentage(decimal.NewFromInt(pct)),
		Allocated:  true,
	}
}

func TestEvaluateFiresHighestCrossedOnly(t *testing.T) {
	thresholds := Thresholds{T50: true, T75: true, T90: true, T100: false}

	evt := Evaluate(comparison("Travel", 95), thresholds, nil, meta)
	require.NotNil(t, evt)
	assert.Equal(t, Level90, evt.Threshold)
	assert.Equal(t, SeverityCritical, evt.Severity)
	assert.Equal(t, StatusActive, evt.Status)
	assert.Equal(t, "Travel", evt.Category)
	assert.Equal(t, "b1", evt.BudgetID)
	assert.Equal(t, "2026-01-01", evt.PeriodKey)
	assert.Equal(t, meta.PeriodEnd, evt.PeriodEnd)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, meta.Now, evt.CreatedAt)

	events := EvaluateAll([]variance.ComparisonResult{comparison("Travel", 95)}, thresholds, nil, meta)
	assert.Len(t, events, 1)
}

func TestEvaluateSeverityMapping(t *testing.T) {
	all := AllThresholds()
	cases := []struct {
		pct      int64
		level    Level
		severity Severity
	}{
		{50, Level50, SeverityInfo},
		{74, Level50, SeverityInfo},
		{75, Level75, SeverityWarning},
		{90, Level90, SeverityCritical},
		{100, Level100, SeverityCritical},
		{250, Level100, SeverityCritical},
	}
	for _, tc := range cases {
		evt := Evaluate(comparison("Rent", tc.pct), all, nil, meta)
		require.NotNil(t, evt, "pct %d", tc.pct)
		assert.Equal(t, tc.level, evt.Threshold, "pct %d", tc.pct)
		assert.Equal(t, tc.severity, evt.Severity, "pct %d", tc.pct)
	}

	assert.Nil(t, Evaluate(comparison("Rent", 49), all, nil, meta))
}

func TestEvaluateRespectsDisabledThresholds(t *testing.T) {
	assert.Nil(t, Evaluate(comparison("Rent", 80), Thresholds{T90: true, T100: true}, nil, meta))

	evt := Evaluate(comparison("Rent", 120), Thresholds{T50: true}, nil, meta)
	require.NotNil(t, evt)
	assert.Equal(t, Level50, evt.Threshold)
	assert.Equal(t, SeverityInfo, evt.Severity)
}

func TestEvaluateWithoutThresholdsIsNotAnError(t *testing.T) {
	assert.Nil(t, Evaluate(comparison("Rent", 500), Thresholds{}, nil, meta))
	assert.Empty(t, EvaluateAll([]variance.ComparisonResult{comparison("Rent", 500)}, Thresholds{}, nil, meta))
}

func TestEvaluateIsMonotonePerCategory(t *testing.T) {
	all := AllThresholds()
	fired := Fired{}

	for _, pct := range []int64{55, 60, 80, 70, 92, 40, 95, 101, 150, 99} {
		evt := Evaluate(comparison("Food", pct), all, fired, meta)
		if evt == nil {
			continue
		}
		assert.Greater(t, evt.Threshold, fired.Highest(), "pct %d", pct)
		fired[evt.Threshold] = true
	}
	assert.Equal(t, Fired{Level50: true, Level75: true, Level90: true, Level100: true}, fired)

	for _, pct := range []int64{50, 75, 90, 100, 1000} {
		assert.Nil(t, Evaluate(comparison("Food", pct), all, fired, meta))
	}
}

func TestEvaluateAllUsesCategoryKey(t *testing.T) {
	fired := map[string]Fired{"travel": {Level90: true}}
	events := EvaluateAll([]variance.ComparisonResult{
		comparison(" Travel", 95),
		comparison("Food", 95),
	}, AllThresholds(), fired, meta)

	require.Len(t, events, 1)
	assert.Equal(t, "Food", events[0].Category)
}

func TestUnallocatedComparisonNeverAlerts(t *testing.T) {
	c := variance.ComparisonResult{
		Category: "Software",
		Budgeted: decimal.Zero,
		Actual:   decimal.NewFromInt(500),
		Status:   variance.StatusOver,
	}
	assert.Nil(t, Evaluate(c, AllThresholds(), nil, meta))
}

func TestLifecycle(t *testing.T) {
	evt := Evaluate(comparison("Travel", 95), AllThresholds(), nil, meta)
	require.NotNil(t, evt)

	ackAt := meta.Now.Add(time.Hour)
	require.NoError(t, evt.Acknowledge(ackAt))
	assert.Equal(t, StatusAcknowledged, evt.Status)
	require.NotNil(t, evt.AcknowledgedAt)
	assert.Equal(t, ackAt, *evt.AcknowledgedAt)

	assert.ErrorIs(t, evt.Acknowledge(ackAt), ErrInvalidTransition)

	resolveAt := ackAt.Add(time.Hour)
	require.NoError(t, evt.Resolve(resolveAt))
	assert.Equal(t, StatusResolved, evt.Status)
	require.NotNil(t, evt.ResolvedAt)

	assert.ErrorIs(t, evt.Resolve(resolveAt), ErrInvalidTransition)
	assert.ErrorIs(t, evt.Acknowledge(resolveAt), ErrInvalidTransition)
}

func TestResolveDirectlyFromActive(t *testing.T) {
	evt := Evaluate(comparison("Travel", 60), AllThresholds(), nil, meta)
	require.NotNil(t, evt)
	require.NoError(t, evt.Resolve(meta.Now))
	assert.Nil(t, evt.AcknowledgedAt)
	assert.Equal(t, StatusResolved, evt.Status)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusActive, StatusAcknowledged))
	assert.True(t, CanTransition(StatusActive, StatusResolved))
	assert.True(t, CanTransition(StatusAcknowledged, StatusResolved))
	assert.False(t, CanTransition(StatusAcknowledged, StatusActive))
	assert.False(t, CanTransition(StatusResolved, StatusActive))
	assert.False(t, CanTransition(StatusResolved, StatusAcknowledged))
	assert.False(t, CanTransition(StatusActive, StatusActive))
}
