package alerting

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgetwatch/internal/variance"
)

// Level is a configurable percentage-of-budget trigger point.
type Level int

const (
	Level50  Level = 50
	Level75  Level = 75
	Level90  Level = 90
	Level100 Level = 100
)

// Levels lists every supported threshold, ascending.
var Levels = []Level{Level50, Level75, Level90, Level100}

// Severity is the urgency tier of an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// ErrInvalidTransition is returned when an alert cannot move to the requested status.
var ErrInvalidTransition = errors.New("alerting: invalid status transition")

// Thresholds records which levels are enabled.
type Thresholds struct {
	T50  bool `mapstructure:"t50" json:"t50"`
	T75  bool `mapstructure:"t75" json:"t75"`
	T90  bool `mapstructure:"t90" json:"t90"`
	T100 bool `mapstructure:"t100" json:"t100"`
}

// AllThresholds enables every level.
func AllThresholds() Thresholds {
	return Thresholds{T50: true, T75: true, T90: true, T100: true}
}

// Enabled reports whether level is switched on.
func (t Thresholds) Enabled(level Level) bool {
	switch level {
	case Level50:
		return t.T50
	case Level75:
		return t.T75
	case Level90:
		return t.T90
	case Level100:
		return t.T100
	}
	return false
}

// Any reports whether at least one level is enabled.
func (t Thresholds) Any() bool {
	return t.T50 || t.T75 || t.T90 || t.T100
}

// SeverityFor maps a crossed level to its severity.
func SeverityFor(level Level) Severity {
	switch {
	case level >= Level90:
		return SeverityCritical
	case level >= Level75:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Fired is the set of levels already raised for one category in one period.
type Fired map[Level]bool

// Highest returns the largest fired level, or zero when none fired.
func (f Fired) Highest() Level {
	var top Level
	for level, ok := range f {
		if ok && level > top {
			top = level
		}
	}
	return top
}

// Event is a raised budget alert.
type Event struct {
	ID             string          `json:"id"`
	BudgetID       string          `json:"budget_id"`
	Category       string          `json:"category"`
	PeriodKey      string          `json:"period_key"`
	PeriodEnd      time.Time       `json:"period_end"`
	Threshold      Level           `json:"threshold"`
	Percentage     decimal.Decimal `json:"percentage"`
	Budgeted       decimal.Decimal `json:"budgeted"`
	Actual         decimal.Decimal `json:"actual"`
	Severity       Severity        `json:"severity"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	AcknowledgedAt *time.Time      `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
}

// Meta carries the context stamped onto new events.
type Meta struct {
	BudgetID  string
	PeriodKey string
	PeriodEnd time.Time
	Now       time.Time
}

// Evaluate returns an alert when the comparison reaches an enabled level above
// every level already fired for the category, or nil otherwise. Only the
// highest crossed level fires.
func Evaluate(c variance.ComparisonResult, thresholds Thresholds, fired Fired, meta Meta) *Event {
	if !thresholds.Any() {
		return nil
	}

	var crossed Level
	for _, level := range Levels {
		if !thresholds.Enabled(level) {
			continue
		}
		if c.Percentage.GreaterThanOrEqual(decimal.NewFromInt(int64(level))) {
			crossed = level
		}
	}
	if crossed == 0 || crossed <= fired.Highest() {
		return nil
	}

	return &Event{
		ID:         uuid.NewString(),
		BudgetID:   meta.BudgetID,
		Category:   c.Category,
		PeriodKey:  meta.PeriodKey,
		PeriodEnd:  meta.PeriodEnd,
		Threshold:  crossed,
		Percentage: c.Percentage,
		Budgeted:   c.Budgeted,
		Actual:     c.Actual,
		Severity:   SeverityFor(crossed),
		Status:     StatusActive,
		CreatedAt:  meta.Now,
	}
}

// EvaluateAll runs Evaluate for each comparison. firedByCategory is keyed by
// variance.CategoryKey.
func EvaluateAll(comparisons []variance.ComparisonResult, thresholds Thresholds, firedByCategory map[string]Fired, meta Meta) []Event {
	events := make([]Event, 0)
	for _, c := range comparisons {
		if evt := Evaluate(c, thresholds, firedByCategory[variance.CategoryKey(c.Category)], meta); evt != nil {
			events = append(events, *evt)
		}
	}
	return events
}

// Acknowledge moves an active alert to acknowledged.
func (e *Event) Acknowledge(at time.Time) error {
	if !CanTransition(e.Status, StatusAcknowledged) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, StatusAcknowledged)
	}
	e.Status = StatusAcknowledged
	e.AcknowledgedAt = &at
	return nil
}

// Resolve closes an active or acknowledged alert.
func (e *Event) Resolve(at time.Time) error {
	if !CanTransition(e.Status, StatusResolved) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, StatusResolved)
	}
	e.Status = StatusResolved
	e.ResolvedAt = &at
	return nil
}

// CanTransition reports whether an alert in from may move to to. Alerts never
// move backwards.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusAcknowledged:
		return from == StatusActive
	case StatusResolved:
		return from == StatusActive || from == StatusAcknowledged
	}
	return false
}
