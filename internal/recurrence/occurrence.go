package recurrence

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes what an obligation represents.
type Kind string

const (
	KindSubscription     Kind = "subscription"
	KindRecurringInvoice Kind = "recurring_invoice"
	KindRecurringIncome  Kind = "recurring_income"
)

// Incoming reports whether the obligation brings money in rather than out.
// Recurring invoices are billed to clients, so they count as income.
func (k Kind) Incoming() bool {
	return k == KindRecurringIncome || k == KindRecurringInvoice
}

// Status is the temporal urgency of an obligation.
type Status string

const (
	StatusPaused  Status = "paused"
	StatusOverdue Status = "overdue"
	StatusDueSoon Status = "due_soon"
	StatusActive  Status = "active"
)

// DueSoonDays is the inclusive upper bound of the due-soon window.
const DueSoonDays = 3

const day = 24 * time.Hour

// Obligation is a subscription, recurring invoice template or recurring income source.
type Obligation struct {
	ID             string          `json:"id" mapstructure:"id"`
	OwnerID        string          `json:"owner_id" mapstructure:"owner_id"`
	Name           string          `json:"name" mapstructure:"name"`
	Kind           Kind            `json:"kind" mapstructure:"kind"`
	Amount         decimal.Decimal `json:"amount" mapstructure:"amount"`
	Currency       string          `json:"currency" mapstructure:"currency"`
	Frequency      Frequency       `json:"frequency" mapstructure:"frequency"`
	Interval       int             `json:"interval" mapstructure:"interval"`
	NextOccurrence time.Time       `json:"next_occurrence" mapstructure:"next_occurrence"`
	IsActive       bool            `json:"is_active" mapstructure:"is_active"`
}

// Validate checks the fields the engine depends on.
func (o Obligation) Validate() error {
	if o.Amount.IsNegative() {
		return invalid("amount", o.Amount.String(), "must not be negative")
	}
	if o.Interval <= 0 {
		return invalid("interval", o.Interval, "must be at least 1")
	}
	if o.NextOccurrence.IsZero() {
		return invalid("next_occurrence", "", "must be set")
	}
	return nil
}

// DaysUntil returns the number of days from asOf to next, rounded up.
func DaysUntil(next, asOf time.Time) int {
	diff := next.Sub(asOf)
	return int(math.Ceil(float64(diff) / float64(day)))
}

// Classify maps activity and distance to a Status. Inactive always wins.
func Classify(isActive bool, daysUntil int) Status {
	switch {
	case !isActive:
		return StatusPaused
	case daysUntil < 0:
		return StatusOverdue
	case daysUntil <= DueSoonDays:
		return StatusDueSoon
	default:
		return StatusActive
	}
}

// Advance returns the occurrence interval periods after from. Month-based
// cadences clamp to the last day of the target month.
func Advance(from time.Time, frequency Frequency, interval int) time.Time {
	return advanceN(from, frequency, interval, 1)
}

func advanceN(anchor time.Time, frequency Frequency, interval, steps int) time.Time {
	n := interval * steps
	switch frequency {
	case Weekly:
		return anchor.AddDate(0, 0, 7*n)
	case Biweekly:
		return anchor.AddDate(0, 0, 14*n)
	case Quarterly:
		return addMonthsClamped(anchor, 3*n)
	case Yearly:
		return addMonthsClamped(anchor, monthsPerYear*n)
	default:
		return addMonthsClamped(anchor, n)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, dom := t.Date()
	first := time.Date(year, month, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)
	last := target.AddDate(0, 1, -1).Day()
	if dom > last {
		dom = last
	}
	return target.AddDate(0, 0, dom-1)
}

// Occurrences lists concrete occurrence dates of o within [asOf, until].
// Dates step from the stored next occurrence, so an overdue obligation yields
// only the dates still ahead of asOf. Steps are computed from the anchor so
// month-end clamping does not drift. max <= 0 means no cap.
func Occurrences(o Obligation, asOf, until time.Time, max int) ([]time.Time, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0)
	for i := 0; ; i++ {
		if max > 0 && len(dates) >= max {
			break
		}
		next := advanceN(o.NextOccurrence, o.Frequency, o.Interval, i)
		if next.After(until) {
			break
		}
		if next.Before(asOf) {
			continue
		}
		dates = append(dates, next)
	}
	return dates, nil
}

// Projection is the per-obligation output of the normalizer and scheduler.
type Projection struct {
	Obligation        Obligation      `json:"obligation"`
	MonthlyEquivalent decimal.Decimal `json:"monthly_equivalent"`
	YearlyEquivalent  decimal.Decimal `json:"yearly_equivalent"`
	DaysUntil         int             `json:"days_until"`
	Status            Status          `json:"status"`
	// Following is the occurrence after NextOccurrence.
	Following time.Time `json:"following"`
	// Occurrences is filled by Schedule.
	Occurrences []time.Time `json:"occurrences,omitempty"`
}

// ProjectOne normalises and classifies a single obligation as of asOf.
func ProjectOne(o Obligation, asOf time.Time) (Projection, error) {
	if err := o.Validate(); err != nil {
		return Projection{}, err
	}
	monthly, err := MonthlyEquivalent(o.Amount, o.Frequency, o.Interval)
	if err != nil {
		return Projection{}, err
	}
	days := DaysUntil(o.NextOccurrence, asOf)
	return Projection{
		Obligation:        o,
		MonthlyEquivalent: monthly,
		YearlyEquivalent:  monthly.Mul(twelve),
		DaysUntil:         days,
		Status:            Classify(o.IsActive, days),
		Following:         Advance(o.NextOccurrence, o.Frequency, o.Interval),
	}, nil
}

// Project runs ProjectOne over a batch. Malformed obligations are skipped and
// reported; the rest are returned in input order.
func Project(obligations []Obligation, asOf time.Time) ([]Projection, []RecordIssue) {
	projections := make([]Projection, 0, len(obligations))
	var issues []RecordIssue
	for _, o := range obligations {
		p, err := ProjectOne(o, asOf)
		if err != nil {
			issues = append(issues, NewRecordIssue("obligation", o.ID, err))
			continue
		}
		projections = append(projections, p)
	}
	return projections, issues
}

// Upcoming selects active projections due within horizon days, nearest first.
// Ties are ordered by name (case-insensitive) and then ID. limit <= 0 keeps all.
func Upcoming(projections []Projection, horizon, limit int) []Projection {
	out := make([]Projection, 0)
	for _, p := range projections {
		if !p.Obligation.IsActive {
			continue
		}
		if p.DaysUntil < 0 || p.DaysUntil > horizon {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		ni, nj := strings.ToLower(out[i].Obligation.Name), strings.ToLower(out[j].Obligation.Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].Obligation.ID < out[j].Obligation.ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Schedule returns a copy of projections with Occurrences filled for the next
// horizon days, at most max dates each.
func Schedule(projections []Projection, asOf time.Time, horizon, max int) []Projection {
	until := asOf.AddDate(0, 0, horizon)
	out := make([]Projection, len(projections))
	for i, p := range projections {
		dates, err := Occurrences(p.Obligation, asOf, until, max)
		if err == nil {
			p.Occurrences = dates
		}
		out[i] = p
	}
	return out
}
