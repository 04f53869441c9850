// Package report rolls engine outputs up into summary figures for display.
package report

import (
	"strings"

	"github.com/shopspring/decimal"

	"budgetwatch/internal/alerting"
	"budgetwatch/internal/recurrence"
	"budgetwatch/internal/variance"
)

var hundred = decimal.NewFromInt(100)

// Input is the snapshot a summary is computed from.
type Input struct {
	Comparisons []variance.ComparisonResult
	Alerts      []alerting.Event
	Projections []recurrence.Projection
	Issues      []recurrence.RecordIssue
}

// Recurring holds monthly and yearly totals for a set of obligations.
type Recurring struct {
	Monthly decimal.Decimal `json:"monthly"`
	Yearly  decimal.Decimal `json:"yearly"`
	Count   int             `json:"count"`
}

func (r Recurring) add(p recurrence.Projection) Recurring {
	return Recurring{
		Monthly: r.Monthly.Add(p.MonthlyEquivalent),
		Yearly:  r.Yearly.Add(p.YearlyEquivalent),
		Count:   r.Count + 1,
	}
}

// Summary is the aggregate view consumed by the presentation layer.
type Summary struct {
	TotalBudgeted   decimal.Decimal `json:"total_budgeted"`
	TotalActual     decimal.Decimal `json:"total_actual"`
	TotalDifference decimal.Decimal `json:"total_difference"`
	Remaining       decimal.Decimal `json:"remaining"`
	UtilisationPct  decimal.Decimal `json:"utilisation_pct"`

	CategoriesByStatus  map[variance.Status]int   `json:"categories_by_status"`
	UnallocatedCount    int                       `json:"unallocated_count"`
	AlertsBySeverity    map[alerting.Severity]int `json:"alerts_by_severity"`
	AlertsByStatus      map[alerting.Status]int   `json:"alerts_by_status"`
	ObligationsByStatus map[recurrence.Status]int `json:"obligations_by_status"`

	// Active obligations only.
	MonthlyRecurring    decimal.Decimal      `json:"monthly_recurring"`
	YearlyRecurring     decimal.Decimal      `json:"yearly_recurring"`
	RecurringByCurrency map[string]Recurring `json:"recurring_by_currency"`
	RecurringIncome     Recurring            `json:"recurring_income"`
	RecurringOutgoing   Recurring            `json:"recurring_outgoing"`

	IssueCount int `json:"issue_count"`
}

// Summarize reduces the input to a Summary. The same input always yields the same output.
func Summarize(in Input) Summary {
	s := Summary{
		CategoriesByStatus:  make(map[variance.Status]int),
		AlertsBySeverity:    make(map[alerting.Severity]int),
		AlertsByStatus:      make(map[alerting.Status]int),
		ObligationsByStatus: make(map[recurrence.Status]int),
		RecurringByCurrency: make(map[string]Recurring),
		IssueCount:          len(in.Issues),
	}

	for _, c := range in.Comparisons {
		s.TotalBudgeted = s.TotalBudgeted.Add(c.Budgeted)
		s.TotalActual = s.TotalActual.Add(c.Actual)
		s.TotalDifference = s.TotalDifference.Add(c.Difference)
		s.CategoriesByStatus[c.Status]++
		if !c.Allocated {
			s.UnallocatedCount++
		}
	}
	s.Remaining = s.TotalBudgeted.Sub(s.TotalActual)
	if s.TotalBudgeted.IsPositive() {
		s.UtilisationPct = s.TotalActual.Div(s.TotalBudgeted).Mul(hundred)
	}

	for _, a := range in.Alerts {
		s.AlertsBySeverity[a.Severity]++
		s.AlertsByStatus[a.Status]++
	}

	for _, p := range in.Projections {
		s.ObligationsByStatus[p.Status]++
		if !p.Obligation.IsActive {
			continue
		}
		s.MonthlyRecurring = s.MonthlyRecurring.Add(p.MonthlyEquivalent)
		s.YearlyRecurring = s.YearlyRecurring.Add(p.YearlyEquivalent)

		currency := strings.ToUpper(strings.TrimSpace(p.Obligation.Currency))
		s.RecurringByCurrency[currency] = s.RecurringByCurrency[currency].add(p)
		if p.Obligation.Kind.Incoming() {
			s.RecurringIncome = s.RecurringIncome.add(p)
		} else {
			s.RecurringOutgoing = s.RecurringOutgoing.add(p)
		}
	}

	return s
}

// NetRecurring is monthly recurring income minus monthly recurring outgoings.
func (s Summary) NetRecurring() decimal.Decimal {
	return s.RecurringIncome.Monthly.Sub(s.RecurringOutgoing.Monthly)
}
