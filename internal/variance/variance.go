// Package variance compares actual spend against budget allocations per category.
package variance

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetwatch/internal/recurrence"
)

// Status classifies how a category is tracking against its allocation.
type Status string

const (
	StatusGood    Status = "good"
	StatusWarning Status = "warning"
	StatusOver    Status = "over"
)

var (
	hundred          = decimal.NewFromInt(100)
	warningThreshold = decimal.NewFromInt(80)
)

// BudgetStatus is the lifecycle state of a budget.
type BudgetStatus string

const (
	BudgetActive    BudgetStatus = "active"
	BudgetCompleted BudgetStatus = "completed"
	BudgetPaused    BudgetStatus = "paused"
)

// Budget groups allocations over a period. PeriodEnd is exclusive.
type Budget struct {
	ID          string          `json:"id" mapstructure:"id"`
	OwnerID     string          `json:"owner_id" mapstructure:"owner_id"`
	Name        string          `json:"name" mapstructure:"name"`
	TotalAmount decimal.Decimal `json:"total_amount" mapstructure:"total_amount"`
	PeriodStart time.Time       `json:"period_start" mapstructure:"period_start"`
	PeriodEnd   time.Time       `json:"period_end" mapstructure:"period_end"`
	Status      BudgetStatus    `json:"status" mapstructure:"status"`
	Allocations []Allocation    `json:"allocations" mapstructure:"allocations"`
}

// PeriodKey identifies the budget period for alert de-duplication.
func (b Budget) PeriodKey() string {
	return b.PeriodStart.UTC().Format("2006-01-02")
}

// Contains reports whether t falls within [PeriodStart, PeriodEnd).
func (b Budget) Contains(t time.Time) bool {
	return !t.Before(b.PeriodStart) && t.Before(b.PeriodEnd)
}

// Allocation is one category's planned spend within a budget.
type Allocation struct {
	CategoryName    string          `json:"category_name" mapstructure:"category_name"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount" mapstructure:"allocated_amount"`
}

// Transaction is an actual expense event.
type Transaction struct {
	ID           string          `json:"id" mapstructure:"id"`
	OwnerID      string          `json:"owner_id" mapstructure:"owner_id"`
	CategoryName string          `json:"category_name" mapstructure:"category_name"`
	Amount       decimal.Decimal `json:"amount" mapstructure:"amount"`
	OccurredAt   time.Time       `json:"occurred_at" mapstructure:"occurred_at"`
}

// ComparisonResult is the variance of a single category.
type ComparisonResult struct {
	Category   string          `json:"category"`
	Budgeted   decimal.Decimal `json:"budgeted"`
	Actual     decimal.Decimal `json:"actual"`
	Difference decimal.Decimal `json:"difference"`
	Percentage decimal.Decimal `json:"percentage"`
	Status     Status          `json:"status"`
	Allocated  bool            `json:"allocated"`
}

// CategoryKey normalises a category name for matching.
func CategoryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Percentage returns actual as a percentage of budgeted, or zero when nothing is budgeted.
func Percentage(actual, budgeted decimal.Decimal) decimal.Decimal {
	if !budgeted.IsPositive() {
		return decimal.Zero
	}
	return actual.Div(budgeted).Mul(hundred)
}

// ClassifyPercentage applies the 80/100 split used for allocated categories.
func ClassifyPercentage(pct decimal.Decimal) Status {
	switch {
	case pct.GreaterThan(hundred):
		return StatusOver
	case pct.GreaterThan(warningThreshold):
		return StatusWarning
	default:
		return StatusGood
	}
}

type spend struct {
	name  string
	total decimal.Decimal
	order int
}

// Compare produces one ComparisonResult per category found in allocations or
// transactions, ordered by actual spend descending. Categories are matched
// case-insensitively after trimming. Records that cannot be used are skipped
// and returned as issues.
func Compare(allocations []Allocation, transactions []Transaction) ([]ComparisonResult, []recurrence.RecordIssue) {
	var issues []recurrence.RecordIssue

	actuals := make(map[string]*spend)
	for i, txn := range transactions {
		key := CategoryKey(txn.CategoryName)
		if key == "" {
			issues = append(issues, recurrence.NewRecordIssue("transaction", txn.ID,
				&recurrence.ValidationError{Field: "category_name", Value: txn.CategoryName, Reason: "must not be blank"}))
			continue
		}
		entry, ok := actuals[key]
		if !ok {
			entry = &spend{name: strings.TrimSpace(txn.CategoryName), order: i}
			actuals[key] = entry
		}
		entry.total = entry.total.Add(txn.Amount)
	}

	results := make([]ComparisonResult, 0, len(allocations)+len(actuals))
	seen := make(map[string]struct{}, len(allocations))
	for _, alloc := range allocations {
		key := CategoryKey(alloc.CategoryName)
		if err := validateAllocation(alloc, key, seen); err != nil {
			issues = append(issues, recurrence.NewRecordIssue("allocation", alloc.CategoryName, err))
			continue
		}
		seen[key] = struct{}{}

		actual := decimal.Zero
		if entry, ok := actuals[key]; ok {
			actual = entry.total
			delete(actuals, key)
		}
		results = append(results, allocated(strings.TrimSpace(alloc.CategoryName), alloc.AllocatedAmount, actual))
	}

	leftovers := make([]*spend, 0, len(actuals))
	for _, entry := range actuals {
		leftovers = append(leftovers, entry)
	}
	sort.Slice(leftovers, func(i, j int) bool { return leftovers[i].order < leftovers[j].order })
	for _, entry := range leftovers {
		results = append(results, ComparisonResult{
			Category:   entry.name,
			Budgeted:   decimal.Zero,
			Actual:     entry.total,
			Difference: entry.total,
			Percentage: decimal.Zero,
			Status:     StatusOver,
			Allocated:  false,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if c := results[i].Actual.Cmp(results[j].Actual); c != 0 {
			return c > 0
		}
		return CategoryKey(results[i].Category) < CategoryKey(results[j].Category)
	})

	return results, issues
}

func allocated(name string, budgeted, actual decimal.Decimal) ComparisonResult {
	pct := Percentage(actual, budgeted)
	status := ClassifyPercentage(pct)
	// A zero allocation with positive spend is as unbudgeted as a missing one.
	if budgeted.IsZero() && actual.IsPositive() {
		status = StatusOver
	}
	return ComparisonResult{
		Category:   name,
		Budgeted:   budgeted,
		Actual:     actual,
		Difference: actual.Sub(budgeted),
		Percentage: pct,
		Status:     status,
		Allocated:  true,
	}
}

func validateAllocation(alloc Allocation, key string, seen map[string]struct{}) error {
	if key == "" {
		return &recurrence.ValidationError{Field: "category_name", Value: alloc.CategoryName, Reason: "must not be blank"}
	}
	if alloc.AllocatedAmount.IsNegative() {
		return &recurrence.ValidationError{Field: "allocated_amount", Value: alloc.AllocatedAmount.String(), Reason: "must not be negative"}
	}
	if _, dup := seen[key]; dup {
		return &recurrence.ValidationError{Field: "category_name", Value: alloc.CategoryName, Reason: "duplicate allocation in budget"}
	}
	return nil
}

// FilterPeriod keeps transactions with from <= OccurredAt < to.
func FilterPeriod(transactions []Transaction, from, to time.Time) []Transaction {
	out := make([]Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if txn.OccurredAt.Before(from) || !txn.OccurredAt.Before(to) {
			continue
		}
		out = append(out, txn)
	}
	return out
}
