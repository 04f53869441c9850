package variance

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetwatch/internal/recurrence"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func txn(id, category, amount string) Transaction {
	return Transaction{ID: id, CategoryName: category, Amount: dec(amount)}
}

func byCategory(results []ComparisonResult) map[string]ComparisonResult {
	out := make(map[string]ComparisonResult, len(results))
	for _, r := range results {
		out[CategoryKey(r.Category)] = r
	}
	return out
}

func TestCompareTravelScenario(t *testing.T) {
	results, issues := Compare(
		[]Allocation{{CategoryName: "Travel", AllocatedAmount: dec("10000")}},
		[]Transaction{txn("1", "travel", "4000"), txn("2", "Travel", "4500")},
	)
	require.Empty(t, issues)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Travel", r.Category)
	assert.True(t, r.Budgeted.Equal(dec("10000")))
	assert.True(t, r.Actual.Equal(dec("8500")))
	assert.True(t, r.Difference.Equal(dec("-1500")))
	assert.True(t, r.Percentage.Equal(dec("85")), "percentage %s", r.Percentage)
	assert.Equal(t, StatusWarning, r.Status)
	assert.True(t, r.Allocated)
}

func TestCompareUnallocatedCategoryIsOver(t *testing.T) {
	results, issues := Compare(nil, []Transaction{txn("1", "Software", "500")})
	require.Empty(t, issues)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Software", r.Category)
	assert.True(t, r.Budgeted.IsZero())
	assert.True(t, r.Actual.Equal(dec("500")))
	assert.True(t, r.Percentage.IsZero())
	assert.Equal(t, StatusOver, r.Status)
	assert.False(t, r.Allocated)
}

func TestCompareTinyUnallocatedSpendStillOver(t *testing.T) {
	results, _ := Compare(nil, []Transaction{txn("1", "Misc", "0.01")})
	require.Len(t, results, 1)
	assert.Equal(t, StatusOver, results[0].Status)
}

func TestCompareEmptyInputs(t *testing.T) {
	results, issues := Compare(nil, nil)
	assert.Empty(t, results)
	assert.Empty(t, issues)
	assert.NotNil(t, results)
}

func TestCompareTrimsAndFoldsCase(t *testing.T) {
	results, _ := Compare(
		[]Allocation{{CategoryName: "  Office Supplies ", AllocatedAmount: dec("100")}},
		[]Transaction{txn("1", "office supplies", "30"), txn("2", "OFFICE SUPPLIES  ", "20")},
	)
	require.Len(t, results, 1)
	assert.Equal(t, "Office Supplies", results[0].Category)
	assert.True(t, results[0].Actual.Equal(dec("50")))
	assert.Equal(t, StatusGood, results[0].Status)
}

func TestCompareStatusBoundaries(t *testing.T) {
	cases := []struct {
		actual string
		want   Status
	}{
		{"0", StatusGood},
		{"80", StatusGood},
		{"80.01", StatusWarning},
		{"100", StatusWarning},
		{"100.01", StatusOver},
	}
	for _, tc := range cases {
		results, _ := Compare(
			[]Allocation{{CategoryName: "Rent", AllocatedAmount: dec("100")}},
			[]Transaction{txn("1", "Rent", tc.actual)},
		)
		require.Len(t, results, 1)
		assert.Equal(t, tc.want, results[0].Status, "actual %s", tc.actual)
	}
}

func TestCompareZeroAllocationWithSpend(t *testing.T) {
	results, _ := Compare(
		[]Allocation{{CategoryName: "Gifts", AllocatedAmount: decimal.Zero}, {CategoryName: "Idle", AllocatedAmount: decimal.Zero}},
		[]Transaction{txn("1", "gifts", "12")},
	)
	got := byCategory(results)
	assert.Equal(t, StatusOver, got["gifts"].Status)
	assert.True(t, got["gifts"].Allocated)
	assert.Equal(t, StatusGood, got["idle"].Status)
}

func TestCompareSkipsMalformedRecords(t *testing.T) {
	results, issues := Compare(
		[]Allocation{
			{CategoryName: "Food", AllocatedAmount: dec("200")},
			{CategoryName: "food ", AllocatedAmount: dec("50")},
			{CategoryName: "Bad", AllocatedAmount: dec("-1")},
			{CategoryName: "   ", AllocatedAmount: dec("10")},
		},
		[]Transaction{txn("t1", "Food", "20"), txn("t2", "", "99")},
	)

	require.Len(t, results, 1)
	assert.Equal(t, "Food", results[0].Category)
	assert.True(t, results[0].Budgeted.Equal(dec("200")))
	assert.True(t, results[0].Actual.Equal(dec("20")))

	require.Len(t, issues, 4)
	assert.Equal(t, "transaction", issues[0].Kind)
	assert.Equal(t, "t2", issues[0].RecordID)
	for _, issue := range issues {
		assert.ErrorIs(t, issue.Err, recurrence.ErrValidation)
	}
}

func TestCompareOrdersByActualDescending(t *testing.T) {
	results, _ := Compare(
		[]Allocation{
			{CategoryName: "A", AllocatedAmount: dec("100")},
			{CategoryName: "B", AllocatedAmount: dec("100")},
			{CategoryName: "C", AllocatedAmount: dec("100")},
		},
		[]Transaction{txn("1", "b", "70"), txn("2", "z", "90"), txn("3", "a", "10")},
	)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Category)
	}
	assert.Equal(t, []string{"z", "B", "A", "C"}, names)
}

func TestCompareInvariantsOverRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	categories := []string{"Food", "food", " Travel", "RENT", "rent ", "Software", "Utilities", "misc"}

	for round := 0; round < 200; round++ {
		var allocations []Allocation
		used := map[string]bool{}
		nAlloc, nTxn := rng.Intn(5), rng.Intn(12)
		for i := 0; i < nAlloc; i++ {
			name := categories[rng.Intn(len(categories))]
			if used[CategoryKey(name)] {
				continue
			}
			used[CategoryKey(name)] = true
			allocations = append(allocations, Allocation{
				CategoryName:    name,
				AllocatedAmount: decimal.NewFromInt(int64(rng.Intn(1000))),
			})
		}
		var transactions []Transaction
		for i := 0; i < nTxn; i++ {
			transactions = append(transactions, Transaction{
				ID:           fmt.Sprintf("%d-%d", round, i),
				CategoryName: categories[rng.Intn(len(categories))],
				Amount:       decimal.New(int64(rng.Intn(100000)), -2),
			})
		}

		results, issues := Compare(allocations, transactions)
		require.Empty(t, issues)

		expected := map[string]bool{}
		for _, a := range allocations {
			expected[CategoryKey(a.CategoryName)] = true
		}
		for _, tx := range transactions {
			expected[CategoryKey(tx.CategoryName)] = true
		}

		seen := map[string]int{}
		for _, r := range results {
			seen[CategoryKey(r.Category)]++
			assert.True(t, r.Difference.Equal(r.Actual.Sub(r.Budgeted)))
			if r.Budgeted.IsPositive() {
				assert.True(t, r.Percentage.Equal(r.Actual.Div(r.Budgeted).Mul(decimal.NewFromInt(100))))
			} else {
				assert.True(t, r.Percentage.IsZero())
			}
			if !r.Allocated {
				assert.Equal(t, StatusOver, r.Status)
				assert.True(t, r.Budgeted.IsZero())
			}
		}
		require.Len(t, seen, len(expected))
		for key := range expected {
			assert.Equal(t, 1, seen[key], "category %q", key)
		}
	}
}

func TestFilterPeriodAndBudget(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	b := Budget{ID: "b1", PeriodStart: start, PeriodEnd: end}

	in := []Transaction{
		{ID: "before", OccurredAt: start.Add(-time.Second)},
		{ID: "start", OccurredAt: start},
		{ID: "mid", OccurredAt: start.AddDate(0, 0, 14)},
		{ID: "end", OccurredAt: end},
	}
	out := FilterPeriod(in, b.PeriodStart, b.PeriodEnd)
	require.Len(t, out, 2)
	assert.Equal(t, "start", out[0].ID)
	assert.Equal(t, "mid", out[1].ID)

	assert.True(t, b.Contains(start))
	assert.False(t, b.Contains(end))
	assert.Equal(t, "2026-03-01", b.PeriodKey())
}
