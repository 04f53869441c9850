package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetwatch/internal/recurrence"
)

func TestFileGetBudget(t *testing.T) {
	f, err := NewFile(filepath.Join("testdata", "snapshot.yaml"), zerolog.Nop())
	require.NoError(t, err)

	b, err := f.GetBudget(context.Background(), "b-apr")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", b.OwnerID)
	assert.True(t, b.TotalAmount.Equal(decimal.NewFromInt(12500)))
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), b.PeriodStart)
	require.Len(t, b.Allocations, 3)
	assert.Equal(t, "Rent", b.Allocations[1].CategoryName)
	assert.True(t, b.Allocations[1].AllocatedAmount.Equal(decimal.NewFromInt(2000)))

	_, err = f.GetBudget(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileListBudgets(t *testing.T) {
	f, err := NewFile(filepath.Join("testdata", "snapshot.yaml"), zerolog.Nop())
	require.NoError(t, err)

	budgets, err := f.ListBudgets(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, "b-apr", budgets[0].ID)

	all, err := f.ListBudgets(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFileListTransactionsWindow(t *testing.T) {
	f, err := NewFile(filepath.Join("testdata", "snapshot.yaml"), zerolog.Nop())
	require.NoError(t, err)

	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	txns, err := f.ListTransactions(context.Background(), "owner-1", from, from.AddDate(0, 1, 0))
	require.NoError(t, err)

	ids := make([]string, 0, len(txns))
	for _, txn := range txns {
		ids = append(ids, txn.ID)
	}
	assert.Equal(t, []string{"t2", "t1", "t3"}, ids)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("4500.5")))
}

func TestFileListObligationsNormalised(t *testing.T) {
	f, err := NewFile(filepath.Join("testdata", "snapshot.yaml"), zerolog.Nop())
	require.NoError(t, err)

	obligations, err := f.ListObligations(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, obligations, 3)

	assert.Equal(t, recurrence.Yearly, obligations[0].Frequency)
	assert.Equal(t, recurrence.KindRecurringInvoice, obligations[1].Kind)
	assert.Equal(t, recurrence.KindSubscription, obligations[2].Kind)
	assert.Equal(t, 2, obligations[2].Interval)
	assert.False(t, obligations[2].IsActive)

	monthly, err := recurrence.MonthlyEquivalent(obligations[0].Amount, obligations[0].Frequency, obligations[0].Interval)
	require.NoError(t, err)
	assert.True(t, monthly.Equal(decimal.NewFromInt(100)))
}

func TestFileReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"budgets":[{"id":"a","owner_id":"o","period_start":"2026-01-01","period_end":"2026-02-01"}]}`), 0o600))

	f, err := NewFile(path, zerolog.Nop())
	require.NoError(t, err)
	budgets, err := f.ListBudgets(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, budgets, 1)

	require.NoError(t, os.WriteFile(path, []byte(`{"budgets":[]}`), 0o600))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	budgets, err = f.ListBudgets(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, budgets)
}

func TestFilePinIgnoresReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"budgets":[{"id":"a","owner_id":"o","period_start":"2026-01-01","period_end":"2026-02-01"}],"obligations":[{"id":"o1","owner_id":"o","name":"Gym","amount":"30","frequency":"monthly","next_occurrence":"2026-01-15"}]}`), 0o600))

	f, err := NewFile(path, zerolog.Nop())
	require.NoError(t, err)
	pinned, err := Pin(f)
	require.NoError(t, err)
	require.NotSame(t, f, pinned)

	require.NoError(t, os.WriteFile(path, []byte(`{"budgets":[],"obligations":[]}`), 0o600))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	b, err := pinned.GetBudget(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "o", b.OwnerID)
	obligations, err := pinned.ListObligations(context.Background(), "o")
	require.NoError(t, err)
	assert.Len(t, obligations, 1)

	fresh, err := f.ListObligations(context.Background(), "o")
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestLoadSnapshotRejectsBadTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transactions:\n  - id: x\n    occurred_at: yesterday\n"), 0o600))

	_, err := LoadSnapshot(path)
	require.Error(t, err)
}

func TestNewFileMissing(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "nope.yaml"), zerolog.Nop())
	require.Error(t, err)
}
