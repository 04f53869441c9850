package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"budgetwatch/internal/alerting"
	"budgetwatch/internal/recurrence"
	"budgetwatch/internal/variance"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrStaleAlert means the alert changed status since it was read.
	ErrStaleAlert = errors.New("storage: alert status changed concurrently")
)

const (
	budgetColumns = `id, owner_id, name, total_amount::text, period_start, period_end, status`

	getBudgetSQL = `SELECT ` + budgetColumns + `
    FROM budgets
    WHERE id = $1;`

	listBudgetsSQL = `SELECT ` + budgetColumns + `
    FROM budgets
    WHERE ($1 = '' OR owner_id = $1)
      AND status = $2
    ORDER BY period_start DESC, id;`

	listAllocationsSQL = `SELECT category_name, allocated_amount::text
    FROM budget_allocations
    WHERE budget_id = $1
    ORDER BY category_name;`

	listTransactionsSQL = `SELECT id, owner_id, category_name, amount::text, occurred_at
    FROM transactions
    WHERE ($1 = '' OR owner_id = $1)
      AND occurred_at >= $2
      AND occurred_at < $3
    ORDER BY occurred_at, id;`

	listObligationsSQL = `SELECT
        id,
        owner_id,
        name,
        kind,
        amount::text,
        currency,
        frequency,
        interval_count,
        next_occurrence,
        is_active
    FROM recurring_obligations
    WHERE ($1 = '' OR owner_id = $1)
    ORDER BY next_occurrence, id;`

	upsertBudgetSQL = `INSERT INTO budgets (
        id, owner_id, name, total_amount, period_start, period_end, status
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (id) DO UPDATE
    SET owner_id     = EXCLUDED.owner_id,
        name         = EXCLUDED.name,
        total_amount = EXCLUDED.total_amount,
        period_start = EXCLUDED.period_start,
        period_end   = EXCLUDED.period_end,
        status       = EXCLUDED.status;`

	deleteAllocationsSQL = `DELETE FROM budget_allocations WHERE budget_id = $1;`

	insertAllocationSQL = `INSERT INTO budget_allocations (budget_id, category_name, allocated_amount)
    VALUES ($1,$2,$3);`

	upsertTransactionSQL = `INSERT INTO transactions (id, owner_id, category_name, amount, occurred_at)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (id) DO UPDATE
    SET owner_id      = EXCLUDED.owner_id,
        category_name = EXCLUDED.category_name,
        amount        = EXCLUDED.amount,
        occurred_at   = EXCLUDED.occurred_at;`

	upsertObligationSQL = `INSERT INTO recurring_obligations (
        id, owner_id, name, kind, amount, currency, frequency, interval_count, next_occurrence, is_active
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (id) DO UPDATE
    SET owner_id        = EXCLUDED.owner_id,
        name            = EXCLUDED.name,
        kind            = EXCLUDED.kind,
        amount          = EXCLUDED.amount,
        currency        = EXCLUDED.currency,
        frequency       = EXCLUDED.frequency,
        interval_count  = EXCLUDED.interval_count,
        next_occurrence = EXCLUDED.next_occurrence,
        is_active       = EXCLUDED.is_active;`

	alertColumns = `id::text,
        budget_id,
        category,
        period_key,
        period_end,
        threshold,
        percentage::text,
        budgeted::text,
        actual::text,
        severity,
        status,
        created_at,
        acknowledged_at,
        resolved_at`

	listFiredThresholdsSQL = `SELECT category_key, threshold
    FROM budget_alerts
    WHERE budget_id = $1
      AND period_key = $2;`

	insertAlertSQL = `INSERT INTO budget_alerts (
        id,
        budget_id,
        category,
        category_key,
        period_key,
        threshold,
        percentage,
        budgeted,
        actual,
        severity,
        status,
        created_at,
        period_end
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
    )
    ON CONFLICT (budget_id, category_key, period_key, threshold) DO NOTHING;`

	getAlertSQL = `SELECT ` + alertColumns + `
    FROM budget_alerts
    WHERE id = $1;`

	listAlertsSQL = `SELECT ` + alertColumns + `
    FROM budget_alerts
    WHERE ($1 = '' OR budget_id = $1)
      AND ($2 = '' OR status = $2)
    ORDER BY created_at DESC, threshold DESC
    LIMIT $3;`

	updateAlertStatusSQL = `UPDATE budget_alerts
    SET status = $3, acknowledged_at = $4, resolved_at = $5
    WHERE id = $1 AND status = $2;`

	deleteAlertsBeforeSQL = `DELETE FROM budget_alerts
    WHERE status = 'resolved'
      AND created_at < $1
      AND period_end IS NOT NULL
      AND period_end <= $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AlertStore defines operations for alert persistence.
type AlertStore interface {
	ListFiredThresholds(ctx context.Context, budgetID, periodKey string) (map[string]alerting.Fired, error)
	InsertAlert(ctx context.Context, evt alerting.Event) (bool, error)
	GetAlert(ctx context.Context, id string) (alerting.Event, error)
	UpdateAlertStatus(ctx context.Context, evt alerting.Event, from alerting.Status) error
	ListAlerts(ctx context.Context, filter AlertFilter) ([]alerting.Event, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to budgets, obligations, transactions and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock is dropped with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// GetBudget loads a budget and its allocations.
func (s *Store) GetBudget(ctx context.Context, id string) (variance.Budget, error) {
	pool, err := s.getPool()
	if err != nil {
		return variance.Budget{}, err
	}

	budget, err := scanBudget(pool.QueryRow(ctx, getBudgetSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return variance.Budget{}, fmt.Errorf("budget %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return variance.Budget{}, fmt.Errorf("get budget: %w", err)
	}

	budget.Allocations, err = listAllocations(ctx, pool, id)
	if err != nil {
		return variance.Budget{}, err
	}
	return budget, nil
}

// ListBudgets lists active budgets, optionally restricted to one owner.
func (s *Store) ListBudgets(ctx context.Context, ownerID string) ([]variance.Budget, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listBudgetsSQL, ownerID, string(variance.BudgetActive))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	budgets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (variance.Budget, error) {
		return scanBudget(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	for i := range budgets {
		budgets[i].Allocations, err = listAllocations(ctx, pool, budgets[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return budgets, nil
}

func listAllocations(ctx context.Context, pool *pgxpool.Pool, budgetID string) ([]variance.Allocation, error) {
	rows, err := pool.Query(ctx, listAllocationsSQL, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	allocations := make([]variance.Allocation, 0)
	for rows.Next() {
		var (
			alloc     variance.Allocation
			amountStr string
		)
		if err := rows.Scan(&alloc.CategoryName, &amountStr); err != nil {
			return nil, err
		}
		if alloc.AllocatedAmount, err = parseDecimal("allocated amount", amountStr); err != nil {
			return nil, err
		}
		allocations = append(allocations, alloc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return allocations, nil
}

// ListTransactions lists transactions with occurred_at in [from, to).
func (s *Store) ListTransactions(ctx context.Context, ownerID string, from, to time.Time) ([]variance.Transaction, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listTransactionsSQL, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]variance.Transaction, 0)
	for rows.Next() {
		var (
			txn       variance.Transaction
			amountStr string
		)
		if err := rows.Scan(&txn.ID, &txn.OwnerID, &txn.CategoryName, &amountStr, &txn.OccurredAt); err != nil {
			return nil, err
		}
		if txn.Amount, err = parseDecimal("transaction amount", amountStr); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return txns, nil
}

// ListObligations lists recurring obligations, optionally restricted to one owner.
func (s *Store) ListObligations(ctx context.Context, ownerID string) ([]recurrence.Obligation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listObligationsSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	defer rows.Close()

	obligations := make([]recurrence.Obligation, 0)
	for rows.Next() {
		var (
			o         recurrence.Obligation
			kind      string
			frequency string
			amountStr string
		)
		if err := rows.Scan(
			&o.ID,
			&o.OwnerID,
			&o.Name,
			&kind,
			&amountStr,
			&o.Currency,
			&frequency,
			&o.Interval,
			&o.NextOccurrence,
			&o.IsActive,
		); err != nil {
			return nil, err
		}
		if o.Amount, err = parseDecimal("obligation amount", amountStr); err != nil {
			return nil, err
		}
		o.Kind = recurrence.Kind(kind)
		o.Frequency = recurrence.ParseFrequency(frequency)
		obligations = append(obligations, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return obligations, nil
}

// Snapshot is a bulk set of records to import.
type Snapshot struct {
	Budgets      []variance.Budget
	Transactions []variance.Transaction
	Obligations  []recurrence.Obligation
}

// ImportCounts reports how many records ImportSnapshot wrote.
type ImportCounts struct {
	Budgets      int
	Allocations  int
	Transactions int
	Obligations  int
}

// ImportSnapshot upserts every record of snap in a single transaction.
// Allocations of each imported budget are replaced.
func (s *Store) ImportSnapshot(ctx context.Context, snap Snapshot) (ImportCounts, error) {
	pool, err := s.getPool()
	if err != nil {
		return ImportCounts{}, err
	}

	var counts ImportCounts
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, b := range snap.Budgets {
			status := b.Status
			if status == "" {
				status = variance.BudgetActive
			}
			batch.Queue(upsertBudgetSQL, b.ID, b.OwnerID, b.Name, b.TotalAmount.String(), b.PeriodStart, b.PeriodEnd, string(status))
			batch.Queue(deleteAllocationsSQL, b.ID)
			for _, a := range b.Allocations {
				batch.Queue(insertAllocationSQL, b.ID, a.CategoryName, a.AllocatedAmount.String())
				counts.Allocations++
			}
			counts.Budgets++
		}
		for _, t := range snap.Transactions {
			batch.Queue(upsertTransactionSQL, t.ID, t.OwnerID, t.CategoryName, t.Amount.String(), t.OccurredAt)
			counts.Transactions++
		}
		for _, o := range snap.Obligations {
			batch.Queue(upsertObligationSQL,
				o.ID,
				o.OwnerID,
				o.Name,
				string(o.Kind),
				o.Amount.String(),
				o.Currency,
				string(o.Frequency),
				o.Interval,
				o.NextOccurrence,
				o.IsActive,
			)
			counts.Obligations++
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return ImportCounts{}, fmt.Errorf("import snapshot: %w", err)
	}
	return counts, nil
}

// ListFiredThresholds returns the levels already raised for a budget period,
// keyed by normalised category.
func (s *Store) ListFiredThresholds(ctx context.Context, budgetID, periodKey string) (map[string]alerting.Fired, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listFiredThresholdsSQL, budgetID, periodKey)
	if err != nil {
		return nil, fmt.Errorf("list fired thresholds: %w", err)
	}
	defer rows.Close()

	fired := make(map[string]alerting.Fired)
	for rows.Next() {
		var (
			key       string
			threshold int
		)
		if err := rows.Scan(&key, &threshold); err != nil {
			return nil, err
		}
		if fired[key] == nil {
			fired[key] = alerting.Fired{}
		}
		fired[key][alerting.Level(threshold)] = true
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return fired, nil
}

// InsertAlert persists a new alert. It reports false when the same threshold
// was already recorded for the category and period.
func (s *Store) InsertAlert(ctx context.Context, evt alerting.Event) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, err := pool.Exec(ctx, insertAlertSQL,
		evt.ID,
		evt.BudgetID,
		evt.Category,
		variance.CategoryKey(evt.Category),
		evt.PeriodKey,
		int(evt.Threshold),
		evt.Percentage.String(),
		evt.Budgeted.String(),
		evt.Actual.String(),
		string(evt.Severity),
		string(evt.Status),
		evt.CreatedAt,
		nullableTime(evt.PeriodEnd),
	)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetAlert loads one alert by id.
func (s *Store) GetAlert(ctx context.Context, id string) (alerting.Event, error) {
	pool, err := s.getPool()
	if err != nil {
		return alerting.Event{}, err
	}

	evt, err := scanAlert(pool.QueryRow(ctx, getAlertSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return alerting.Event{}, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return alerting.Event{}, fmt.Errorf("get alert: %w", err)
	}
	return evt, nil
}

// UpdateAlertStatus writes evt's status and timestamps, provided the stored
// row is still in status from.
func (s *Store) UpdateAlertStatus(ctx context.Context, evt alerting.Event, from alerting.Status) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, err := pool.Exec(ctx, updateAlertStatusSQL,
		evt.ID,
		string(from),
		string(evt.Status),
		evt.AcknowledgedAt,
		evt.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", evt.ID, ErrStaleAlert)
	}
	return nil
}

// ListAlerts lists alerts newest first.
func (s *Store) ListAlerts(ctx context.Context, filter AlertFilter) ([]alerting.Event, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := pool.Query(ctx, listAlertsSQL, filter.BudgetID, string(filter.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]alerting.Event, 0, limit)
	for rows.Next() {
		evt, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, evt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes resolved alerts created before olderThan whose
// budget period also ended by then. Rows of a running period back
// ListFiredThresholds and are kept.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, err := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan)
	if err != nil {
		return 0, fmt.Errorf("delete alerts before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanBudget(row pgx.Row) (variance.Budget, error) {
	var (
		b        variance.Budget
		totalStr string
		status   string
	)
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &totalStr, &b.PeriodStart, &b.PeriodEnd, &status); err != nil {
		return variance.Budget{}, err
	}
	total, err := parseDecimal("total amount", totalStr)
	if err != nil {
		return variance.Budget{}, err
	}
	b.TotalAmount = total
	b.Status = variance.BudgetStatus(status)
	return b, nil
}
