package app

import (
	"context"
	"fmt"

	"budgetwatch/internal/source"
	"budgetwatch/internal/storage"
)

// Import loads a YAML or JSON snapshot and upserts it into PostgreSQL.
func (a *App) Import(ctx context.Context, path string) error {
	snap, err := source.LoadSnapshot(path)
	if err != nil {
		return err
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	counts, err := store.ImportSnapshot(ctx, storage.Snapshot{
		Budgets:      snap.Budgets,
		Transactions: snap.Transactions,
		Obligations:  snap.Obligations,
	})
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("path", path).
		Int("budgets", counts.Budgets).
		Int("allocations", counts.Allocations).
		Int("transactions", counts.Transactions).
		Int("obligations", counts.Obligations).
		Msg("snapshot imported")
	_, err = fmt.Fprintf(a.Out, "imported %d budgets, %d allocations, %d transactions, %d obligations\n",
		counts.Budgets, counts.Allocations, counts.Transactions, counts.Obligations)
	return err
}
