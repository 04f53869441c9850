package app

import (
	"context"
	"fmt"

	"budgetwatch/internal/storage"
)

// MigrateOptions configure the migrate command.
type MigrateOptions struct {
	// Down rolls back this many migrations instead of applying pending ones.
	Down int
}

// Migrate applies or rolls back schema migrations from database.migrations_path.
func (a *App) Migrate(ctx context.Context, opts MigrateOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	dir := a.Config.Database.MigrationsPath
	var res storage.MigrationResult
	if opts.Down > 0 {
		res, err = store.Rollback(dir, opts.Down)
	} else {
		res, err = store.Migrate(dir)
	}
	if err != nil {
		return err
	}

	a.Logger.Info().
		Uint("from", res.From).
		Uint("to", res.To).
		Bool("applied", res.Applied).
		Msg("migrations finished")

	switch {
	case res.Dirty:
		_, err = fmt.Fprintf(a.Out, "schema version %d is dirty, fix it manually\n", res.To)
	case !res.Applied:
		_, err = fmt.Fprintf(a.Out, "schema already at version %d\n", res.To)
	default:
		_, err = fmt.Fprintf(a.Out, "schema migrated from version %d to %d\n", res.From, res.To)
	}
	return err
}
