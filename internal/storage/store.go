package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"budgetwatch/internal/config"
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// MigrationResult reports the schema version before and after Migrate.
type MigrationResult struct {
	From    uint
	To      uint
	Dirty   bool
	Applied bool
}

// Migrate applies every pending up migration found under dir.
func (s *Store) Migrate(dir string) (MigrationResult, error) {
	m, err := s.migrator(dir)
	if err != nil {
		return MigrationResult{}, err
	}
	defer closeMigrator(m)

	var res MigrationResult
	res.From, res.Dirty, err = currentVersion(m)
	if err != nil {
		return res, err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			res.To = res.From
			return res, nil
		}
		return res, fmt.Errorf("apply migrations: %w", err)
	}

	res.To, res.Dirty, err = currentVersion(m)
	res.Applied = true
	return res, err
}

// Rollback reverts the given number of migrations.
func (s *Store) Rollback(dir string, steps int) (MigrationResult, error) {
	if steps <= 0 {
		return MigrationResult{}, fmt.Errorf("rollback steps must be positive")
	}
	m, err := s.migrator(dir)
	if err != nil {
		return MigrationResult{}, err
	}
	defer closeMigrator(m)

	var res MigrationResult
	res.From, res.Dirty, err = currentVersion(m)
	if err != nil {
		return res, err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return res, fmt.Errorf("rollback migrations: %w", err)
	}
	res.To, res.Dirty, err = currentVersion(m)
	res.Applied = res.To != res.From
	return res, err
}

func (s *Store) migrator(dir string) (*migrate.Migrate, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, fmt.Errorf("migrations path is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve migrations path: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+abs, "pgx5", driver)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

func currentVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}

func closeMigrator(m *migrate.Migrate) {
	// The database handle wraps the shared pool; closing it only releases the sql.DB wrapper.
	_, _ = m.Close()
}
