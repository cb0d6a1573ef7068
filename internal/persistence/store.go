package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/repository"
)

// StoreHandle is an opened, migrated account store.
type StoreHandle struct {
	Store  repository.Store
	Driver string
}

// Close releases the underlying database.
func (h *StoreHandle) Close() {
	if h != nil && h.Store != nil {
		_ = h.Store.Close()
	}
}

// OpenStore opens the backend selected by cfg.Storage.Driver and applies migrations.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*StoreHandle, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			sqlDB := pg.SQLDB()
			err := RunMigrations(ctx, sqlDB, config.StorageDriverPostgres, logger)
			_ = sqlDB.Close()
			if err != nil {
				pg.Close()
				return nil, err
			}
		}
		return &StoreHandle{Store: repository.NewPostgresStore(pg.PoolHandle()), Driver: config.StorageDriverPostgres}, nil

	case config.StorageDriverSQLite:
		db, err := OpenSQLite(ctx, cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		if err := RunMigrations(ctx, db, config.StorageDriverSQLite, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &StoreHandle{Store: repository.NewSQLiteStore(db), Driver: config.StorageDriverSQLite}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
