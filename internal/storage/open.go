// Package storage selects and opens the configured ledger store.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sheikh-saqib/commitment-savings-ledger/internal/config"
	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/storage/sqlite"
)

// Backend is an opened store plus the connection pool behind it, if any.
type Backend struct {
	interfaces.LedgerStore
	Driver string
	db     *sql.DB
}

// Open opens the store named by cfg.Driver, applying the schema for SQL backends.
func Open(ctx context.Context, cfg config.StorageConfig) (*Backend, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return &Backend{LedgerStore: memory.NewMemoryLedgerStore(), Driver: cfg.Driver}, nil
	case config.StorageSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Backend{LedgerStore: store, Driver: cfg.Driver, db: store.DB()}, nil
	case config.StoragePostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Backend{LedgerStore: store, Driver: cfg.Driver, db: store.DB()}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Ping checks the database connection. The memory store is always reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	return b.db.PingContext(ctx)
}

func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
