package core

import (
	"context"
	"fmt"

	"firecheck/internal/infra/persistence/memory"
	"firecheck/internal/infra/persistence/postgres"
	"firecheck/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistence adapter.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects the adapter. An empty Driver means sqlite.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenAdapter builds the adapter described by cfg. The result is chosen once
// here; nothing above it knows which backend is in use.
func OpenAdapter(ctx context.Context, cfg StorageConfig) (Adapter, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
