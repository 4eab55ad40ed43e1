package repository

import (
	"context"
	"fmt"

	"github.com/yourusername/paddock/internal/config"
	"github.com/yourusername/paddock/internal/database"
)

// Open builds the store selected by configuration and fronts it with the roster cache
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	var store Store
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		store = NewMemoryStore()
	case config.StorageSQLite:
		s, err := OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = s
	case config.StoragePostgres:
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = NewPostgresStore(db)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return NewCachedStore(store, cfg.CompetitorCacheTTL()), nil
}
