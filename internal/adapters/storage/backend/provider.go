// Package backend opens the storage backend named in configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/pkg/config"
	"github.com/voltgrid/ocpi-gateway/internal/storage"
	"github.com/voltgrid/ocpi-gateway/internal/storage/memory"
	"github.com/voltgrid/ocpi-gateway/internal/storage/mongo"
	"github.com/voltgrid/ocpi-gateway/internal/storage/sqldb"
)

// Open returns the storage provider for cfg.Storage, seeded with the tenants
// listed in cfg.
func Open(ctx context.Context, cfg *config.Config) (ports.StorageProvider, error) {
	provider, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := Seed(ctx, provider, cfg); err != nil {
		provider.Close()
		return nil, err
	}
	return provider, nil
}

func open(ctx context.Context, cfg *config.Config) (ports.StorageProvider, error) {
	switch cfg.Storage.Type {
	case "", "memory":
		return memory.New(), nil

	case "sqlite", "postgres", "mysql":
		driver := cfg.Storage.Database.Driver
		if driver == "" {
			driver = cfg.Storage.Type
		}
		store, err := sqldb.New(sqldb.Config{Driver: driver, DSN: cfg.Storage.Database.DSN})
		if err != nil {
			return nil, fmt.Errorf("create %s storage: %w", cfg.Storage.Type, err)
		}
		return store, nil

	case "mongo":
		store, err := mongo.New(ctx, mongo.Config{
			URI:      cfg.Storage.Mongo.URI,
			Database: cfg.Storage.Mongo.Database,
			Timeout:  cfg.Client.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create mongo storage: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}
}

// Seed pushes the tenants listed in cfg into provider when it accepts seeds.
// The memory backend is always seeded, so an empty tenant list empties it;
// database backends are only touched when cfg lists tenants.
func Seed(ctx context.Context, provider ports.StorageProvider, cfg *config.Config) error {
	seeder, ok := provider.(storage.Seeder)
	if !ok {
		return nil
	}
	if _, isMemory := provider.(*memory.Store); !isMemory && len(cfg.Tenants) == 0 {
		return nil
	}

	seed, err := storage.SeedFromConfig(cfg.Tenants)
	if err != nil {
		return err
	}
	if err := seeder.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed storage: %w", err)
	}
	return nil
}
