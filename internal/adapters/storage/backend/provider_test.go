package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/pkg/config"
	"github.com/voltgrid/ocpi-gateway/internal/storage/memory"
	"github.com/voltgrid/ocpi-gateway/internal/storage/sqldb"
)

const hash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func tenants() []config.TenantConfig {
	return []config.TenantConfig{{
		ID:         "t1",
		Subdomain:  "acme",
		Components: map[string]config.ComponentConfig{"ocpi": {Active: true}},
		Tokens:     []config.TokenConfig{{ID: "p1", Role: "cpo", TokenHash: hash}},
	}}
}

func TestOpen_Memory(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Type: "memory"}, Tenants: tenants()}

	provider, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer provider.Close()

	if _, ok := provider.(*memory.Store); !ok {
		t.Fatalf("provider = %T, want *memory.Store", provider)
	}
	if _, err := provider.GetByToken(context.Background(), "t1", hash); err != nil {
		t.Errorf("seeded token missing: %v", err)
	}
}

func TestOpen_SQLite(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type:     "sqlite",
			Database: config.DatabaseConfig{DSN: filepath.Join(t.TempDir(), "ocpi.db")},
		},
		Tenants: tenants(),
	}

	provider, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer provider.Close()

	if _, ok := provider.(*sqldb.Store); !ok {
		t.Fatalf("provider = %T, want *sqldb.Store", provider)
	}
	tenant, err := provider.GetBySubdomain(context.Background(), "acme")
	if err != nil {
		t.Fatalf("GetBySubdomain() error = %v", err)
	}
	if !tenant.ComponentActive("ocpi") {
		t.Error("seeded component not active")
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{
		Type:     "sqlite",
		Database: config.DatabaseConfig{DSN: "/invalid/path/that/does/not/exist/ocpi.db"},
	}}
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestOpen_Unsupported(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Type: "redis"}}
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Error("expected error for unsupported storage type")
	}
}

func TestSeed_EmptyConfigClearsMemory(t *testing.T) {
	ctx := context.Background()
	provider, err := Open(ctx, &config.Config{Tenants: tenants()})
	if err != nil {
		t.Fatal(err)
	}

	if err := Seed(ctx, provider, &config.Config{}); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if _, err := provider.GetBySubdomain(ctx, "acme"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("tenant after empty reseed error = %v, want ErrNotFound", err)
	}
}
