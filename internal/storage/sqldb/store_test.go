package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/storage/dialect"
	"github.com/voltgrid/ocpi-gateway/internal/storage/storagetest"
)

func TestSQLDBStore(t *testing.T) {
	store, err := NewSQLite("file:memdb1?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	storagetest.Run(t, store)
}

func TestSQLDBStore_SeedIsIdempotent(t *testing.T) {
	store, err := NewSQLite("file:memdb2?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := store.Seed(ctx, storagetest.Fixture()); err != nil {
			t.Fatalf("Seed() #%d error = %v", i+1, err)
		}
	}

	_, total, err := store.ListTariffs(ctx, domain.TariffFilter{TenantID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3 after reseeding", total)
	}
}

func TestSQLDBStore_SeedRollsBack(t *testing.T) {
	store, err := NewSQLite("file:memdb3?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	seed := storagetest.Fixture()
	// The orphan token violates the tenant foreign key.
	seed.Tokens = append(seed.Tokens, &domain.PartnerToken{ID: "orphan", TenantID: "missing", Role: domain.RoleCPO, TokenHash: "x"})

	if err := store.Seed(ctx, seed); err == nil {
		t.Fatal("expected foreign key error")
	}
	if _, err := store.GetBySubdomain(ctx, "acme"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("tenant after failed seed error = %v, want ErrNotFound", err)
	}
}

func TestSQLDBStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocpi.db")
	ctx := context.Background()

	store, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	if err := store.Seed(ctx, storagetest.Fixture()); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	tok, err := reopened.GetByToken(ctx, "t1", storagetest.HashCPO)
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if tok.Role != domain.RoleCPO {
		t.Errorf("Role = %v", tok.Role)
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := New(Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestDriversRegistered(t *testing.T) {
	for _, storageType := range []string{"sqlite", "postgres", "mysql"} {
		t.Run(storageType, func(t *testing.T) {
			d, err := dialect.FromDriverName(storageType)
			if err != nil {
				t.Fatalf("FromDriverName() error = %v", err)
			}
			if !slices.Contains(sql.Drivers(), d.DriverName()) {
				t.Errorf("driver %q not registered, have %v", d.DriverName(), sql.Drivers())
			}
		})
	}
}
