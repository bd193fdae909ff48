package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/storage"
	"github.com/voltgrid/ocpi-gateway/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, New())
}

func TestMemoryStore_ReseedRevokesTokens(t *testing.T) {
	ctx := context.Background()
	store := New()
	if err := store.Seed(ctx, storagetest.Fixture()); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetByToken(ctx, "t1", storagetest.HashCPO); err != nil {
		t.Fatalf("GetByToken() before reseed error = %v", err)
	}

	seed := storagetest.Fixture()
	seed.Tokens = seed.Tokens[1:]
	if err := store.Seed(ctx, seed); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetByToken(ctx, "t1", storagetest.HashCPO); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("revoked token error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ReseedKeepsPushedTariffs(t *testing.T) {
	ctx := context.Background()
	store := New()
	if err := store.Seed(ctx, storagetest.Fixture()); err != nil {
		t.Fatal(err)
	}

	pushed := &domain.Tariff{TenantID: "t1", CountryCode: "DE", PartyID: "CPX", ID: "P1", Currency: "EUR"}
	if err := store.PutTariff(ctx, pushed); err != nil {
		t.Fatal(err)
	}

	if err := store.Seed(ctx, &storage.Seed{}); err != nil {
		t.Fatal(err)
	}

	_, total, err := store.ListTariffs(ctx, domain.TariffFilter{TenantID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Errorf("total = %d, want only the pushed tariff", total)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	if err := store.Seed(ctx, storagetest.Fixture()); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetTariff(ctx, "t1", "NL", "ACM", "T1")
	got.Currency = "USD"

	again, _ := store.GetTariff(ctx, "t1", "NL", "ACM", "T1")
	if again.Currency != "EUR" {
		t.Errorf("stored tariff mutated through returned pointer: %q", again.Currency)
	}
}

func TestMemoryStore_PutTariffRequiresKey(t *testing.T) {
	if err := New().PutTariff(context.Background(), &domain.Tariff{ID: "x"}); err == nil {
		t.Fatal("expected error for tariff without tenant")
	}
}
