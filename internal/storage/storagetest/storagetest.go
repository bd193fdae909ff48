// Package storagetest runs the same behavioural checks against every
// storage backend.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/storage"
)

// Backend is what a storage backend under test must provide.
type Backend interface {
	ports.StorageProvider
	storage.Seeder
}

// Hash values used by Fixture.
const (
	HashCPO  = "1111111111111111111111111111111111111111111111111111111111111111"
	HashEMSP = "2222222222222222222222222222222222222222222222222222222222222222"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// Fixture returns a seed with two tenants, two tokens, one settings bag and
// three tariffs one hour apart.
func Fixture() *storage.Seed {
	return &storage.Seed{
		Tenants: []*domain.Tenant{
			{
				ID:        "t1",
				Subdomain: "acme",
				Name:      "Acme Charging",
				Components: map[string]domain.Component{
					domain.ComponentOCPI: {Active: true, Settings: domain.Settings{"party": "ACM"}},
				},
			},
			{ID: "t2", Subdomain: "dormant", Components: map[string]domain.Component{}},
		},
		Tokens: []*domain.PartnerToken{
			{ID: "p1", TenantID: "t1", Role: domain.RoleCPO, LocalID: "emsp-a", CountryCode: "NL", PartyID: "TNM", TokenHash: HashCPO},
			{ID: "p2", TenantID: "t1", Role: domain.RoleEMSP, CountryCode: "DE", PartyID: "CPX", TokenHash: HashEMSP,
				PartnerCredential: "secret", PartnerURL: "https://partner.example.com/ocpi"},
		},
		Settings: []storage.SettingsEntry{
			{TenantID: "t1", Key: domain.SettingsPricing, Values: domain.Settings{"type": "simple", "price": "0.35"}},
		},
		Tariffs: []*domain.Tariff{
			tariff("t1", domain.OriginOwn, "NL", "ACM", "T1", 0),
			tariff("t1", domain.OriginOwn, "NL", "ACM", "T2", 1),
			tariff("t1", domain.OriginOwn, "NL", "ACM", "T3", 2),
		},
	}
}

func tariff(tenantID string, origin domain.TariffOrigin, country, party, id string, hours int) *domain.Tariff {
	return &domain.Tariff{
		TenantID:    tenantID,
		Origin:      origin,
		ID:          id,
		CountryCode: country,
		PartyID:     party,
		Currency:    "EUR",
		Type:        "REGULAR",
		AltText:     []domain.DisplayText{{Language: "en", Text: "Standard"}},
		Elements: []domain.TariffElement{{
			PriceComponents: []domain.PriceComponent{{Type: domain.DimensionEnergy, Price: 0.25, StepSize: 1}},
		}},
		LastUpdated: base.Add(time.Duration(hours) * time.Hour),
	}
}

// Run seeds b with Fixture and exercises every store operation.
func Run(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	if err := b.Seed(ctx, Fixture()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	t.Run("tenant by subdomain", func(t *testing.T) {
		tenant, err := b.GetBySubdomain(ctx, "acme")
		if err != nil {
			t.Fatalf("GetBySubdomain() error = %v", err)
		}
		if tenant.ID != "t1" || tenant.Name != "Acme Charging" {
			t.Errorf("tenant = %+v", tenant)
		}
		if !tenant.ComponentActive(domain.ComponentOCPI) {
			t.Error("ocpi component not active")
		}
		if got := tenant.Components[domain.ComponentOCPI].Settings.Get("party", ""); got != "ACM" {
			t.Errorf("component settings party = %q", got)
		}

		dormant, err := b.GetBySubdomain(ctx, "dormant")
		if err != nil {
			t.Fatalf("GetBySubdomain(dormant) error = %v", err)
		}
		if dormant.ComponentActive(domain.ComponentOCPI) {
			t.Error("dormant tenant reports ocpi active")
		}

		if _, err := b.GetBySubdomain(ctx, "nobody"); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("unknown subdomain error = %v, want ErrNotFound", err)
		}
	})

	t.Run("token by hash", func(t *testing.T) {
		tok, err := b.GetByToken(ctx, "t1", HashEMSP)
		if err != nil {
			t.Fatalf("GetByToken() error = %v", err)
		}
		if tok.ID != "p2" || tok.Role != domain.RoleEMSP || tok.PartyID != "CPX" {
			t.Errorf("token = %+v", tok)
		}
		if tok.PartnerCredential != "secret" || tok.PartnerURL != "https://partner.example.com/ocpi" {
			t.Errorf("partner callback = %q %q", tok.PartnerCredential, tok.PartnerURL)
		}

		if _, err := b.GetByToken(ctx, "t2", HashEMSP); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("token of another tenant error = %v, want ErrNotFound", err)
		}
	})

	t.Run("settings", func(t *testing.T) {
		s, err := b.GetSettings(ctx, "t1", domain.SettingsPricing)
		if err != nil {
			t.Fatalf("GetSettings() error = %v", err)
		}
		if s.Get("type", "") != domain.PricingTypeSimple {
			t.Errorf("settings = %v", s)
		}

		empty, err := b.GetSettings(ctx, "t1", "missing")
		if err != nil {
			t.Fatalf("GetSettings(missing) error = %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("missing settings = %v, want empty", empty)
		}
	})

	t.Run("list tariffs", func(t *testing.T) {
		page, total, err := b.ListTariffs(ctx, domain.TariffFilter{TenantID: "t1", Offset: 1, Limit: 1})
		if err != nil {
			t.Fatalf("ListTariffs() error = %v", err)
		}
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		if len(page) != 1 || page[0].ID != "T2" {
			t.Fatalf("page = %+v, want [T2]", page)
		}
		got := page[0]
		if got.Currency != "EUR" || got.Elements[0].PriceComponents[0].Price != 0.25 || len(got.AltText) != 1 {
			t.Errorf("tariff = %+v", got)
		}
		if !got.LastUpdated.Equal(base.Add(time.Hour)) {
			t.Errorf("LastUpdated = %v", got.LastUpdated)
		}

		from := base.Add(time.Hour)
		to := base.Add(2 * time.Hour)
		window, total, err := b.ListTariffs(ctx, domain.TariffFilter{TenantID: "t1", DateFrom: &from, DateTo: &to})
		if err != nil {
			t.Fatalf("ListTariffs(window) error = %v", err)
		}
		if total != 1 || len(window) != 1 || window[0].ID != "T2" {
			t.Errorf("window = %d %+v, want only T2", total, window)
		}

		none, total, err := b.ListTariffs(ctx, domain.TariffFilter{TenantID: "t2"})
		if err != nil {
			t.Fatalf("ListTariffs(t2) error = %v", err)
		}
		if total != 0 || len(none) != 0 {
			t.Errorf("t2 sees %d tariffs", total)
		}

		beyond, total, err := b.ListTariffs(ctx, domain.TariffFilter{TenantID: "t1", Offset: 10, Limit: 5})
		if err != nil {
			t.Fatalf("ListTariffs(beyond) error = %v", err)
		}
		if total != 3 || len(beyond) != 0 {
			t.Errorf("beyond = %d %+v", total, beyond)
		}
	})

	t.Run("put get delete tariff", func(t *testing.T) {
		pushed := tariff("t1", domain.OriginPartner, "DE", "CPX", "P1", 5)
		if err := b.PutTariff(ctx, pushed); err != nil {
			t.Fatalf("PutTariff() error = %v", err)
		}
		pushed.Currency = "CHF"
		if err := b.PutTariff(ctx, pushed); err != nil {
			t.Fatalf("PutTariff(update) error = %v", err)
		}

		got, err := b.GetTariff(ctx, "t1", "DE", "CPX", "P1")
		if err != nil {
			t.Fatalf("GetTariff() error = %v", err)
		}
		if got.Currency != "CHF" || got.TenantID != "t1" || got.Origin != domain.OriginPartner {
			t.Errorf("tariff = %+v", got)
		}

		own, total, err := b.ListTariffs(ctx, domain.TariffFilter{TenantID: "t1", Origin: domain.OriginOwn})
		if err != nil {
			t.Fatalf("ListTariffs(own) error = %v", err)
		}
		if total != 3 {
			t.Errorf("own total = %d, want 3", total)
		}
		for _, o := range own {
			if o.ID == "P1" {
				t.Errorf("own listing contains partner tariff %+v", o)
			}
		}

		scoped, total, err := b.ListTariffs(ctx, domain.TariffFilter{TenantID: "t1", CountryCode: "DE", PartyID: "CPX"})
		if err != nil {
			t.Fatalf("ListTariffs(scoped) error = %v", err)
		}
		if total != 1 || scoped[0].ID != "P1" {
			t.Errorf("scoped = %+v", scoped)
		}

		if _, err := b.GetTariff(ctx, "t2", "DE", "CPX", "P1"); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("cross-tenant GetTariff error = %v, want ErrNotFound", err)
		}

		if err := b.DeleteTariff(ctx, "t1", "DE", "CPX", "P1"); err != nil {
			t.Fatalf("DeleteTariff() error = %v", err)
		}
		if _, err := b.GetTariff(ctx, "t1", "DE", "CPX", "P1"); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("GetTariff after delete error = %v, want ErrNotFound", err)
		}
		if err := b.DeleteTariff(ctx, "t1", "DE", "CPX", "P1"); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("second DeleteTariff error = %v, want ErrNotFound", err)
		}
	})
}
