package ports

import (
	"context"
	"errors"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
)

// ErrNotFound is returned (possibly wrapped) by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// TenantStore resolves tenants.
type TenantStore interface {
	// GetBySubdomain returns the tenant owning subdomain.
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
}

// PartnerTokenStore resolves partner credentials. Lookups must not be cached:
// revocation has to take effect on the next request.
type PartnerTokenStore interface {
	// GetByToken returns the record scoped to tenantID whose credential hashes
	// to tokenHash (hex SHA-256, see auth.HashToken).
	GetByToken(ctx context.Context, tenantID, tokenHash string) (*domain.PartnerToken, error)
}

// SettingsStore resolves per-tenant component settings.
type SettingsStore interface {
	// GetSettings returns the settings stored under key. Missing keys yield empty settings.
	GetSettings(ctx context.Context, tenantID, key string) (domain.Settings, error)
}

// TariffStore persists tariffs for the tariffs module.
type TariffStore interface {
	ListTariffs(ctx context.Context, filter domain.TariffFilter) ([]*domain.Tariff, int, error)
	GetTariff(ctx context.Context, tenantID, countryCode, partyID, id string) (*domain.Tariff, error)
	PutTariff(ctx context.Context, tariff *domain.Tariff) error
	DeleteTariff(ctx context.Context, tenantID, countryCode, partyID, id string) error
}

// StorageProvider bundles every store the gateway needs.
// Implementations: memory (default), SQL (sqlite/postgres/mysql), MongoDB.
type StorageProvider interface {
	TenantStore
	PartnerTokenStore
	SettingsStore
	TariffStore

	Close() error
}
