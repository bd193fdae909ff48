// Package storage holds what the storage backends share: the conversion of
// configuration-defined tenants into domain records.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/pkg/config"
)

// Seed is the domain form of the tenants listed in configuration.
type Seed struct {
	Tenants  []*domain.Tenant
	Tokens   []*domain.PartnerToken
	Settings []SettingsEntry
	Tariffs  []*domain.Tariff
}

// SettingsEntry is one settings bag of one tenant.
type SettingsEntry struct {
	TenantID string
	Key      string
	Values   domain.Settings
}

// Seeder is implemented by backends that accept configuration-defined
// tenants. The memory backend replaces its contents with the seed; database
// backends upsert it and keep whatever else they hold.
type Seeder interface {
	Seed(ctx context.Context, seed *Seed) error
}

// SeedFromConfig converts tenant configuration into domain records.
func SeedFromConfig(tenants []config.TenantConfig) (*Seed, error) {
	seed := &Seed{}
	for _, tc := range tenants {
		tenant := &domain.Tenant{
			ID:         tc.ID,
			Subdomain:  tc.Subdomain,
			Name:       tc.Name,
			Components: make(map[string]domain.Component, len(tc.Components)),
		}
		for name, c := range tc.Components {
			tenant.Components[strings.ToLower(name)] = domain.Component{
				Active:   c.Active,
				Settings: domain.Settings(c.Settings),
			}
		}
		seed.Tenants = append(seed.Tenants, tenant)

		for _, tok := range tc.Tokens {
			role, err := domain.ParseRole(tok.Role)
			if err != nil {
				return nil, fmt.Errorf("tenant %s token %s: %w", tc.ID, tok.ID, err)
			}
			seed.Tokens = append(seed.Tokens, &domain.PartnerToken{
				ID:                tok.ID,
				TenantID:          tc.ID,
				Role:              role,
				LocalID:           tok.LocalID,
				CountryCode:       tok.CountryCode,
				PartyID:           tok.PartyID,
				TokenHash:         strings.ToLower(tok.TokenHash),
				PartnerCredential: tok.PartnerCredential,
				PartnerURL:        tok.PartnerURL,
			})
		}

		for key, values := range tc.Settings {
			seed.Settings = append(seed.Settings, SettingsEntry{
				TenantID: tc.ID,
				Key:      key,
				Values:   domain.Settings(values),
			})
		}

		for _, tf := range tc.Tariffs {
			seed.Tariffs = append(seed.Tariffs, TariffFromConfig(tc.ID, tf))
		}
	}
	return seed, nil
}

// TariffFromConfig builds a flat tariff with a single energy price component.
func TariffFromConfig(tenantID string, tf config.TariffConfig) *domain.Tariff {
	return &domain.Tariff{
		TenantID:    tenantID,
		Origin:      domain.OriginOwn,
		ID:          tf.ID,
		CountryCode: tf.CountryCode,
		PartyID:     tf.PartyID,
		Currency:    tf.Currency,
		Type:        tf.Type,
		Elements: []domain.TariffElement{{
			PriceComponents: []domain.PriceComponent{{
				Type:     domain.DimensionEnergy,
				Price:    tf.PricePerKWh,
				StepSize: 1,
			}},
		}},
		LastUpdated: tf.LastUpdated.UTC(),
	}
}
