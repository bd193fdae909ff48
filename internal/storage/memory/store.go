// Package memory provides an in-memory storage backend seeded from
// configuration. Reseeding replaces tenants, tokens and settings atomically,
// so a token removed from the config file stops working on the next request.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/storage"
)

type tokenKey struct {
	tenantID string
	hash     string
}

type settingsKey struct {
	tenantID string
	key      string
}

type tariffKey struct {
	tenantID    string
	countryCode string
	partyID     string
	id          string
}

func keyOf(t *domain.Tariff) tariffKey {
	return tariffKey{t.TenantID, t.CountryCode, t.PartyID, t.ID}
}

// Store implements ports.StorageProvider in memory.
type Store struct {
	mu       sync.RWMutex
	tenants  map[string]*domain.Tenant // by subdomain
	tokens   map[tokenKey]*domain.PartnerToken
	settings map[settingsKey]domain.Settings
	tariffs  map[tariffKey]*domain.Tariff

	// seeded remembers which tariffs came from configuration so that a
	// reseed drops them without touching tariffs pushed by partners.
	seeded map[tariffKey]bool
}

var (
	_ ports.StorageProvider = (*Store)(nil)
	_ storage.Seeder        = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tenants:  make(map[string]*domain.Tenant),
		tokens:   make(map[tokenKey]*domain.PartnerToken),
		settings: make(map[settingsKey]domain.Settings),
		tariffs:  make(map[tariffKey]*domain.Tariff),
		seeded:   make(map[tariffKey]bool),
	}
}

// Seed replaces tenants, tokens, settings and configuration-defined tariffs.
func (s *Store) Seed(ctx context.Context, seed *storage.Seed) error {
	tenants := make(map[string]*domain.Tenant, len(seed.Tenants))
	for _, t := range seed.Tenants {
		cp := *t
		tenants[t.Subdomain] = &cp
	}
	tokens := make(map[tokenKey]*domain.PartnerToken, len(seed.Tokens))
	for _, tok := range seed.Tokens {
		cp := *tok
		tokens[tokenKey{tok.TenantID, tok.TokenHash}] = &cp
	}
	settings := make(map[settingsKey]domain.Settings, len(seed.Settings))
	for _, e := range seed.Settings {
		settings[settingsKey{e.TenantID, e.Key}] = e.Values
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tenants = tenants
	s.tokens = tokens
	s.settings = settings

	for key := range s.seeded {
		delete(s.tariffs, key)
	}
	s.seeded = make(map[tariffKey]bool, len(seed.Tariffs))
	for _, t := range seed.Tariffs {
		cp := *t
		s.tariffs[keyOf(t)] = &cp
		s.seeded[keyOf(t)] = true
	}
	return nil
}

func (s *Store) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[subdomain]
	if !ok {
		return nil, fmt.Errorf("tenant %q: %w", subdomain, ports.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *Store) GetByToken(ctx context.Context, tenantID, tokenHash string) (*domain.PartnerToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := s.tokens[tokenKey{tenantID, tokenHash}]
	if !ok {
		return nil, fmt.Errorf("partner token: %w", ports.ErrNotFound)
	}
	cp := *tok
	return &cp, nil
}

func (s *Store) GetSettings(ctx context.Context, tenantID, key string) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := domain.Settings{}
	for k, v := range s.settings[settingsKey{tenantID, key}] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) ListTariffs(ctx context.Context, filter domain.TariffFilter) ([]*domain.Tariff, int, error) {
	s.mu.RLock()
	var matched []*domain.Tariff
	for _, t := range s.tariffs {
		if filter.Matches(t) {
			cp := *t
			matched = append(matched, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.LastUpdated.Equal(b.LastUpdated) {
			return a.LastUpdated.Before(b.LastUpdated)
		}
		if a.CountryCode != b.CountryCode {
			return a.CountryCode < b.CountryCode
		}
		if a.PartyID != b.PartyID {
			return a.PartyID < b.PartyID
		}
		return a.ID < b.ID
	})

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (s *Store) GetTariff(ctx context.Context, tenantID, countryCode, partyID, id string) (*domain.Tariff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tariffs[tariffKey{tenantID, countryCode, partyID, id}]
	if !ok {
		return nil, fmt.Errorf("tariff %s/%s/%s: %w", countryCode, partyID, id, ports.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *Store) PutTariff(ctx context.Context, tariff *domain.Tariff) error {
	if tariff.TenantID == "" || tariff.ID == "" {
		return fmt.Errorf("tariff requires tenant and id")
	}
	cp := *tariff

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tariffs[keyOf(tariff)] = &cp
	delete(s.seeded, keyOf(tariff))
	return nil
}

func (s *Store) DeleteTariff(ctx context.Context, tenantID, countryCode, partyID, id string) error {
	key := tariffKey{tenantID, countryCode, partyID, id}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tariffs[key]; !ok {
		return fmt.Errorf("tariff %s/%s/%s: %w", countryCode, partyID, id, ports.ErrNotFound)
	}
	delete(s.tariffs, key)
	delete(s.seeded, key)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
