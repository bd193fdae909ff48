// Package tariffs publishes a tenant's own tariffs to partners (CPO side) and
// stores the tariffs partners push to the tenant (eMSP side).
package tariffs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
	"github.com/voltgrid/ocpi-gateway/internal/modules"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

// Identifier is the module's path segment.
const Identifier = "tariffs"

// SimpleTariffID is the id of the tariff synthesized from simple pricing.
const SimpleTariffID = "simple"

// Component settings keys naming the tenant's own party.
const (
	settingCountryCode = "country_code"
	settingPartyID     = "party_id"
)

// Factory describes the module for the module catalog.
func Factory() modules.Factory {
	return modules.Factory{
		Name:        Identifier,
		Description: "Tariff publication (CPO) and partner tariff storage (eMSP)",
		Roles:       []domain.Role{domain.RoleCPO, domain.RoleEMSP},
		Create: func(deps modules.Deps) (endpoint.Endpoint, error) {
			if deps.Storage == nil {
				return nil, fmt.Errorf("tariffs module requires storage")
			}
			if deps.Role == domain.RoleEMSP {
				return NewReceiver(deps.Storage), nil
			}
			component := deps.Component
			if component == "" {
				component = domain.ComponentOCPI
			}
			return NewSender(deps.Version, component, deps.Storage, deps.Storage, deps.MaxPageSize), nil
		},
	}
}

// Sender serves the CPO tariff list. The tenant's own party is read from the
// settings of the component the gateway authenticates against.
type Sender struct {
	version     string
	component   string
	tariffs     ports.TariffStore
	settings    ports.SettingsStore
	maxPageSize int
	mux         *endpoint.Mux
}

// NewSender creates the CPO endpoint for version.
func NewSender(version, component string, tariffs ports.TariffStore, settings ports.SettingsStore, maxPageSize int) *Sender {
	s := &Sender{
		version:     version,
		component:   component,
		tariffs:     tariffs,
		settings:    settings,
		maxPageSize: maxPageSize,
	}
	s.mux = endpoint.NewMux().Handle(http.MethodGet, "", s.list)
	return s
}

// Identifier implements endpoint.Endpoint.
func (s *Sender) Identifier() string { return Identifier }

// Process implements endpoint.Endpoint.
func (s *Sender) Process(ctx context.Context, req *endpoint.Request) (*ocpi.Response, error) {
	return s.mux.Dispatch(ctx, req)
}

func (s *Sender) list(ctx context.Context, req *endpoint.Request) (*ocpi.Response, error) {
	params, err := ocpi.ParsePageParams(req.Query, s.maxPageSize)
	if err != nil {
		return nil, err
	}
	from, err := parseTime(req.Query, "date_from")
	if err != nil {
		return nil, err
	}
	to, err := parseTime(req.Query, "date_to")
	if err != nil {
		return nil, err
	}

	tenant := req.Context.Tenant
	own := tenant.Components[s.component].Settings
	filter := domain.TariffFilter{
		TenantID:    tenant.ID,
		Origin:      domain.OriginOwn,
		CountryCode: own.Get(settingCountryCode, ""),
		PartyID:     own.Get(settingPartyID, ""),
		DateFrom:    from,
		DateTo:      to,
		Offset:      params.Offset,
		Limit:       params.Limit,
	}

	pricing, err := s.settings.GetSettings(ctx, tenant.ID, domain.SettingsPricing)
	if err != nil {
		return nil, fmt.Errorf("load pricing settings: %w", err)
	}

	var (
		page  []*domain.Tariff
		total int
	)
	if pricing.Get("type", "") == domain.PricingTypeSimple {
		t, err := simpleTariff(tenant, own, pricing)
		if err != nil {
			return nil, err
		}
		page, total = pageOf([]*domain.Tariff{t}, filter)
	} else {
		page, total, err = s.tariffs.ListTariffs(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list tariffs: %w", err)
		}
	}

	data := make([]any, 0, len(page))
	for _, t := range page {
		data = append(data, render(s.version, t))
	}
	return ocpi.Paged(data, ocpi.NewPage(params, total, req.URL, req.Query)), nil
}

// simpleTariff builds the single flat-rate tariff of a tenant on simple
// pricing. last_updated comes from the pricing settings when present.
func simpleTariff(tenant *domain.Tenant, own, pricing domain.Settings) (*domain.Tariff, error) {
	price, ok := pricing.Float("price")
	if !ok {
		return nil, ocpi.ErrServer("pricing settings incomplete").WithDetail("price")
	}
	updated := time.Unix(0, 0).UTC()
	if v := pricing.Get("last_updated", ""); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, ocpi.ErrServer("pricing settings incomplete").WithDetail("last_updated")
		}
		updated = t.UTC()
	}
	return &domain.Tariff{
		TenantID:    tenant.ID,
		Origin:      domain.OriginOwn,
		ID:          SimpleTariffID,
		CountryCode: own.Get(settingCountryCode, ""),
		PartyID:     own.Get(settingPartyID, ""),
		Currency:    pricing.Get("currency", "EUR"),
		Type:        "REGULAR",
		Elements: []domain.TariffElement{{
			PriceComponents: []domain.PriceComponent{{
				Type:     domain.DimensionEnergy,
				Price:    price,
				StepSize: 1,
			}},
		}},
		LastUpdated: updated,
	}, nil
}

// pageOf applies filter to an in-memory list.
func pageOf(all []*domain.Tariff, filter domain.TariffFilter) ([]*domain.Tariff, int) {
	var matched []*domain.Tariff
	for _, t := range all {
		if filter.Matches(t) {
			matched = append(matched, t)
		}
	}
	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total
}

func parseTime(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, ocpi.ErrInvalidParameter("invalid "+name).WithDetail(v).Wrap(err)
	}
	t = t.UTC()
	return &t, nil
}
