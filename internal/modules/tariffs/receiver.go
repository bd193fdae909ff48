package tariffs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

const maxTariffIDLen = 36

const objectRoute = "{country_code}/{party_id}/{tariff_id}"

// Receiver stores the tariffs a CPO partner pushes to the tenant.
type Receiver struct {
	tariffs ports.TariffStore
	mux     *endpoint.Mux

	// now is swapped in tests.
	now func() time.Time
}

// NewReceiver creates the eMSP endpoint.
func NewReceiver(tariffs ports.TariffStore) *Receiver {
	r := &Receiver{tariffs: tariffs, now: time.Now}
	r.mux = endpoint.NewMux().
		Handle(http.MethodGet, objectRoute, r.get).
		Handle(http.MethodPut, objectRoute, r.put).
		Handle(http.MethodDelete, objectRoute, r.delete)
	return r
}

// Identifier implements endpoint.Endpoint.
func (r *Receiver) Identifier() string { return Identifier }

// Process implements endpoint.Endpoint.
func (r *Receiver) Process(ctx context.Context, req *endpoint.Request) (*ocpi.Response, error) {
	return r.mux.Dispatch(ctx, req)
}

type objectKey struct {
	tenantID    string
	countryCode string
	partyID     string
	id          string
}

// key resolves the addressed tariff. A partner may only address tariffs of
// its own party.
func (r *Receiver) key(req *endpoint.Request) (objectKey, error) {
	k := objectKey{
		tenantID:    req.Context.TenantID(),
		countryCode: strings.ToUpper(req.Param("country_code")),
		partyID:     strings.ToUpper(req.Param("party_id")),
		id:          req.Param("tariff_id"),
	}
	tok := req.Context.Token
	if tok == nil || !strings.EqualFold(k.countryCode, tok.CountryCode) || !strings.EqualFold(k.partyID, tok.PartyID) {
		return objectKey{}, ocpi.ErrInvalidParameter("country_code and party_id do not match the credentials").
			WithDetail(k.countryCode + "/" + k.partyID)
	}
	if len(k.id) > maxTariffIDLen {
		return objectKey{}, ocpi.ErrInvalidParameter("tariff_id too long").WithDetail(k.id)
	}
	return k, nil
}

func (r *Receiver) get(ctx context.Context, req *endpoint.Request) (*ocpi.Response, error) {
	k, err := r.key(req)
	if err != nil {
		return nil, err
	}
	t, err := r.partnerTariff(ctx, k)
	if err != nil {
		return nil, err
	}
	return ocpi.OK(render(req.Context.Version, t)), nil
}

// partnerTariff loads the addressed tariff. The tenant's own tariffs share the
// key space but are never visible to partners.
func (r *Receiver) partnerTariff(ctx context.Context, k objectKey) (*domain.Tariff, error) {
	t, err := r.tariffs.GetTariff(ctx, k.tenantID, k.countryCode, k.partyID, k.id)
	if errors.Is(err, ports.ErrNotFound) || (err == nil && t.Origin == domain.OriginOwn) {
		return nil, ocpi.ErrNotFound("unknown tariff").WithDetail(k.id)
	}
	if err != nil {
		return nil, fmt.Errorf("get tariff: %w", err)
	}
	return t, nil
}

func (r *Receiver) put(ctx context.Context, req *endpoint.Request) (*ocpi.Response, error) {
	k, err := r.key(req)
	if err != nil {
		return nil, err
	}
	var body tariffV221
	if err := req.DecodeBody(&body); err != nil {
		return nil, err
	}
	if err := validate(k, &body); err != nil {
		return nil, err
	}

	existing, err := r.tariffs.GetTariff(ctx, k.tenantID, k.countryCode, k.partyID, k.id)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("get tariff: %w", err)
	}
	if err == nil && existing.Origin == domain.OriginOwn {
		return nil, ocpi.ErrInvalidParameter("tariff is owned by the platform").WithDetail(k.id)
	}

	updated := body.LastUpdated
	if updated.IsZero() {
		updated = r.now()
	}
	t := &domain.Tariff{
		TenantID:    k.tenantID,
		Origin:      domain.OriginPartner,
		ID:          k.id,
		CountryCode: k.countryCode,
		PartyID:     k.partyID,
		Currency:    strings.ToUpper(body.Currency),
		Type:        body.Type,
		AltText:     body.AltText,
		Elements:    body.Elements,
		LastUpdated: updated.UTC(),
	}
	if err := r.tariffs.PutTariff(ctx, t); err != nil {
		return nil, fmt.Errorf("store tariff: %w", err)
	}
	return ocpi.OK(nil), nil
}

func (r *Receiver) delete(ctx context.Context, req *endpoint.Request) (*ocpi.Response, error) {
	k, err := r.key(req)
	if err != nil {
		return nil, err
	}
	if _, err := r.partnerTariff(ctx, k); err != nil {
		return nil, err
	}
	err = r.tariffs.DeleteTariff(ctx, k.tenantID, k.countryCode, k.partyID, k.id)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, ocpi.ErrNotFound("unknown tariff").WithDetail(k.id)
	}
	if err != nil {
		return nil, fmt.Errorf("delete tariff: %w", err)
	}
	return ocpi.OK(nil), nil
}

func validate(k objectKey, body *tariffV221) error {
	if body.ID != "" && body.ID != k.id {
		return ocpi.ErrInvalidParameter("tariff id does not match the URL").WithDetail(body.ID)
	}
	if body.CountryCode != "" && !strings.EqualFold(body.CountryCode, k.countryCode) {
		return ocpi.ErrInvalidParameter("country_code does not match the URL").WithDetail(body.CountryCode)
	}
	if body.PartyID != "" && !strings.EqualFold(body.PartyID, k.partyID) {
		return ocpi.ErrInvalidParameter("party_id does not match the URL").WithDetail(body.PartyID)
	}
	if body.Currency == "" {
		return ocpi.ErrMissingParameter("currency")
	}
	if len(body.Currency) != 3 {
		return ocpi.ErrInvalidParameter("invalid currency").WithDetail(body.Currency)
	}
	if len(body.Elements) == 0 {
		return ocpi.ErrMissingParameter("elements")
	}
	for _, el := range body.Elements {
		if len(el.PriceComponents) == 0 {
			return ocpi.ErrMissingParameter("price_components")
		}
		for _, pc := range el.PriceComponents {
			if !pc.Type.Valid() {
				return ocpi.ErrInvalidParameter("invalid price component type").WithDetail(string(pc.Type))
			}
			if pc.Price < 0 {
				return ocpi.ErrInvalidParameter("price must not be negative").WithDetail(string(pc.Type))
			}
		}
	}
	return nil
}
