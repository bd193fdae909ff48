package domain

import "time"

// DimensionType is the unit a price component is billed in.
type DimensionType string

const (
	DimensionEnergy      DimensionType = "ENERGY"
	DimensionFlat        DimensionType = "FLAT"
	DimensionParkingTime DimensionType = "PARKING_TIME"
	DimensionTime        DimensionType = "TIME"
)

// Valid reports whether d is a known dimension.
func (d DimensionType) Valid() bool {
	switch d {
	case DimensionEnergy, DimensionFlat, DimensionParkingTime, DimensionTime:
		return true
	}
	return false
}

// DisplayText is a localized text shown to drivers.
type DisplayText struct {
	Language string `json:"language" bson:"language"`
	Text     string `json:"text" bson:"text"`
}

// PriceComponent prices one dimension of a charging session.
type PriceComponent struct {
	Type     DimensionType `json:"type" bson:"type"`
	Price    float64       `json:"price" bson:"price"`
	StepSize int           `json:"step_size" bson:"step_size"`
}

// TariffElement groups price components.
type TariffElement struct {
	PriceComponents []PriceComponent `json:"price_components" bson:"price_components"`
}

// TariffOrigin records who a stored tariff belongs to.
type TariffOrigin string

const (
	// OriginOwn marks the tenant's own tariffs, published to partners.
	OriginOwn TariffOrigin = "OWN"

	// OriginPartner marks tariffs a partner pushed to the tenant. They are
	// never published back out.
	OriginPartner TariffOrigin = "PARTNER"
)

// Tariff is a tenant-scoped tariff, either owned by the tenant (CPO side) or
// pushed by a partner (eMSP side).
type Tariff struct {
	TenantID    string          `json:"-" bson:"tenant_id"`
	Origin      TariffOrigin    `json:"-" bson:"origin"`
	ID          string          `json:"id" bson:"tariff_id"`
	CountryCode string          `json:"country_code,omitempty" bson:"country_code"`
	PartyID     string          `json:"party_id,omitempty" bson:"party_id"`
	Currency    string          `json:"currency" bson:"currency"`
	Type        string          `json:"type,omitempty" bson:"type,omitempty"`
	AltText     []DisplayText   `json:"tariff_alt_text,omitempty" bson:"tariff_alt_text,omitempty"`
	Elements    []TariffElement `json:"elements" bson:"elements"`
	LastUpdated time.Time       `json:"last_updated" bson:"last_updated"`
}

// TariffFilter narrows a tariff listing.
type TariffFilter struct {
	TenantID    string
	Origin      TariffOrigin // empty matches both origins
	CountryCode string
	PartyID     string
	DateFrom    *time.Time
	DateTo      *time.Time
	Offset      int
	Limit       int
}

// Matches reports whether t falls inside the filter's scope and time window.
// Offset and Limit are not considered.
func (f TariffFilter) Matches(t *Tariff) bool {
	if t.TenantID != f.TenantID {
		return false
	}
	if f.Origin != "" && t.Origin != f.Origin {
		return false
	}
	if f.CountryCode != "" && t.CountryCode != f.CountryCode {
		return false
	}
	if f.PartyID != "" && t.PartyID != f.PartyID {
		return false
	}
	if f.DateFrom != nil && t.LastUpdated.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && !t.LastUpdated.Before(*f.DateTo) {
		return false
	}
	return true
}
