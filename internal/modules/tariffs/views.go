package tariffs

import (
	"strings"
	"time"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
)

// tariffV211 is the 2.1.1 wire form; it predates party scoping.
type tariffV211 struct {
	ID          string                 `json:"id"`
	Currency    string                 `json:"currency"`
	AltText     []domain.DisplayText   `json:"tariff_alt_text,omitempty"`
	Elements    []domain.TariffElement `json:"elements"`
	LastUpdated time.Time              `json:"last_updated"`
}

// tariffV221 is the 2.2.1 wire form. Receivers decode every version into it.
type tariffV221 struct {
	CountryCode string                 `json:"country_code"`
	PartyID     string                 `json:"party_id"`
	ID          string                 `json:"id"`
	Currency    string                 `json:"currency"`
	Type        string                 `json:"type,omitempty"`
	AltText     []domain.DisplayText   `json:"tariff_alt_text,omitempty"`
	Elements    []domain.TariffElement `json:"elements"`
	LastUpdated time.Time              `json:"last_updated"`
}

// partyScoped reports whether version carries country_code and party_id on
// its objects.
func partyScoped(version string) bool {
	return !strings.HasPrefix(version, "2.1") && !strings.HasPrefix(version, "2.0")
}

func render(version string, t *domain.Tariff) any {
	if !partyScoped(version) {
		return tariffV211{
			ID:          t.ID,
			Currency:    t.Currency,
			AltText:     t.AltText,
			Elements:    t.Elements,
			LastUpdated: t.LastUpdated.UTC(),
		}
	}
	return tariffV221{
		CountryCode: t.CountryCode,
		PartyID:     t.PartyID,
		ID:          t.ID,
		Currency:    t.Currency,
		Type:        t.Type,
		AltText:     t.AltText,
		Elements:    t.Elements,
		LastUpdated: t.LastUpdated.UTC(),
	}
}
