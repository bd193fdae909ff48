// Package domain holds the gateway's core types: tenants, partner tokens,
// and the resource payloads exchanged by the bundled modules.
package domain

import (
	"strconv"
	"strings"
)

// ComponentOCPI is the component flag a tenant must have active to be
// reachable through the roaming gateway.
const ComponentOCPI = "ocpi"

// Tenant is an isolated customer account. The gateway only ever reads it.
type Tenant struct {
	ID         string               `json:"id" bson:"_id"`
	Subdomain  string               `json:"subdomain" bson:"subdomain"`
	Name       string               `json:"name" bson:"name"`
	Components map[string]Component `json:"components" bson:"components"`
}

// Component is a feature flag with its own settings bag.
type Component struct {
	Active   bool     `json:"active" bson:"active"`
	Settings Settings `json:"settings,omitempty" bson:"settings,omitempty"`
}

// ComponentActive reports whether the named component is switched on.
func (t *Tenant) ComponentActive(name string) bool {
	if t == nil || t.Components == nil {
		return false
	}
	c, ok := t.Components[strings.ToLower(name)]
	return ok && c.Active
}

// Settings is a flat key/value settings bag.
type Settings map[string]string

// Get returns the value for key, or def when it is unset.
func (s Settings) Get(key, def string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return def
}

// Float parses the value for key as a float64.
func (s Settings) Float(key string) (float64, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Settings keys understood by the bundled modules.
const (
	SettingsPricing = "pricing"

	PricingTypeSimple = "simple"
)
