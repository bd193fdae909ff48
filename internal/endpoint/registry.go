package endpoint

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRegistrySealed is returned when registering after the registry was handed
// to a service.
var ErrRegistrySealed = errors.New("endpoint registry is sealed")

// Descriptor is one entry of the discovery listing.
type Descriptor struct {
	Identifier string `json:"identifier"`
	URL        string `json:"url"`
}

// Registry is an ordered identifier -> Endpoint mapping. It is built once at
// composition time and read-only afterwards, so lookups take no lock.
type Registry struct {
	order     []string
	endpoints map[string]Endpoint
	sealed    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]Endpoint)}
}

// Register adds ep under its identifier. Registering an identifier twice is
// an error so that accidental double registration fails at startup.
func (r *Registry) Register(ep Endpoint) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	if ep == nil {
		return errors.New("endpoint cannot be nil")
	}
	id := ep.Identifier()
	if id == "" {
		return errors.New("endpoint identifier cannot be empty")
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("endpoint identifier %q must be a single path segment", id)
	}
	if _, exists := r.endpoints[id]; exists {
		return fmt.Errorf("endpoint %q already registered", id)
	}
	r.endpoints[id] = ep
	r.order = append(r.order, id)
	return nil
}

// MustRegister registers every endpoint and panics on the first failure.
func (r *Registry) MustRegister(eps ...Endpoint) *Registry {
	for _, ep := range eps {
		if err := r.Register(ep); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the endpoint registered under id.
func (r *Registry) Lookup(id string) (Endpoint, bool) {
	ep, ok := r.endpoints[id]
	return ep, ok
}

// Identifiers returns the registered identifiers in registration order.
func (r *Registry) Identifiers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Descriptors builds the discovery listing under baseURL, in registration order.
func (r *Registry) Descriptors(baseURL string) []Descriptor {
	base := strings.TrimSuffix(baseURL, "/")
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, Descriptor{Identifier: id, URL: base + "/" + id + "/"})
	}
	return out
}

// Seal forbids further registration.
func (r *Registry) Seal() {
	r.sealed = true
}
