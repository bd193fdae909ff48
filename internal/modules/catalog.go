// Package modules maps the module names used in configuration to the
// factories that build their endpoints.
//
// # Adding a Module
//
// A module package exposes a Factory and the runtime registers it
// explicitly, so nothing depends on init() side effects:
//
//	func Factory() modules.Factory {
//	    return modules.Factory{
//	        Name:        Identifier,
//	        Description: "Location publication",
//	        Roles:       []domain.Role{domain.RoleCPO},
//	        Create:      create,
//	    }
//	}
package modules

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/voltgrid/ocpi-gateway/internal/client"
	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
)

// Deps is everything a factory may need to build an endpoint for one
// version and role.
type Deps struct {
	Version string
	Role    domain.Role

	// Component is the tenant component flag requests authenticate against.
	Component string

	Storage    ports.StorageProvider
	Dispatcher ports.CommandDispatcher
	Client     *client.Client

	// MaxPageSize caps list pages; zero means the protocol ceiling.
	MaxPageSize int

	Logger *slog.Logger
}

// Factory builds one module's endpoint.
type Factory struct {
	// Name is the module name used in configuration.
	Name string

	Description string

	// Roles lists the roles the module has an endpoint for.
	Roles []domain.Role

	Create func(deps Deps) (endpoint.Endpoint, error)
}

// Catalog holds the registered module factories.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds f. A second factory under the same name is rejected.
func (c *Catalog) Register(f Factory) error {
	if f.Name == "" {
		return fmt.Errorf("module factory name cannot be empty")
	}
	if f.Create == nil {
		return fmt.Errorf("module factory %q must have a Create function", f.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.factories[f.Name]; exists {
		return fmt.Errorf("module factory %q already registered", f.Name)
	}
	c.factories[f.Name] = f
	return nil
}

// MustRegister is Register that panics on error.
func (c *Catalog) MustRegister(f Factory) {
	if err := c.Register(f); err != nil {
		panic(err)
	}
}

// Get returns the factory registered under name.
func (c *Catalog) Get(name string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[name]
	return f, ok
}

// Names lists the registered module names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds the endpoint of module name for deps.Version and deps.Role.
func (c *Catalog) Create(name string, deps Deps) (endpoint.Endpoint, error) {
	f, ok := c.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown module %q (available: %s)", name, strings.Join(c.Names(), ", "))
	}
	if !slices.Contains(f.Roles, deps.Role) {
		return nil, fmt.Errorf("module %q has no %s endpoint", name, deps.Role)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ep, err := f.Create(deps)
	if err != nil {
		return nil, fmt.Errorf("create module %q for %s %s: %w", name, deps.Version, deps.Role, err)
	}
	return ep, nil
}
