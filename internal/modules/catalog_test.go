package modules

import (
	"context"
	"strings"
	"testing"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

type stubEndpoint struct{ id string }

func (s stubEndpoint) Identifier() string { return s.id }

func (s stubEndpoint) Process(context.Context, *endpoint.Request) (*ocpi.Response, error) {
	return ocpi.OK(nil), nil
}

func stubFactory(name string, roles ...domain.Role) Factory {
	return Factory{
		Name:  name,
		Roles: roles,
		Create: func(deps Deps) (endpoint.Endpoint, error) {
			if deps.Logger == nil {
				panic("logger not defaulted")
			}
			return stubEndpoint{id: name}, nil
		},
	}
}

func TestCatalog_Register(t *testing.T) {
	c := NewCatalog()
	if err := c.Register(stubFactory("tariffs", domain.RoleCPO)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name    string
		factory Factory
		wantErr string
	}{
		{"duplicate", stubFactory("tariffs", domain.RoleEMSP), "already registered"},
		{"empty name", stubFactory("", domain.RoleCPO), "cannot be empty"},
		{"no constructor", Factory{Name: "locations"}, "Create"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Register(tt.factory)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Register() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestCatalog_MustRegisterPanics(t *testing.T) {
	c := NewCatalog()
	c.MustRegister(stubFactory("commands", domain.RoleCPO))
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	c.MustRegister(stubFactory("commands", domain.RoleCPO))
}

func TestCatalog_Create(t *testing.T) {
	c := NewCatalog()
	c.MustRegister(stubFactory("tariffs", domain.RoleCPO, domain.RoleEMSP))
	c.MustRegister(stubFactory("commands", domain.RoleCPO))

	if got := c.Names(); len(got) != 2 || got[0] != "commands" || got[1] != "tariffs" {
		t.Errorf("Names() = %v", got)
	}

	ep, err := c.Create("tariffs", Deps{Version: "2.2.1", Role: domain.RoleEMSP})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ep.Identifier() != "tariffs" {
		t.Errorf("Identifier() = %q", ep.Identifier())
	}

	if _, err := c.Create("commands", Deps{Version: "2.2.1", Role: domain.RoleEMSP}); err == nil {
		t.Error("expected error for unsupported role")
	}
	_, err = c.Create("locations", Deps{Version: "2.2.1", Role: domain.RoleCPO})
	if err == nil {
		t.Fatal("expected error for unknown module")
	}
	if !strings.Contains(err.Error(), `"locations" (available: commands, tariffs)`) {
		t.Errorf("error = %v, want the available modules listed", err)
	}
}
