package endpoint

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

type stubEndpoint struct {
	id string
}

func (s *stubEndpoint) Identifier() string { return s.id }

func (s *stubEndpoint) Process(context.Context, *Request) (*ocpi.Response, error) {
	return ocpi.OK(s.id), nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	tariffs := &stubEndpoint{id: "tariffs"}
	if err := r.Register(tariffs); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := r.Lookup("tariffs")
	if !ok {
		t.Fatal("Lookup() returned false for registered endpoint")
	}
	if got != tariffs {
		t.Error("Lookup() returned a different endpoint")
	}
	if _, ok := r.Lookup("sessions"); ok {
		t.Error("Lookup() returned true for unregistered endpoint")
	}
}

func TestRegistry_DuplicateIsRejected(t *testing.T) {
	r := NewRegistry()
	first := &stubEndpoint{id: "tariffs"}
	if err := r.Register(first); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(&stubEndpoint{id: "tariffs"}); err == nil {
		t.Fatal("expected error on duplicate identifier")
	}
	got, _ := r.Lookup("tariffs")
	if got != first {
		t.Error("duplicate registration replaced the original endpoint")
	}
	if ids := r.Identifiers(); len(ids) != 1 {
		t.Errorf("Identifiers() = %v, want one", ids)
	}
}

func TestRegistry_InvalidIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		ep   Endpoint
	}{
		{"nil endpoint", nil},
		{"empty identifier", &stubEndpoint{id: ""}},
		{"nested identifier", &stubEndpoint{id: "tariffs/extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewRegistry().Register(tt.ep); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustRegister() did not panic on duplicate")
		}
	}()
	NewRegistry().MustRegister(&stubEndpoint{id: "a"}, &stubEndpoint{id: "a"})
}

func TestRegistry_Sealed(t *testing.T) {
	r := NewRegistry().MustRegister(&stubEndpoint{id: "a"})
	r.Seal()
	if err := r.Register(&stubEndpoint{id: "b"}); !errors.Is(err, ErrRegistrySealed) {
		t.Errorf("Register() after Seal error = %v, want ErrRegistrySealed", err)
	}
}

func TestRegistry_DescriptorsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry().MustRegister(
		&stubEndpoint{id: "tariffs"},
		&stubEndpoint{id: "commands"},
		&stubEndpoint{id: "locations"},
	)

	want := []Descriptor{
		{Identifier: "tariffs", URL: "https://gw/ocpi/2.2.1/cpo/tariffs/"},
		{Identifier: "commands", URL: "https://gw/ocpi/2.2.1/cpo/commands/"},
		{Identifier: "locations", URL: "https://gw/ocpi/2.2.1/cpo/locations/"},
	}

	for i := 0; i < 3; i++ {
		got := r.Descriptors("https://gw/ocpi/2.2.1/cpo/")
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Descriptors() = %+v, want %+v", got, want)
		}
	}

	if ids := r.Identifiers(); !reflect.DeepEqual(ids, []string{"tariffs", "commands", "locations"}) {
		t.Errorf("Identifiers() = %v", ids)
	}
}
