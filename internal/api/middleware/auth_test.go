package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voltgrid/ocpi-gateway/internal/auth"
	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
)

type stubStore struct {
	tenant *domain.Tenant
	token  *domain.PartnerToken
}

func (s *stubStore) GetBySubdomain(_ context.Context, subdomain string) (*domain.Tenant, error) {
	if s.tenant == nil || s.tenant.Subdomain != subdomain {
		return nil, ports.ErrNotFound
	}
	return s.tenant, nil
}

func (s *stubStore) GetByToken(_ context.Context, tenantID, hash string) (*domain.PartnerToken, error) {
	if s.token == nil || s.token.TokenHash != hash || s.token.TenantID != tenantID {
		return nil, ports.ErrNotFound
	}
	return s.token, nil
}

func newAuthFixture(t *testing.T, role domain.Role, active bool) (*auth.Authenticator, string) {
	t.Helper()
	codec := auth.NewCodec(auth.EncodingBase64)
	issued, err := auth.Issue(codec, "acme")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	store := &stubStore{
		tenant: &domain.Tenant{
			ID:        "t1",
			Subdomain: "acme",
			Components: map[string]domain.Component{
				domain.ComponentOCPI: {Active: active},
			},
		},
		token: &domain.PartnerToken{ID: "p1", TenantID: "t1", Role: role, TokenHash: issued.Hash},
	}
	return auth.NewAuthenticator(codec, store, store), issued.Header
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		tokenRole   domain.Role
		active      bool
		mountRole   string
		header      bool
		wantStatus  int
		wantMessage string
	}{
		{"forwarded", domain.RoleCPO, true, "cpo", true, http.StatusOK, ""},
		{"missing header", domain.RoleCPO, true, "cpo", false, http.StatusUnauthorized, "missing authorization token"},
		{"cpo token on emsp url", domain.RoleCPO, true, "emsp", true, http.StatusUnauthorized, "invalid token for this role/URL"},
		{"inactive component", domain.RoleCPO, false, "cpo", true, http.StatusUnauthorized, "tenant acme does not support this protocol"},
		{"role check disabled", domain.RoleEMSP, true, "", true, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn, header := newAuthFixture(t, tt.tokenRole, tt.active)

			var invoked int
			var got *endpoint.RequestContext
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				invoked++
				got = RequestContext(r)
				w.WriteHeader(http.StatusOK)
			})
			handler := AuthMiddleware(AuthConfig{
				Authenticator: authn,
				Version:       "2.2.1",
				RoleSegment:   tt.mountRole,
				Logger:        discardLogger(),
			})(next)

			req := httptest.NewRequest(http.MethodGet, "http://gw.test/ocpi/2.2.1/"+tt.mountRole+"/tariffs", nil)
			if tt.header {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}

			if tt.wantMessage != "" {
				if invoked != 0 {
					t.Error("handler invoked after rejection")
				}
				env := decodeEnvelope(t, rec)
				if !env.StatusCode.IsClientError() {
					t.Errorf("status_code = %d, want 2xxx", env.StatusCode)
				}
				if env.StatusMessage != tt.wantMessage {
					t.Errorf("status_message = %q, want %q", env.StatusMessage, tt.wantMessage)
				}
				if env.Data != nil {
					t.Errorf("rejection carries data: %v", env.Data)
				}
				return
			}

			if got == nil {
				t.Fatal("request context not attached")
			}
			if got.TenantID() != "t1" || got.Role != tt.tokenRole || got.Version != "2.2.1" {
				t.Errorf("context = %+v", got)
			}
			if got.BaseURL.String() != "http://gw.test" {
				t.Errorf("BaseURL = %q", got.BaseURL)
			}
		})
	}
}

func TestAuthMiddleware_PublicURL(t *testing.T) {
	authn, header := newAuthFixture(t, domain.RoleCPO, true)

	var got *endpoint.RequestContext
	handler := AuthMiddleware(AuthConfig{
		Authenticator: authn,
		Version:       "2.2.1",
		RoleSegment:   "cpo",
		PublicURL:     "https://ocpi.example.com/",
		Logger:        discardLogger(),
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestContext(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://10.0.0.5:8080/ocpi/2.2.1/cpo/", nil)
	req.Header.Set("Authorization", header)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.BaseURL.String() != "https://ocpi.example.com" {
		t.Fatalf("BaseURL = %v", got)
	}
}
