package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voltgrid/ocpi-gateway/internal/client"
	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
	"github.com/voltgrid/ocpi-gateway/internal/modules"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	requests []domain.CommandRequest
	callback ports.CommandResultFunc

	resp *domain.CommandResponse
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, _ *domain.Tenant, _ *domain.PartnerToken, req domain.CommandRequest, onResult ports.CommandResultFunc) (*domain.CommandResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	d.callback = onResult
	return d.resp, d.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func commandRequest(command, body string) *endpoint.Request {
	return &endpoint.Request{
		Context: &endpoint.RequestContext{
			Tenant: &domain.Tenant{ID: "t1", Subdomain: "acme"},
			Token: &domain.PartnerToken{
				ID: "p1", TenantID: "t1", Role: domain.RoleCPO,
				CountryCode: "NL", PartyID: "TNM", PartnerCredential: "secret",
			},
			Version: "2.2.1",
			Role:    domain.RoleCPO,
		},
		Method: http.MethodPost,
		Path:   []string{command},
		Query:  url.Values{},
		HTTP:   httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)),
	}
}

func startBody(responseURL string) string {
	return `{"response_url":"` + responseURL + `","token":{"uid":"012345678"},"location_id":"LOC1"}`
}

func TestReceiver_DispatchesAndDeliversResult(t *testing.T) {
	type delivery struct {
		auth   string
		result domain.CommandResult
	}
	delivered := make(chan delivery, 1)
	partner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var res domain.CommandResult
		_ = json.NewDecoder(r.Body).Decode(&res)
		delivered <- delivery{auth: r.Header.Get("Authorization"), result: res}
		w.Write([]byte(`{"status_code":1000,"timestamp":"2024-03-01T10:00:00Z"}`))
	}))
	defer partner.Close()

	d := &fakeDispatcher{resp: &domain.CommandResponse{Result: domain.CommandAccepted, Timeout: 30}}
	r := NewReceiver(d, client.New(client.WithLogger(quietLogger())), quietLogger())

	responseURL := partner.URL + "/ocpi/emsp/2.2.1/commands/START_SESSION/42"
	resp, err := r.Process(context.Background(), commandRequest("START_SESSION", startBody(responseURL)))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	got := resp.Data.(*domain.CommandResponse)
	if got.Result != domain.CommandAccepted || got.Timeout != 30 {
		t.Errorf("response = %+v", got)
	}

	if len(d.requests) != 1 {
		t.Fatalf("dispatched %d requests, want 1", len(d.requests))
	}
	cr := d.requests[0]
	if cr.Type != domain.CommandStartSession || cr.ResponseURL != responseURL {
		t.Errorf("request = %+v", cr)
	}
	if !strings.Contains(string(cr.Body), `"location_id":"LOC1"`) {
		t.Errorf("Body = %s, want the full command payload", cr.Body)
	}

	if err := d.callback(context.Background(), domain.CommandResult{Result: domain.CommandAccepted}); err != nil {
		t.Fatalf("callback error = %v", err)
	}
	select {
	case got := <-delivered:
		if got.auth != "Token secret" {
			t.Errorf("Authorization = %q, want %q", got.auth, "Token secret")
		}
		if got.result.Result != domain.CommandAccepted {
			t.Errorf("delivered result = %+v", got.result)
		}
	case <-time.After(time.Second):
		t.Fatal("result was not delivered")
	}
}

func TestReceiver_CallbackReportsDeliveryFailure(t *testing.T) {
	partner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer partner.Close()

	d := &fakeDispatcher{resp: &domain.CommandResponse{Result: domain.CommandAccepted}}
	r := NewReceiver(d, client.New(client.WithLogger(quietLogger())), quietLogger())

	if _, err := r.Process(context.Background(), commandRequest("STOP_SESSION", startBody(partner.URL+"/cb"))); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	err := d.callback(context.Background(), domain.CommandResult{Result: domain.CommandFailed})
	var httpErr *client.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("callback error = %v, want HTTP 500", err)
	}
}

func TestReceiver_WithoutDispatcher(t *testing.T) {
	r := NewReceiver(nil, nil, quietLogger())

	resp, err := r.Process(context.Background(), commandRequest("UNLOCK_CONNECTOR", startBody("https://emsp.example.com/cb")))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	got := resp.Data.(domain.CommandResponse)
	if got.Result != domain.CommandNotSupported {
		t.Errorf("Result = %q, want NOT_SUPPORTED", got.Result)
	}
}

func TestReceiver_DispatchFailures(t *testing.T) {
	tests := []struct {
		name string
		d    *fakeDispatcher
	}{
		{"dispatcher error", &fakeDispatcher{err: errors.New("station offline")}},
		{"no response", &fakeDispatcher{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReceiver(tt.d, nil, quietLogger())
			_, err := r.Process(context.Background(), commandRequest("START_SESSION", startBody("https://emsp.example.com/cb")))
			var oe *ocpi.Error
			if !errors.As(err, &oe) {
				t.Fatalf("error = %v, want *ocpi.Error", err)
			}
			if oe.Code != ocpi.StatusServerError || oe.HTTPStatusCode() != http.StatusInternalServerError {
				t.Errorf("error = %d/%d, want 3000/500", oe.Code, oe.HTTPStatusCode())
			}
			if strings.Contains(oe.StatusMessage(), "station offline") {
				t.Errorf("StatusMessage() leaks the cause: %q", oe.StatusMessage())
			}
		})
	}
}

func TestReceiver_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       []string
		body       string
		wantCode   ocpi.StatusCode
		wantHTTP   int
		wantDetail string
	}{
		{"unknown command", http.MethodPost, []string{"SELF_DESTRUCT"}, startBody("https://e.example.com/cb"),
			ocpi.StatusInvalidParameters, http.StatusBadRequest, "SELF_DESTRUCT"},
		{"missing command", http.MethodPost, nil, startBody("https://e.example.com/cb"),
			ocpi.StatusInvalidParameters, http.StatusBadRequest, "command"},
		{"missing response_url", http.MethodPost, []string{"START_SESSION"}, `{"location_id":"LOC1"}`,
			ocpi.StatusInvalidParameters, http.StatusBadRequest, "response_url"},
		{"relative response_url", http.MethodPost, []string{"START_SESSION"}, startBody("/cb"),
			ocpi.StatusInvalidParameters, http.StatusBadRequest, "/cb"},
		{"non-http response_url", http.MethodPost, []string{"START_SESSION"}, startBody("ftp://e.example.com/cb"),
			ocpi.StatusInvalidParameters, http.StatusBadRequest, "ftp://e.example.com/cb"},
		{"empty body", http.MethodPost, []string{"START_SESSION"}, "",
			ocpi.StatusInvalidParameters, http.StatusBadRequest, "body"},
		{"array body", http.MethodPost, []string{"START_SESSION"}, `[]`,
			ocpi.StatusInvalidParameters, http.StatusBadRequest, ""},
		{"get not supported", http.MethodGet, []string{"START_SESSION"}, "",
			ocpi.StatusClientError, http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{resp: &domain.CommandResponse{Result: domain.CommandAccepted}}
			r := NewReceiver(d, nil, quietLogger())

			req := commandRequest("", tt.body)
			req.Method = tt.method
			req.Path = tt.path
			_, err := r.Process(context.Background(), req)

			var oe *ocpi.Error
			if !errors.As(err, &oe) {
				t.Fatalf("error = %v, want *ocpi.Error", err)
			}
			if oe.Code != tt.wantCode || oe.HTTPStatusCode() != tt.wantHTTP {
				t.Errorf("error = %d/%d, want %d/%d", oe.Code, oe.HTTPStatusCode(), tt.wantCode, tt.wantHTTP)
			}
			if tt.wantDetail != "" && oe.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", oe.Detail, tt.wantDetail)
			}
			if len(d.requests) != 0 {
				t.Errorf("rejected command reached the dispatcher")
			}
		})
	}
}

func TestFactory(t *testing.T) {
	catalog := modules.NewCatalog()
	catalog.MustRegister(Factory())

	ep, err := catalog.Create(Identifier, modules.Deps{Version: "2.1.1", Role: domain.RoleCPO})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ep.Identifier() != Identifier {
		t.Errorf("Identifier() = %q", ep.Identifier())
	}
	if _, err := catalog.Create(Identifier, modules.Deps{Version: "2.1.1", Role: domain.RoleEMSP}); err == nil {
		t.Error("expected error for eMSP role")
	}
}
