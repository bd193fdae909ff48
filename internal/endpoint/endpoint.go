// Package endpoint defines the contract every protocol resource handler
// implements, the per-request context the gateway hands to it, and the
// registry a versioned service dispatches through.
//
// # Writing an Endpoint
//
// An Endpoint serves one resource family (tariffs, commands, ...) for one
// protocol version and role. It is registered once at startup and then shared
// by every request, so it must not keep request state in its fields.
//
//	type Tariffs struct{ mux *endpoint.Mux }
//
//	func (t *Tariffs) Identifier() string { return "tariffs" }
//
//	func (t *Tariffs) Process(ctx context.Context, req *endpoint.Request) (*ocpi.Response, error) {
//	    return t.mux.Dispatch(ctx, req)
//	}
//
// Errors returned from Process should be *ocpi.Error values; anything else is
// reported to the partner as a generic server error.
package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

// maxBodyBytes bounds request bodies read through DecodeBody.
const maxBodyBytes = 1 << 20

// Endpoint handles one resource family for one version and role.
type Endpoint interface {
	// Identifier is both the URL path segment and the discovery key.
	Identifier() string

	// Process handles one request.
	Process(ctx context.Context, req *Request) (*ocpi.Response, error)
}

// Request is the pre-authenticated request handed to an Endpoint.
type Request struct {
	// Context holds the resolved tenant and partner.
	Context *RequestContext

	// Method is the HTTP method.
	Method string

	// Path holds the path segments after the endpoint identifier.
	Path []string

	// Params holds the named segments bound by Mux.
	Params map[string]string

	// Query holds the query parameters.
	Query url.Values

	// URL is the absolute URL the request was addressed to, without query.
	// List endpoints build their next-page links from it.
	URL *url.URL

	// HTTP is the underlying request, for headers and body.
	HTTP *http.Request
}

// Param returns a named path parameter bound by Mux.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// SubPath returns the path below the endpoint root.
func (r *Request) SubPath() string {
	return "/" + strings.Join(r.Path, "/")
}

// DecodeBody decodes the JSON body into v. Malformed or empty bodies are
// reported as invalid parameters.
func (r *Request) DecodeBody(v any) error {
	if r.HTTP == nil || r.HTTP.Body == nil {
		return ocpi.ErrMissingParameter("body")
	}
	dec := json.NewDecoder(io.LimitReader(r.HTTP.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ocpi.ErrMissingParameter("body")
		}
		return ocpi.ErrInvalidParameter("invalid request body").Wrap(err)
	}
	return nil
}

// RequestContext is built once per request by the auth middleware and
// discarded when the request ends.
type RequestContext struct {
	Tenant  *domain.Tenant
	Token   *domain.PartnerToken
	Claims  domain.Claims
	Version string
	Role    domain.Role

	// Credential is the decoded token as presented by the partner.
	Credential string

	// BaseURL is the absolute scheme://host the request was addressed to.
	BaseURL *url.URL
}

// TenantID returns the resolved tenant id, or "" when unauthenticated.
func (rc *RequestContext) TenantID() string {
	if rc == nil || rc.Tenant == nil {
		return ""
	}
	return rc.Tenant.ID
}

type requestContextKey struct{}

// WithRequestContext attaches rc to ctx.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext returns the RequestContext attached by the auth middleware.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok && rc != nil
}
