// Package auth resolves the tenant and partner behind an Authorization header.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

// Messages exposed to partners on rejection.
const (
	msgMissingToken   = "missing authorization token"
	msgInvalidToken   = "invalid authorization token"
	msgUnknownTenant  = "tenant does not exist"
	msgRevokedToken   = "token no longer registered"
	msgRoleMismatch   = "invalid token for this role/URL"
	fmtInactiveTenant = "tenant %s does not support this protocol"
)

// Identity is the outcome of a successful authentication.
type Identity struct {
	Tenant     *domain.Tenant
	Token      *domain.PartnerToken
	Claims     domain.Claims
	Credential string
}

// Authenticator validates partner tokens for one protocol version.
type Authenticator struct {
	codec     *Codec
	tenants   ports.TenantStore
	tokens    ports.PartnerTokenStore
	component string
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithComponent overrides the component flag a tenant must have active.
func WithComponent(name string) Option {
	return func(a *Authenticator) {
		if name != "" {
			a.component = name
		}
	}
}

// NewAuthenticator creates an authenticator reading tenants and tokens from
// the given stores on every call.
func NewAuthenticator(codec *Codec, tenants ports.TenantStore, tokens ports.PartnerTokenStore, opts ...Option) *Authenticator {
	a := &Authenticator{
		codec:     codec,
		tenants:   tenants,
		tokens:    tokens,
		component: domain.ComponentOCPI,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Codec returns the header codec this authenticator decodes with.
func (a *Authenticator) Codec() *Codec {
	return a.codec
}

// Authenticate runs the header through decoding, tenant resolution, the
// component check and the token lookup, in that order. Rejections are
// *ocpi.Error values with HTTP 401; store failures are returned wrapped and
// surface as server errors.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*Identity, error) {
	credential, claims, err := a.codec.Decode(header)
	if err != nil {
		if errors.Is(err, ErrMissingToken) {
			return nil, ocpi.ErrUnauthorized(msgMissingToken)
		}
		return nil, ocpi.ErrUnauthorized(msgInvalidToken).Wrap(err)
	}

	tenant, err := a.tenants.GetBySubdomain(ctx, claims.Tenant)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ocpi.ErrUnauthorized(msgUnknownTenant).Wrap(err)
		}
		return nil, fmt.Errorf("resolve tenant %q: %w", claims.Tenant, err)
	}

	if !tenant.ComponentActive(a.component) {
		return nil, ocpi.ErrUnauthorized(fmt.Sprintf(fmtInactiveTenant, tenant.Subdomain))
	}

	hash := HashToken(credential)
	token, err := a.tokens.GetByToken(ctx, tenant.ID, hash)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ocpi.ErrUnauthorized(msgRevokedToken).Wrap(err)
		}
		return nil, fmt.Errorf("resolve partner token: %w", err)
	}
	if token.TenantID != tenant.ID || subtle.ConstantTimeCompare([]byte(hash), []byte(token.TokenHash)) != 1 {
		return nil, ocpi.ErrUnauthorized(msgRevokedToken)
	}

	return &Identity{
		Tenant:     tenant,
		Token:      token,
		Claims:     claims,
		Credential: credential,
	}, nil
}

// CheckRole rejects tokens whose role does not match the role segment of the
// URL being called. The comparison ignores case.
func CheckRole(token *domain.PartnerToken, segment string) error {
	if token == nil || !strings.EqualFold(token.Role.Segment(), segment) {
		return ocpi.ErrUnauthorized(msgRoleMismatch)
	}
	return nil
}

// HashToken creates the SHA-256 hash under which a credential is stored.
func HashToken(credential string) string {
	hash := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(hash[:])
}

// Issued is a freshly minted partner credential.
type Issued struct {
	Credential string
	Header     string
	Hash       string
}

// Issue mints a credential for the tenant with the given subdomain. The nonce
// keeps two credentials for the same tenant distinct.
func Issue(codec *Codec, subdomain string) (*Issued, error) {
	if strings.TrimSpace(subdomain) == "" {
		return nil, errors.New("tenant subdomain is required")
	}
	credential, err := EncodeClaims(domain.Claims{Tenant: subdomain, Nonce: uuid.NewString()})
	if err != nil {
		return nil, fmt.Errorf("encode claims: %w", err)
	}
	return &Issued{
		Credential: credential,
		Header:     codec.HeaderValue(credential),
		Hash:       HashToken(credential),
	}, nil
}
