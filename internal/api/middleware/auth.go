package middleware

import (
	"log/slog"
	"net/http"

	"github.com/voltgrid/ocpi-gateway/internal/auth"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

// AuthConfig configures AuthMiddleware for one mount.
type AuthConfig struct {
	Authenticator *auth.Authenticator

	// Version is the protocol version served below the mount.
	Version string

	// RoleSegment is the role segment of the mount's URL. Empty disables the
	// role check, which is only appropriate for role-independent routes.
	RoleSegment string

	// PublicURL overrides the externally visible base URL.
	PublicURL string

	Logger *slog.Logger
}

// AuthMiddleware authenticates the partner token and attaches the resolved
// endpoint.RequestContext. Every rejection is answered with an error envelope
// before any handler below it runs.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			AddLogField(ctx, FieldVersion, cfg.Version)
			AddLogField(ctx, FieldRole, cfg.RoleSegment)

			id, err := cfg.Authenticator.Authenticate(ctx, r.Header.Get("Authorization"))
			if err == nil && cfg.RoleSegment != "" {
				err = auth.CheckRole(id.Token, cfg.RoleSegment)
			}
			if err != nil {
				if id != nil {
					AddLogField(ctx, FieldTenant, id.Tenant.ID)
				}
				LogError(ctx, logger, ocpi.WriteError(w, err))
				return
			}

			AddLogField(ctx, FieldTenant, id.Tenant.ID)
			AddLogField(ctx, FieldRole, id.Token.Role.Segment())

			rc := &endpoint.RequestContext{
				Tenant:     id.Tenant,
				Token:      id.Token,
				Claims:     id.Claims,
				Version:    cfg.Version,
				Role:       id.Token.Role,
				Credential: id.Credential,
				BaseURL:    endpoint.ExternalBaseURL(r, cfg.PublicURL),
			}
			next.ServeHTTP(w, r.WithContext(endpoint.WithRequestContext(ctx, rc)))
		})
	}
}

// RequestContext retrieves the context attached by AuthMiddleware.
// Returns nil if the request was not authenticated.
func RequestContext(r *http.Request) *endpoint.RequestContext {
	rc, _ := endpoint.FromContext(r.Context())
	return rc
}
