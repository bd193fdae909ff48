package runtime

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apimw "github.com/voltgrid/ocpi-gateway/internal/api/middleware"
	"github.com/voltgrid/ocpi-gateway/internal/auth"
	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
	"github.com/voltgrid/ocpi-gateway/internal/modules"
	"github.com/voltgrid/ocpi-gateway/internal/modules/versions"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
	"github.com/voltgrid/ocpi-gateway/internal/pkg/config"
	"github.com/voltgrid/ocpi-gateway/internal/service"
)

// buildRouter mounts one service per configured version and role and
// returns how many were mounted.
func (g *Gateway) buildRouter(cfg *config.Config) (int, error) {
	r := chi.NewRouter()

	prefix := ""
	if p := strings.Trim(cfg.OCPI.Prefix, "/"); p != "" {
		prefix = "/" + p
	}

	// Apply middleware
	r.Use(chimw.RealIP)
	r.Use(chimw.CleanPath)
	r.Use(apimw.RoleSegmentMiddleware(prefix))
	r.Use(apimw.RequestIDMiddleware)
	r.Use(apimw.LoggingMiddleware(g.logger))
	if cfg.Metrics.Enabled {
		r.Use(apimw.NewMetrics(g.metrics).Middleware)
	}
	r.Use(apimw.RecoverMiddleware(g.logger))
	r.Use(apimw.TimeoutMiddleware(cfg.Server.RequestTimeout))

	// Wrap with OpenTelemetry
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "ocpi-gateway")
	})

	r.NotFound(g.notImplemented)
	r.MethodNotAllowed(g.notImplemented)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		ocpi.WriteResponse(w, ocpi.OK(map[string]string{"status": "ok"}))
	})
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(g.metrics, promhttp.HandlerOpts{}))
		g.logger.Info("registered metrics", slog.String("path", cfg.Metrics.Path))
	}

	var mounts []versions.Mount
	for _, vc := range cfg.OCPI.Versions {
		enc := auth.DefaultEncoding(vc.Version)
		if vc.Encoding != "" {
			var err error
			if enc, err = auth.ParseEncoding(vc.Encoding); err != nil {
				return 0, fmt.Errorf("version %s: %w", vc.Version, err)
			}
		}
		authenticator := auth.NewAuthenticator(auth.NewCodec(enc), g.storage, g.storage,
			auth.WithComponent(cfg.OCPI.Component))

		for _, rc := range vc.Roles {
			role, err := domain.ParseRole(rc.Role)
			if err != nil {
				return 0, fmt.Errorf("version %s: %w", vc.Version, err)
			}
			basePath := prefix + "/" + vc.Version + "/" + role.Segment()

			svc, err := g.newService(cfg, vc.Version, role, basePath, rc.Modules)
			if err != nil {
				return 0, err
			}
			h := apimw.AuthMiddleware(apimw.AuthConfig{
				Authenticator: authenticator,
				Version:       vc.Version,
				RoleSegment:   role.Segment(),
				PublicURL:     cfg.Server.PublicURL,
				Logger:        g.logger,
			})(svc)
			r.Handle(basePath, h)
			r.Handle(basePath+"/*", h)

			mounts = append(mounts, versions.Mount{Version: vc.Version, Role: role})
			g.logger.Info("registered service",
				slog.String("path", basePath),
				slog.String("encoding", string(enc)),
				slog.Any("endpoints", svc.Identifiers()))
		}
	}

	// The listing precedes version selection, so it accepts either encoding
	// and every role.
	listing := apimw.AuthMiddleware(apimw.AuthConfig{
		Authenticator: auth.NewAuthenticator(auth.NewCodec(auth.EncodingAuto), g.storage, g.storage,
			auth.WithComponent(cfg.OCPI.Component)),
		PublicURL: cfg.Server.PublicURL,
		Logger:    g.logger,
	})(versions.New(prefix, mounts, g.logger))
	r.Handle(prefix+"/versions", listing)

	g.handler = r
	return len(mounts), nil
}

func (g *Gateway) newService(cfg *config.Config, version string, role domain.Role, basePath string, names []string) (*service.Service, error) {
	registry := endpoint.NewRegistry()
	deps := modules.Deps{
		Version:     version,
		Role:        role,
		Component:   cfg.OCPI.Component,
		Storage:     g.storage,
		Dispatcher:  g.dispatcher,
		Client:      g.client,
		MaxPageSize: cfg.OCPI.MaxPageSize,
		Logger:      g.logger,
	}
	for _, name := range names {
		ep, err := g.catalog.Create(name, deps)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(ep); err != nil {
			return nil, fmt.Errorf("%s: %w", basePath, err)
		}
	}
	for _, ep := range g.endpoints[mountKey{version: version, role: role}] {
		if err := registry.Register(ep); err != nil {
			return nil, fmt.Errorf("%s: %w", basePath, err)
		}
	}
	return service.New(version, role, basePath, registry,
		service.WithLogger(g.logger),
		service.WithPublicURL(cfg.Server.PublicURL))
}

func (g *Gateway) notImplemented(w http.ResponseWriter, r *http.Request) {
	apimw.LogError(r.Context(), g.logger,
		ocpi.WriteError(w, ocpi.ErrNotImplemented("not implemented").WithDetail(r.URL.Path)))
}
