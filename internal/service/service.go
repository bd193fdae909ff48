// Package service implements a versioned OCPI service: one protocol version
// and one role, dispatching to the endpoints of its registry.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/voltgrid/ocpi-gateway/internal/api/middleware"
	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

const tracerName = "github.com/voltgrid/ocpi-gateway/internal/service"

// Discovery is the body served at the service root.
type Discovery struct {
	Version   string                `json:"version"`
	Endpoints []endpoint.Descriptor `json:"endpoints"`
}

// Service serves <basePath>/ and everything below it.
type Service struct {
	version   string
	role      domain.Role
	basePath  string
	publicURL string
	registry  *endpoint.Registry
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for failed requests.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublicURL sets the externally visible base URL used in discovery
// listings and pagination links.
func WithPublicURL(u string) Option {
	return func(s *Service) {
		s.publicURL = u
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// New creates a service for version and role mounted at basePath, e.g.
// "/ocpi/2.2.1/cpo". The registry is sealed: it must be fully populated
// before it is handed over.
func New(version string, role domain.Role, basePath string, registry *endpoint.Registry, opts ...Option) (*Service, error) {
	if version == "" {
		return nil, errors.New("service version is required")
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, fmt.Errorf("service role: %w", err)
	}
	if registry == nil {
		return nil, errors.New("service registry is required")
	}
	basePath = "/" + strings.Trim(basePath, "/")

	s := &Service{
		version:  version,
		role:     role,
		basePath: basePath,
		registry: registry,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	registry.Seal()
	return s, nil
}

// Version returns the protocol version the service speaks.
func (s *Service) Version() string { return s.version }

// Role returns the role the service serves.
func (s *Service) Role() domain.Role { return s.role }

// BasePath returns the path the service is mounted at.
func (s *Service) BasePath() string { return s.basePath }

// Identifiers lists the registered endpoint identifiers in order.
func (s *Service) Identifiers() []string { return s.registry.Identifiers() }

// Discovery builds the listing of the registered endpoints under rootURL.
func (s *Service) Discovery(rootURL string) Discovery {
	return Discovery{
		Version:   s.version,
		Endpoints: s.registry.Descriptors(rootURL),
	}
}

// ServeHTTP dispatches on the first path segment below the base path.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	segments, ok := s.split(r.URL.Path)
	if !ok {
		s.fail(w, r, ocpi.ErrNotImplemented("not implemented").WithDetail(r.URL.Path))
		return
	}

	base := s.baseURL(r)
	if len(segments) == 0 {
		if r.Method != http.MethodGet {
			s.fail(w, r, ocpi.ErrMethodNotSupported(r.Method, "/"))
			return
		}
		root := strings.TrimSuffix(base.String(), "/") + s.basePath + "/"
		s.respond(w, r, ocpi.OK(s.Discovery(root)))
		return
	}

	id := segments[0]
	ep, ok := s.registry.Lookup(id)
	if !ok {
		s.fail(w, r, ocpi.ErrUnknownResource(id))
		return
	}
	middleware.AddLogField(ctx, middleware.FieldModule, id)

	rc, _ := endpoint.FromContext(ctx)
	ctx, span := s.tracer.Start(ctx, "ocpi."+id,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("ocpi.version", s.version),
			attribute.String("ocpi.role", string(s.role)),
			attribute.String("ocpi.module", id),
			attribute.String("ocpi.tenant", rc.TenantID()),
		))
	defer span.End()

	reqURL := *base
	reqURL.Path = strings.TrimSuffix(base.Path, "/") + r.URL.Path

	req := &endpoint.Request{
		Context: rc,
		Method:  r.Method,
		Path:    segments[1:],
		Query:   r.URL.Query(),
		URL:     &reqURL,
		HTTP:    r.WithContext(ctx),
	}

	resp, err := ep.Process(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ocpi.AsError(err).StatusMessage())
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	s.respond(w, r.WithContext(ctx), resp)
}

// split returns the path segments below the base path. One leading and one
// trailing slash are dropped; empty segments in between are kept so that
// positional parameters do not shift. It reports false when path is not below
// the base path at all.
func (s *Service) split(path string) ([]string, bool) {
	rest, ok := strings.CutPrefix(path, s.basePath)
	if !ok || (rest != "" && rest[0] != '/') {
		return nil, false
	}
	rest = strings.TrimSuffix(strings.TrimPrefix(rest, "/"), "/")
	if rest == "" {
		return nil, true
	}
	return strings.Split(rest, "/"), true
}

func (s *Service) baseURL(r *http.Request) *url.URL {
	if rc, ok := endpoint.FromContext(r.Context()); ok && rc.BaseURL != nil {
		u := *rc.BaseURL
		return &u
	}
	return endpoint.ExternalBaseURL(r, s.publicURL)
}

func (s *Service) respond(w http.ResponseWriter, r *http.Request, resp *ocpi.Response) {
	if oe := ocpi.WriteResponse(w, resp); oe != nil {
		middleware.LogError(r.Context(), s.logger, oe)
		return
	}
	middleware.RecordStatus(r.Context(), ocpi.StatusSuccess)
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	middleware.LogError(r.Context(), s.logger, ocpi.WriteError(w, err))
}
