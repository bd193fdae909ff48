// Package versions serves the version listing a partner starts from: every
// protocol version mounted for the caller's role, with the URL of its
// endpoint discovery.
package versions

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/voltgrid/ocpi-gateway/internal/api/middleware"
	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

// Identifier names the listing in logs and metrics.
const Identifier = "versions"

// Mount is one version/role combination served by the gateway.
type Mount struct {
	Version string
	Role    domain.Role
}

// Version is one entry of the listing.
type Version struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

// Handler serves the listing. It runs behind the auth middleware without a
// role check and reads the caller's role from the request context.
type Handler struct {
	prefix string
	mounts []Mount
	logger *slog.Logger
}

// New creates the listing for mounts below prefix, e.g. "/ocpi".
func New(prefix string, mounts []Mount, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return &Handler{prefix: prefix, mounts: append([]Mount(nil), mounts...), logger: logger}
}

// List returns the versions available to role under base.
func (h *Handler) List(base string, role domain.Role) []Version {
	base = strings.TrimSuffix(base, "/")
	out := make([]Version, 0, len(h.mounts))
	for _, m := range h.mounts {
		if m.Role != role {
			continue
		}
		out = append(out, Version{
			Version: m.Version,
			URL:     base + h.prefix + "/" + m.Version + "/" + role.Segment() + "/",
		})
	}
	return out
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	middleware.AddLogField(ctx, middleware.FieldModule, Identifier)

	if r.Method != http.MethodGet {
		middleware.LogError(ctx, h.logger, ocpi.WriteError(w, ocpi.ErrMethodNotSupported(r.Method, r.URL.Path)))
		return
	}
	rc, ok := endpoint.FromContext(ctx)
	if !ok || rc.Token == nil {
		middleware.LogError(ctx, h.logger, ocpi.WriteError(w, ocpi.ErrUnauthorized("missing authorization token")))
		return
	}

	base := rc.BaseURL
	if base == nil {
		base = endpoint.ExternalBaseURL(r, "")
	}
	if oe := ocpi.WriteResponse(w, ocpi.OK(h.List(base.String(), rc.Role))); oe != nil {
		middleware.LogError(ctx, h.logger, oe)
		return
	}
	middleware.RecordStatus(ctx, ocpi.StatusSuccess)
}
