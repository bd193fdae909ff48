package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
)

// RoleSegmentMiddleware lower-cases the role segment of
// <prefix>/<version>/<role>/... paths so a service mounted under "cpo" also
// answers "/CPO/" and "/Cpo/". It must run before routing: chi's route path
// is rewritten together with the request URL.
func RoleSegmentMiddleware(prefix string) func(http.Handler) http.Handler {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := canonicalRolePath(prefix, r.URL.Path); ok {
				r.URL.Path = p
				if raw, ok := canonicalRolePath(prefix, r.URL.RawPath); ok {
					r.URL.RawPath = raw
				}
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath != "" {
				if p, ok := canonicalRolePath(prefix, rctx.RoutePath); ok {
					rctx.RoutePath = p
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// canonicalRolePath reports the rewritten path when path carries a known
// role segment in anything but lower case.
func canonicalRolePath(prefix, path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, prefix+"/")
	if !ok {
		return "", false
	}
	_, tail, ok := strings.Cut(rest, "/")
	if !ok {
		return "", false
	}
	seg, _, _ := strings.Cut(tail, "/")
	lower := strings.ToLower(seg)
	if lower == seg {
		return "", false
	}
	role, err := domain.ParseRole(lower)
	if err != nil || role.Segment() != lower {
		return "", false
	}
	head := path[:len(path)-len(tail)]
	return head + lower + tail[len(seg):], true
}
