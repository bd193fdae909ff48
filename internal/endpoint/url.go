package endpoint

import (
	"net/http"
	"net/url"
	"strings"
)

// ExternalBaseURL returns the scheme://host partners address the gateway
// under. A configured publicURL wins; otherwise it is derived from the
// request, honouring X-Forwarded-Proto from a terminating proxy.
func ExternalBaseURL(r *http.Request, publicURL string) *url.URL {
	if publicURL != "" {
		if u, err := url.Parse(publicURL); err == nil && u.Scheme != "" && u.Host != "" {
			return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: strings.TrimSuffix(u.Path, "/")}
		}
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		first, _, _ := strings.Cut(proto, ",")
		scheme = strings.ToLower(strings.TrimSpace(first))
	}
	return &url.URL{Scheme: scheme, Host: r.Host}
}
