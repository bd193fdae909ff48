package endpoint

import (
	"context"
	"strings"

	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

// HandlerFunc handles one {method, sub-resource} combination.
type HandlerFunc func(ctx context.Context, req *Request) (*ocpi.Response, error)

// Route identifies a sub-resource by method and path pattern. Pattern
// segments in braces bind parameters, e.g. "{country_code}/{party_id}/{tariff_id}".
// The empty pattern is the endpoint root.
type Route struct {
	Method  string
	Pattern string
}

type muxRoute struct {
	Route
	segments []string
	handler  HandlerFunc
}

// Mux dispatches a request over an explicit table of routes. A request that
// matches no route is answered with a client error: a missing parameter when a
// route with the same method is longer or has that parameter empty,
// method-not-supported otherwise.
type Mux struct {
	routes []muxRoute
}

// NewMux creates an empty mux.
func NewMux() *Mux {
	return &Mux{}
}

// Handle registers h for method and pattern.
func (m *Mux) Handle(method, pattern string, h HandlerFunc) *Mux {
	pattern = strings.Trim(pattern, "/")
	var segments []string
	if pattern != "" {
		segments = strings.Split(pattern, "/")
	}
	m.routes = append(m.routes, muxRoute{
		Route:    Route{Method: method, Pattern: pattern},
		segments: segments,
		handler:  h,
	})
	return m
}

// Dispatch runs the handler matching req and binds its parameters.
func (m *Mux) Dispatch(ctx context.Context, req *Request) (*ocpi.Response, error) {
	var missing string
	for _, rt := range m.routes {
		if rt.Method != req.Method {
			continue
		}
		params, empty, ok := match(rt.segments, req.Path)
		if ok {
			req.Params = params
			return rt.handler(ctx, req)
		}
		if missing == "" && empty != "" {
			missing = empty
		}
		if missing == "" && len(req.Path) < len(rt.segments) {
			if _, empty, prefixOK := match(rt.segments[:len(req.Path)], req.Path); prefixOK {
				missing = paramName(rt.segments[len(req.Path)])
			} else if empty != "" {
				missing = empty
			}
		}
	}
	if missing != "" {
		return nil, ocpi.ErrMissingParameter(missing)
	}
	return nil, ocpi.ErrMethodNotSupported(req.Method, req.SubPath())
}

// match binds path against pattern. When the only mismatch is an empty
// parameter segment, the first such parameter is named in empty.
func match(pattern, path []string) (params map[string]string, empty string, ok bool) {
	if len(pattern) != len(path) {
		return nil, "", false
	}
	params = make(map[string]string, len(pattern))
	for i, seg := range pattern {
		if isParam(seg) {
			if path[i] == "" {
				if empty == "" {
					empty = paramName(seg)
				}
				continue
			}
			params[paramName(seg)] = path[i]
			continue
		}
		if seg != path[i] {
			return nil, "", false
		}
	}
	if empty != "" {
		return nil, empty, false
	}
	return params, "", true
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

func paramName(seg string) string {
	return strings.TrimSuffix(strings.TrimPrefix(seg, "{"), "}")
}
