// Package deeplink resolves deep link URIs to location sequences by pattern.
//
// Patterns use chi's route syntax ("/item/{id}", "/docs/*"). The routing
// path of a URI is its host followed by its path, so "app://item/42" and
// "/item/42" both match "/item/{id}". Router implements engine.Resolver.
package deeplink

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/ir"
)

// Params carries the matched pattern and its captured values.
type Params struct {
	URI     *url.URL
	Pattern string

	keys   []string
	values []string
}

// Get returns the value captured for a pattern parameter, or "".
func (p Params) Get(name string) string {
	for i, k := range p.keys {
		if k == name {
			return p.values[i]
		}
	}
	return ""
}

// Query returns the first value of a query parameter, or "".
func (p Params) Query(name string) string {
	if p.URI == nil {
		return ""
	}
	return p.URI.Query().Get(name)
}

// Map returns the captured parameters as a map.
func (p Params) Map() map[string]string {
	m := make(map[string]string, len(p.keys))
	for i, k := range p.keys {
		m[k] = p.values[i]
	}
	return m
}

// BuildFunc turns a matched URI into the locations to install. It may block.
type BuildFunc func(ctx context.Context, p Params, snap ir.Snapshot) (engine.Resolution, error)

// Locations returns a BuildFunc that always resolves to locs.
func Locations(locs ...ir.Location) BuildFunc {
	return func(context.Context, Params, ir.Snapshot) (engine.Resolution, error) {
		return engine.Resolved(locs...), nil
	}
}

type route struct {
	pattern string
	build   BuildFunc
}

// Router matches deep link URIs against registered patterns.
//
// Routes may be added concurrently with Resolve, but a Router is normally
// built once and then handed to engine.WithResolver.
type Router struct {
	mu       sync.RWMutex
	mux      *chi.Mux
	routes   map[string]route
	fallback engine.Resolver
	withHost bool
}

// Option configures a Router.
type Option func(*Router)

// WithFallback resolves URIs that match no pattern. The default defers.
func WithFallback(r engine.Resolver) Option {
	return func(rt *Router) {
		rt.fallback = r
	}
}

// WithoutHost routes on the URI path alone, for web-style links where the
// host is the application's own domain.
func WithoutHost() Option {
	return func(rt *Router) {
		rt.withHost = false
	}
}

// NewRouter creates an empty Router.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		mux:      chi.NewRouter(),
		routes:   make(map[string]route),
		withHost: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers build for pattern. Registering a pattern twice is an
// error.
func (r *Router) Handle(pattern string, build BuildFunc) error {
	if build == nil {
		return fmt.Errorf("deeplink: nil build func for %q", pattern)
	}
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("deeplink: pattern %q must begin with /", pattern)
	}
	if len(pattern) > 1 && strings.HasSuffix(pattern, "/") {
		return fmt.Errorf("deeplink: pattern %q must not end with /", pattern)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.routes[pattern]; dup {
		return fmt.Errorf("deeplink: duplicate pattern %q", pattern)
	}
	if err := register(r.mux, pattern); err != nil {
		return err
	}
	r.routes[pattern] = route{pattern: pattern, build: build}
	return nil
}

// Defer registers pattern as recognised but not yet resolvable: matching
// URIs resolve to engine.Defer().
func (r *Router) Defer(pattern string) error {
	return r.Handle(pattern, func(context.Context, Params, ir.Snapshot) (engine.Resolution, error) {
		return engine.Defer(), nil
	})
}

// Patterns returns the registered patterns.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routes))
	for p := range r.routes {
		out = append(out, p)
	}
	return out
}

// register adds pattern to mux, converting chi's panics on malformed
// patterns into errors.
func register(mux *chi.Mux, pattern string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("deeplink: invalid pattern %q: %v", pattern, rec)
		}
	}()
	mux.Handle(pattern, http.NotFoundHandler())
	return nil
}

// Resolve implements engine.Resolver.
func (r *Router) Resolve(ctx context.Context, uri *url.URL, snap ir.Snapshot) (engine.Resolution, error) {
	path := r.routePath(uri)

	r.mu.RLock()
	rctx := chi.NewRouteContext()
	matched := r.mux.Match(rctx, http.MethodGet, path)
	var rt route
	if matched {
		rt = r.routes[rctx.RoutePattern()]
	}
	fallback := r.fallback
	r.mu.RUnlock()

	if rt.build == nil {
		slog.Debug("deep link unmatched", "uri", uri.String(), "path", path)
		if fallback == nil {
			return engine.Defer(), nil
		}
		return fallback.Resolve(ctx, uri, snap)
	}

	p := Params{
		URI:     uri,
		Pattern: rt.pattern,
		keys:    append([]string(nil), rctx.URLParams.Keys...),
		values:  append([]string(nil), rctx.URLParams.Values...),
	}
	slog.Debug("deep link matched", "uri", uri.String(), "pattern", rt.pattern, "params", p.Map())

	res, err := rt.build(ctx, p, snap)
	if err != nil {
		return engine.Resolution{}, fmt.Errorf("deeplink %s: %w", rt.pattern, err)
	}
	return res, nil
}

func (r *Router) routePath(u *url.URL) string {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	if r.withHost && u.Host != "" {
		path = "/" + u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
