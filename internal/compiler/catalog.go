package compiler

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/navstack/internal/deeplink"
	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/guard"
	"github.com/roach88/navstack/internal/ir"
)

// LocationSpec declares a named location.
type LocationSpec struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`

	// Children names the child locations of a stateful location. A location
	// without children is simple.
	Children []string `json:"children,omitempty"`

	// Initial is the index of the initially active child.
	Initial int `json:"initial,omitempty"`
}

// IsStateful reports whether the location declares children.
func (s LocationSpec) IsStateful() bool {
	return len(s.Children) > 0
}

// GuardSpec declares a guard rule by location name.
type GuardSpec struct {
	Name string `json:"name"`

	// Match lists location names, or path globs when an entry begins with "/".
	Match []string `json:"match"`

	// Redirect names the substitute location.
	Redirect string `json:"redirect,omitempty"`

	// Block is the reason reported when the guard blocks.
	Block string `json:"block,omitempty"`

	When   string `json:"when,omitempty"`
	Unless string `json:"unless,omitempty"`
}

// DeepLinkSpec maps a URI pattern to a sequence of location names.
type DeepLinkSpec struct {
	Pattern   string   `json:"pattern"`
	Locations []string `json:"locations,omitempty"`

	// Defer marks the pattern as recognised but resolved later.
	Defer bool `json:"defer,omitempty"`
}

// Catalog is the compiled form of a navigation catalog.
type Catalog struct {
	Locations []LocationSpec `json:"locations"`
	Guards    []GuardSpec    `json:"guards,omitempty"`
	DeepLinks []DeepLinkSpec `json:"deeplinks,omitempty"`
}

// Lookup returns the location spec with name.
func (c *Catalog) Lookup(name string) (LocationSpec, bool) {
	for _, l := range c.Locations {
		if l.Name == name {
			return l, true
		}
	}
	return LocationSpec{}, false
}

// Names returns the location names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.Locations))
	for i, l := range c.Locations {
		out[i] = l.Name
	}
	slices.Sort(out)
	return out
}

// Location builds the runtime location for name. Stateful locations are
// built with their children, recursively. The catalog must be valid (see
// ValidateCatalog); an unknown name is an error.
func (c *Catalog) Location(name string, opts ...ir.Option) (ir.Location, error) {
	return c.build(name, opts, nil)
}

func (c *Catalog) build(name string, opts []ir.Option, seen []string) (ir.Location, error) {
	if slices.Contains(seen, name) {
		return nil, fmt.Errorf("location %q: nesting cycle %s", name, strings.Join(append(seen, name), " -> "))
	}
	spec, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown location %q", name)
	}
	if !spec.IsStateful() {
		return ir.NewSimple(spec.Path, opts...), nil
	}

	children := make([]ir.Location, len(spec.Children))
	for i, child := range spec.Children {
		loc, err := c.build(child, nil, append(seen, name))
		if err != nil {
			return nil, err
		}
		children[i] = loc
	}
	loc, err := ir.NewStateful(spec.Path, children, spec.Initial, opts...)
	if err != nil {
		return nil, fmt.Errorf("location %q: %w", name, err)
	}
	return loc, nil
}

// LocationsFor builds each named location in order.
func (c *Catalog) LocationsFor(names []string, opts ...ir.Option) ([]ir.Location, error) {
	out := make([]ir.Location, len(names))
	for i, n := range names {
		loc, err := c.Location(n, opts...)
		if err != nil {
			return nil, err
		}
		out[i] = loc
	}
	return out, nil
}

// GuardRules converts the guard specs to runtime rules.
func (c *Catalog) GuardRules() ([]guard.Rule, error) {
	rules := make([]guard.Rule, 0, len(c.Guards))
	for _, g := range c.Guards {
		r := guard.Rule{
			Name:   g.Name,
			Block:  g.Block,
			When:   g.When,
			Unless: g.Unless,
		}
		for _, m := range g.Match {
			if strings.HasPrefix(m, "/") {
				r.Match = append(r.Match, m)
				continue
			}
			spec, ok := c.Lookup(m)
			if !ok {
				return nil, fmt.Errorf("guard %q: unknown location %q", g.Name, m)
			}
			r.Match = append(r.Match, spec.Path)
		}
		if g.Redirect != "" {
			loc, err := c.Location(g.Redirect)
			if err != nil {
				return nil, fmt.Errorf("guard %q: %w", g.Name, err)
			}
			r.Redirect = loc
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Interceptors builds one guard interceptor per guard spec, bound to flags.
func (c *Catalog) Interceptors(flags *guard.Flags) ([]engine.Interceptor, error) {
	rules, err := c.GuardRules()
	if err != nil {
		return nil, err
	}
	return guard.New(flags, rules...)
}

// Router builds a deep link router from the deep link specs. Captured
// pattern parameters are attached to every resolved location as a
// map[string]string payload.
func (c *Catalog) Router(opts ...deeplink.Option) (*deeplink.Router, error) {
	r := deeplink.NewRouter(opts...)
	for _, dl := range c.DeepLinks {
		if dl.Defer {
			if err := r.Defer(dl.Pattern); err != nil {
				return nil, err
			}
			continue
		}
		names := dl.Locations
		build := func(_ context.Context, p deeplink.Params, _ ir.Snapshot) (engine.Resolution, error) {
			var locOpts []ir.Option
			if params := p.Map(); len(params) > 0 {
				locOpts = append(locOpts, ir.WithPayload(params))
			}
			locs, err := c.LocationsFor(names, locOpts...)
			if err != nil {
				return engine.Resolution{}, err
			}
			return engine.Resolved(locs...), nil
		}
		if err := r.Handle(dl.Pattern, build); err != nil {
			return nil, err
		}
	}
	return r, nil
}
