package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseCatalog() *Catalog {
	return &Catalog{
		Locations: []LocationSpec{
			{Name: "feed", Path: "/feed"},
			{Name: "home", Path: "/home"},
			{Name: "login", Path: "/login"},
			{Name: "profile", Path: "/profile"},
			{Name: "shell", Path: "/shell", Children: []string{"feed", "profile"}},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateCatalog(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Catalog)
		want   []string
	}{
		{"valid", func(*Catalog) {}, []string{}},
		{"duplicate path", func(c *Catalog) {
			c.Locations = append(c.Locations, LocationSpec{Name: "start", Path: "/home"})
		}, []string{ErrDuplicatePath}},
		{"invalid name", func(c *Catalog) {
			c.Locations = append(c.Locations, LocationSpec{Name: "9lives", Path: "/nine"})
		}, []string{ErrInvalidName}},
		{"unknown child", func(c *Catalog) {
			c.Locations[4].Children = []string{"feed", "ghost"}
		}, []string{ErrUnknownChild}},
		{"duplicate child", func(c *Catalog) {
			c.Locations[4].Children = []string{"feed", "feed"}
		}, []string{ErrDuplicateChild}},
		{"initial out of range", func(c *Catalog) {
			c.Locations[4].Initial = 2
		}, []string{ErrInitialOutOfRange}},
		{"nesting cycle", func(c *Catalog) {
			c.Locations[4].Children = []string{"feed", "shell"}
		}, []string{ErrNestingCycle}},
		{"guard unknown match", func(c *Catalog) {
			c.Guards = []GuardSpec{{Name: "g", Match: []string{"nowhere"}, Block: "x"}}
		}, []string{ErrUnknownGuardMatch}},
		{"guard bad glob", func(c *Catalog) {
			c.Guards = []GuardSpec{{Name: "g", Match: []string{"/[x"}, Block: "x"}}
		}, []string{ErrInvalidGlob}},
		{"guard no action", func(c *Catalog) {
			c.Guards = []GuardSpec{{Name: "g", Match: []string{"home"}}}
		}, []string{ErrGuardAction}},
		{"guard both actions", func(c *Catalog) {
			c.Guards = []GuardSpec{{Name: "g", Match: []string{"home"}, Block: "x", Redirect: "login"}}
		}, []string{ErrGuardAction}},
		{"guard unknown redirect", func(c *Catalog) {
			c.Guards = []GuardSpec{{Name: "g", Match: []string{"home"}, Redirect: "ghost"}}
		}, []string{ErrUnknownRedirect}},
		{"guard redirects onto itself", func(c *Catalog) {
			c.Guards = []GuardSpec{{Name: "g", Match: []string{"/*"}, Redirect: "login"}}
		}, []string{ErrRedirectSelfMatch}},
		{"conditional self match is allowed", func(c *Catalog) {
			c.Guards = []GuardSpec{{Name: "g", Match: []string{"/*"}, Redirect: "login", Unless: "authenticated"}}
		}, []string{}},
		{"deeplink bad pattern", func(c *Catalog) {
			c.DeepLinks = []DeepLinkSpec{{Pattern: "item/{id}", Locations: []string{"home"}}}
		}, []string{ErrInvalidPattern}},
		{"deeplink unknown target", func(c *Catalog) {
			c.DeepLinks = []DeepLinkSpec{{Pattern: "/item/{id}", Locations: []string{"home", "item"}}}
		}, []string{ErrUnknownLinkTarget}},
		{"deferred with locations", func(c *Catalog) {
			c.DeepLinks = []DeepLinkSpec{{Pattern: "/later", Locations: []string{"home"}, Defer: true}}
		}, []string{ErrDeferWithLocations}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseCatalog()
			tt.mutate(c)
			assert.Equal(t, tt.want, codes(ValidateCatalog(c)))
		})
	}
}

func TestValidateCatalogCollectsAll(t *testing.T) {
	c := baseCatalog()
	c.Locations[4].Initial = 5
	c.Guards = []GuardSpec{{Name: "g", Match: []string{"ghost"}, Block: "x"}}
	c.DeepLinks = []DeepLinkSpec{{Pattern: "/x", Locations: []string{"ghost"}}}

	errs := ValidateCatalog(c)
	require.Len(t, errs, 3)
	assert.Equal(t, "location.shell.initial", errs[0].Field)
	assert.Equal(t, "guard.g.match[0]", errs[1].Field)
	assert.Equal(t, "deeplink./x[0]", errs[2].Field)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "location.a", Message: "bad", Code: ErrUnknownChild}
	assert.Equal(t, "[E102] location.a: bad", err.Error())

	err.Line = 7
	assert.Equal(t, "[E102] line 7: location.a: bad", err.Error())
}
