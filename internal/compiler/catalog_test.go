package compiler

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/guard"
	"github.com/roach88/navstack/internal/ir"
)

func shop(t *testing.T) *Catalog {
	t.Helper()
	c, err := compileString(t, shopCatalog)
	require.NoError(t, err)
	require.Empty(t, ValidateCatalog(c))
	return c
}

func TestCatalogLocation(t *testing.T) {
	c := shop(t)

	home, err := c.Location("home")
	require.NoError(t, err)
	assert.Equal(t, ir.KindSimple, home.Kind())
	assert.Equal(t, "/home", home.Path())

	shell, err := c.Location("shell")
	require.NoError(t, err)
	s, ok := shell.(*ir.Stateful)
	require.True(t, ok)
	assert.Equal(t, []string{"/feed", "/me"}, ir.Paths(s.Children()))
	assert.Equal(t, 1, s.Initial())

	_, err = c.Location("ghost")
	assert.Error(t, err)
}

func TestCatalogLocationCycle(t *testing.T) {
	c := &Catalog{Locations: []LocationSpec{
		{Name: "a", Path: "/a", Children: []string{"b"}},
		{Name: "b", Path: "/b", Children: []string{"a"}},
	}}
	_, err := c.Location("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestCatalogGuardRules(t *testing.T) {
	rules, err := shop(t).GuardRules()
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "auth", rules[0].Name)
	assert.Equal(t, []string{"/me", "/settings/*"}, rules[0].Match)
	require.NotNil(t, rules[0].Redirect)
	assert.Equal(t, "/login", rules[0].Redirect.Path())
	assert.Equal(t, "authenticated", rules[0].Unless)

	assert.Equal(t, []string{"/item"}, rules[1].Match)
	assert.Nil(t, rules[1].Redirect)
}

func TestCatalogRouter(t *testing.T) {
	r, err := shop(t).Router()
	require.NoError(t, err)

	u, err := url.Parse("app://item/42")
	require.NoError(t, err)
	res, err := r.Resolve(context.Background(), u, ir.Snapshot{})
	require.NoError(t, err)
	require.Len(t, res.Locations, 2)
	assert.Equal(t, []string{"/home", "/item"}, ir.Paths(res.Locations))

	payload, ok := ir.PayloadAs[map[string]string](res.Locations[1])
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "42"}, payload)

	u, _ = url.Parse("app://checkout/now")
	res, err = r.Resolve(context.Background(), u, ir.Snapshot{})
	require.NoError(t, err)
	assert.True(t, res.Deferred)
}

func TestCatalogWiresEngine(t *testing.T) {
	ctx := context.Background()
	c := shop(t)
	flags := guard.NewFlags()

	ics, err := c.Interceptors(flags)
	require.NoError(t, err)
	router, err := c.Router()
	require.NoError(t, err)
	home, err := c.Location("home")
	require.NoError(t, err)

	e, err := engine.New(home,
		engine.WithInterceptors(ics...),
		engine.WithResolver(router),
		engine.WithKeyGenerator(engine.NewSequenceGenerator("k")))
	require.NoError(t, err)
	defer e.Close()

	res, err := e.DeepLink(ctx, "app://me")
	require.NoError(t, err)
	assert.True(t, res.Committed())
	assert.Equal(t, []string{"/shell"}, res.Snapshot.RootPaths())
	// The initially active child /me is seeded without interception.
	assert.Equal(t, []string{"/me"}, res.Snapshot.ActivePaths())

	profile, err := c.Location("profile")
	require.NoError(t, err)
	res, err = e.Navigate(ctx, profile, engine.TargetRoot)
	require.NoError(t, err)
	assert.Equal(t, []string{"/shell", "/login"}, res.Snapshot.RootPaths())

	flags.Set("authenticated")
	res, err = e.Navigate(ctx, profile, engine.TargetRoot)
	require.NoError(t, err)
	assert.Equal(t, []string{"/shell", "/login", "/me"}, res.Snapshot.RootPaths())
}
