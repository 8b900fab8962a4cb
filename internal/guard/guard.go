// Package guard provides declarative navigation guards.
//
// A Rule matches proposed location paths by glob and either redirects or
// blocks them, depending on a shared Flags set ("authenticated",
// "onboarded"). Each rule becomes one engine.Interceptor named after it, so
// a blocked Result reports the rule that fired.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"sync"

	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/ir"
)

// Rule describes one guard.
type Rule struct {
	// Name identifies the rule in results and logs.
	Name string

	// Match lists path globs (path.Match syntax) the rule applies to.
	Match []string

	// Redirect is the substitute location. Exactly one of Redirect and
	// Block must be set.
	Redirect ir.Location

	// Block is the reason reported when the rule blocks.
	Block string

	// When names a flag that must be set for the rule to apply.
	When string

	// Unless names a flag that disables the rule when set.
	Unless string
}

// Validate checks the rule for structural errors.
func (r Rule) Validate() error {
	var errs []error
	if r.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(r.Match) == 0 {
		errs = append(errs, errors.New("match must list at least one pattern"))
	}
	for _, p := range r.Match {
		if _, err := path.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("match pattern %q: %w", p, err))
		}
	}
	switch {
	case r.Redirect == nil && r.Block == "":
		errs = append(errs, errors.New("one of redirect or block is required"))
	case r.Redirect != nil && r.Block != "":
		errs = append(errs, errors.New("redirect and block are mutually exclusive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("guard %q: %w", r.Name, err)
	}
	return nil
}

// Matches reports whether the rule's patterns match p.
func (r Rule) Matches(p string) bool {
	for _, pattern := range r.Match {
		if ok, _ := path.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// Applies reports whether the rule fires for p under flags.
func (r Rule) Applies(p string, flags *Flags) bool {
	if !r.Matches(p) {
		return false
	}
	if r.When != "" && !flags.Has(r.When) {
		return false
	}
	if r.Unless != "" && flags.Has(r.Unless) {
		return false
	}
	return true
}

// Flags is a concurrency-safe set of named conditions.
type Flags struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

// NewFlags creates a flag set holding names.
func NewFlags(names ...string) *Flags {
	f := &Flags{set: make(map[string]struct{}, len(names))}
	for _, n := range names {
		f.set[n] = struct{}{}
	}
	return f
}

// Set adds name.
func (f *Flags) Set(name string) {
	f.mu.Lock()
	f.set[name] = struct{}{}
	f.mu.Unlock()
	slog.Debug("guard flag set", "flag", name)
}

// Clear removes name.
func (f *Flags) Clear(name string) {
	f.mu.Lock()
	delete(f.set, name)
	f.mu.Unlock()
	slog.Debug("guard flag cleared", "flag", name)
}

// Has reports whether name is set. A nil Flags has nothing set.
func (f *Flags) Has(name string) bool {
	if f == nil {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.set[name]
	return ok
}

// List returns the set flags in sorted order.
func (f *Flags) List() []string {
	if f == nil {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.set))
	for n := range f.set {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Interceptor evaluates one Rule.
type Interceptor struct {
	rule  Rule
	flags *Flags
}

// NewInterceptor validates rule and binds it to flags.
func NewInterceptor(rule Rule, flags *Flags) (*Interceptor, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return &Interceptor{rule: rule, flags: flags}, nil
}

// New builds one interceptor per rule, in order.
func New(flags *Flags, rules ...Rule) ([]engine.Interceptor, error) {
	out := make([]engine.Interceptor, 0, len(rules))
	var errs []error
	for _, r := range rules {
		ic, err := NewInterceptor(r, flags)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, ic)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Name returns the rule name.
func (i *Interceptor) Name() string {
	return i.rule.Name
}

// Intercept implements engine.Interceptor.
func (i *Interceptor) Intercept(_ context.Context, p engine.Proposal, _ ir.Snapshot) (engine.Decision, error) {
	if !i.rule.Applies(p.Location.Path(), i.flags) {
		return engine.Allow(), nil
	}
	if i.rule.Redirect != nil {
		// The redirect target itself always passes this rule.
		if p.Location.Path() == i.rule.Redirect.Path() {
			return engine.Allow(), nil
		}
		return engine.Redirect(i.rule.Redirect), nil
	}
	return engine.Block(i.rule.Block), nil
}
