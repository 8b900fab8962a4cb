package ir

import (
	"errors"
	"fmt"
)

// Kind discriminates the Location variants.
type Kind int

const (
	// KindSimple is a leaf location producing one render directive.
	KindSimple Kind = iota + 1

	// KindStateful owns child locations, each with an independent branch.
	KindStateful
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindStateful:
		return "stateful"
	default:
		return "unknown"
	}
}

// Directive is whatever the rendering layer needs to display an entry.
// The engine threads it through snapshots by key and never inspects it.
type Directive any

// Factory produces the Directive for a resolved entry.
// It is invoked by the rendering layer (see Node.Render), never by the engine.
type Factory func(key string, loc Location) Directive

// Location is an immutable description of a navigable destination.
//
// The interface is closed: only *Simple and *Stateful implement it. Code that
// switches on Kind() is therefore exhaustive.
type Location interface {
	// Path is the stable identifier used for identity comparison and diffing.
	// It is not required to be unique across instances.
	Path() string

	// Payload is the opaque data the destination needs. Use PayloadAs for
	// typed access.
	Payload() any

	// Kind reports the variant.
	Kind() Kind

	// Factory returns the render directive factory, or nil.
	Factory() Factory

	location()
}

// Option configures the optional attributes of a Location.
type Option func(*attrs)

type attrs struct {
	payload any
	factory Factory
}

// WithPayload attaches typed data to a Location.
func WithPayload(v any) Option {
	return func(a *attrs) {
		a.payload = v
	}
}

// WithFactory attaches a render directive factory to a Location.
func WithFactory(f Factory) Option {
	return func(a *attrs) {
		a.factory = f
	}
}

func applyOptions(opts []Option) attrs {
	var a attrs
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// Simple is a leaf Location.
type Simple struct {
	path    string
	payload any
	factory Factory
}

// NewSimple creates a leaf Location.
func NewSimple(path string, opts ...Option) *Simple {
	a := applyOptions(opts)
	return &Simple{
		path:    path,
		payload: a.payload,
		factory: a.factory,
	}
}

func (s *Simple) Path() string { return s.path }
func (s *Simple) Payload() any { return s.payload }
func (s *Simple) Kind() Kind { return KindSimple }
func (s *Simple) Factory() Factory { return s.factory }
func (s *Simple) location() {}
func (s *Simple) String() string { return s.path }

// Errors returned by NewStateful.
var (
	ErrNoChildren = errors.New("stateful location requires at least one child")
	ErrNilChild   = errors.New("stateful location child is nil")
)

// Stateful is a Location that owns an ordered, fixed set of children.
// Each child gets its own branch stack when the location is mounted.
//
// INVARIANT: children never change after construction. Build a new
// Stateful to change the child set.
type Stateful struct {
	path     string
	payload  any
	factory  Factory
	children []Location
	initial  int
}

// NewStateful creates a Stateful location.
//
// Returns an error if children is empty, contains nil, or initial is out of
// range. The children slice is copied.
func NewStateful(path string, children []Location, initial int, opts ...Option) (*Stateful, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoChildren)
	}
	for i, c := range children {
		if c == nil {
			return nil, fmt.Errorf("%s: child %d: %w", path, i, ErrNilChild)
		}
	}
	if initial < 0 || initial >= len(children) {
		return nil, fmt.Errorf("%s: initial child %d out of range [0,%d)", path, initial, len(children))
	}

	a := applyOptions(opts)
	childrenCopy := make([]Location, len(children))
	copy(childrenCopy, children)

	return &Stateful{
		path:     path,
		payload:  a.payload,
		factory:  a.factory,
		children: childrenCopy,
		initial:  initial,
	}, nil
}

// MustStateful is like NewStateful but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStateful(path string, children []Location, initial int, opts ...Option) *Stateful {
	s, err := NewStateful(path, children, initial, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Stateful) Path() string { return s.path }
func (s *Stateful) Payload() any { return s.payload }
func (s *Stateful) Kind() Kind { return KindStateful }
func (s *Stateful) Factory() Factory { return s.factory }
func (s *Stateful) location() {}
func (s *Stateful) String() string { return s.path }

// Children returns a copy of the declared children in order.
func (s *Stateful) Children() []Location {
	out := make([]Location, len(s.children))
	copy(out, s.children)
	return out
}

// Child returns the child at index i.
func (s *Stateful) Child(i int) (Location, bool) {
	if i < 0 || i >= len(s.children) {
		return nil, false
	}
	return s.children[i], true
}

// ChildCount returns the number of declared children.
func (s *Stateful) ChildCount() int {
	return len(s.children)
}

// Initial returns the index of the child that is active when mounted.
func (s *Stateful) Initial() int {
	return s.initial
}

// PayloadAs returns the payload of loc as T.
// Returns false if loc is nil or the payload is not a T.
func PayloadAs[T any](loc Location) (T, bool) {
	var zero T
	if loc == nil {
		return zero, false
	}
	v, ok := loc.Payload().(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// SameStructure reports whether a and b would share branch state when one
// replaces the other in place: same path, same kind, and for stateful
// locations the same child count.
func SameStructure(a, b Location) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Path() != b.Path() || a.Kind() != b.Kind() {
		return false
	}
	if a.Kind() == KindStateful {
		return a.(*Stateful).ChildCount() == b.(*Stateful).ChildCount()
	}
	return true
}

// Paths returns the paths of locs in order.
func Paths(locs []Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.Path()
	}
	return out
}
