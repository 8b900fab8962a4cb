package engine

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// KeyGenerator produces stable entry keys.
//
// A key is assigned once when an entry is created and never changes while
// the entry lives in a stack. The rendering layer uses it to preserve
// screen state across snapshots.
type KeyGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 keys. This is the default.
//
// Safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns prefix1, prefix2, ... in order.
// Used by the scenario harness so traces are reproducible.
type SequenceGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequenceGenerator creates a generator whose first key is prefix+"1".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next key in the sequence.
func (g *SequenceGenerator) Generate() string {
	return g.prefix + strconv.FormatInt(g.n.Add(1), 10)
}

// FixedGenerator returns predetermined keys for testing.
//
// Safe for concurrent use.
type FixedGenerator struct {
	mu   sync.Mutex
	keys []string
	idx  int
}

// NewFixedGenerator creates a generator that returns keys in order.
//
//	gen := NewFixedGenerator("home", "detail")
//	gen.Generate() // "home"
//	gen.Generate() // "detail"
//	gen.Generate() // panic: all keys exhausted
func NewFixedGenerator(keys ...string) *FixedGenerator {
	return &FixedGenerator{keys: keys}
}

// Generate returns the next predetermined key.
//
// Panics if all keys have been consumed, so a test that creates more
// entries than it expects fails loudly.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.keys) {
		panic("FixedGenerator: all keys exhausted")
	}
	key := g.keys[g.idx]
	g.idx++
	return key
}
