package engine

import "strings"

// DefaultMaxRedirects is the default redirect bound per request.
const DefaultMaxRedirects = 10

// Hop records one redirect applied while resolving a request.
type Hop struct {
	// By names the interceptor that redirected.
	By string

	// From is the path of the proposed location.
	From string

	// To holds the paths of the substitute locations.
	To []string
}

// String renders the hop as "by: /from => /to1,/to2".
func (h Hop) String() string {
	return h.By + ": " + h.From + " => " + strings.Join(h.To, ",")
}

// redirectBudget bounds redirect recursion for a single request.
//
// Redirect targets are re-run through the whole interceptor chain, so two
// interceptors that redirect into each other would recurse forever. The
// budget counts every hop in the request (across all locations of a
// replace or deep link) and fails the request once the bound is passed.
//
// Two failure shapes are covered by one counter:
//   - A cycle: /a -> /b -> /a -> ...
//   - A linear explosion: /a -> /b -> /c -> ... past the bound
//
// A budget is owned by one request and is not safe for concurrent use;
// requests run one at a time under the writer queue.
type redirectBudget struct {
	limit int
	hops  []Hop
}

func newRedirectBudget(limit int) *redirectBudget {
	return &redirectBudget{limit: limit}
}

// spend records a hop. Returns a REDIRECT_CYCLE error if the bound is passed.
func (b *redirectBudget) spend(op Op, hop Hop) error {
	b.hops = append(b.hops, hop)
	if len(b.hops) > b.limit {
		return newRedirectCycleError(op, b.chain(), b.limit)
	}
	return nil
}

// chain renders the hops as a path sequence for diagnostics:
// "by: /a => /b".
func (b *redirectBudget) chain() []string {
	out := make([]string, len(b.hops))
	for i, h := range b.hops {
		out[i] = h.String()
	}
	return out
}

// used returns the hops recorded so far.
func (b *redirectBudget) used() []Hop {
	out := make([]Hop, len(b.hops))
	copy(out, b.hops)
	return out
}
