package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %v -> %s %v\n", ev.Step, ev.Op, ev.Input, ev.Outcome, ev.Root)
	}

	return buf.String()
}

// assertOutcomeCount checks how many steps ended with the given outcome.
func assertOutcomeCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Outcome == a.Outcome && (a.Op == "" || ev.Op == a.Op) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}

	what := a.Outcome
	if a.Op != "" {
		what = a.Op + " " + a.Outcome
	}
	return &AssertionError{
		Type:     AssertOutcomeCount,
		Expected: fmt.Sprintf("%d %s step(s)", a.Count, what),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    trace,
	}
}

// assertVisitedOrder checks that the paths were displayed in order.
// Other paths may be displayed in between.
func assertVisitedOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Paths) && ev.Top == a.Paths[next] {
			next++
		}
	}
	if next == len(a.Paths) {
		return nil
	}
	return &AssertionError{
		Type:     AssertVisitedOrder,
		Expected: fmt.Sprintf("paths displayed in order: %v", a.Paths),
		Actual:   fmt.Sprintf("%s never displayed after %v", a.Paths[next], a.Paths[:next]),
		Trace:    trace,
	}
}

// assertFinalState checks the final root and active stacks.
func assertFinalState(result *Result, a Assertion) error {
	if a.Root != nil && !slices.Equal(a.Root, result.Root) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("root %v", a.Root),
			Actual:   fmt.Sprintf("root %v", result.Root),
			Trace:    result.Trace,
		}
	}
	if a.Active != nil && !slices.Equal(a.Active, result.Active) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("active %v", a.Active),
			Actual:   fmt.Sprintf("active %v", result.Active),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertRedirected checks that some step redirected From a path To a path.
// Empty fields match anything.
func assertRedirected(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		for _, hop := range ev.Redirects {
			if matchHop(hop, a) {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertRedirected,
		Expected: fmt.Sprintf("redirect by %s from %s to %s", anyIfEmpty(a.Interceptor), anyIfEmpty(a.From), anyIfEmpty(a.To)),
		Actual:   "no matching redirect in trace",
		Trace:    trace,
	}
}

// matchHop matches a rendered hop "by: /from => /to1,/to2".
func matchHop(hop string, a Assertion) bool {
	by, rest, ok := strings.Cut(hop, ": ")
	if !ok {
		return false
	}
	from, to, ok := strings.Cut(rest, " => ")
	if !ok {
		return false
	}
	if a.Interceptor != "" && a.Interceptor != by {
		return false
	}
	if a.From != "" && a.From != from {
		return false
	}
	if a.To != "" && !slices.Contains(strings.Split(to, ","), a.To) {
		return false
	}
	return true
}

func anyIfEmpty(s string) string {
	if s == "" {
		return "any"
	}
	return s
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertOutcomeCount:
			err = assertOutcomeCount(result.Trace, a)
		case AssertVisitedOrder:
			err = assertVisitedOrder(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result, a)
		case AssertRedirected:
			err = assertRedirected(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}
