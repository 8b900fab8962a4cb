package harness

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/navstack/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Optional fields are omitted when empty.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step":    ev.Step,
			"op":      ev.Op,
			"outcome": ev.Outcome,
			"version": ev.Version,
			"root":    ev.Root,
			"active":  ev.Active,
			"top":     ev.Top,
		}
		if len(ev.Input) > 0 {
			m["input"] = ev.Input
		}
		if ev.Target != "" {
			m["target"] = ev.Target
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		if len(ev.Redirects) > 0 {
			m["redirects"] = ev.Redirects
		}
		if ev.BlockedBy != "" {
			m["blocked_by"] = ev.BlockedBy
		}
		if ev.Reason != "" {
			m["reason"] = ev.Reason
		}
		traceList[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// GoldenTrace renders a result's trace as canonical JSON: the golden file
// content for scenarioName.
func GoldenTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	return data, nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := GoldenTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}

// RenderTrace writes a human-readable trace, one line per step:
//
//	[1] navigate /me (nearest) -> committed  root=[/home /login] active=[/home /login]
//	      redirect auth: /me => /login
func RenderTrace(w io.Writer, trace []TraceEvent) {
	for _, ev := range trace {
		var b strings.Builder
		fmt.Fprintf(&b, "[%d] %s", ev.Step, ev.Op)
		if len(ev.Input) > 0 {
			fmt.Fprintf(&b, " %s", strings.Join(ev.Input, " "))
		}
		if ev.Target != "" {
			fmt.Fprintf(&b, " (%s)", ev.Target)
		}
		fmt.Fprintf(&b, " -> %s", ev.Outcome)
		switch {
		case ev.Error != "":
			fmt.Fprintf(&b, " %s", ev.Error)
		case ev.BlockedBy != "":
			fmt.Fprintf(&b, " by %s: %s", ev.BlockedBy, ev.Reason)
		}
		fmt.Fprintf(&b, "  root=%v active=%v", ev.Root, ev.Active)
		fmt.Fprintln(w, b.String())
		for _, hop := range ev.Redirects {
			fmt.Fprintf(w, "      redirect %s\n", hop)
		}
	}
}
