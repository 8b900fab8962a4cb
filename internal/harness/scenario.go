package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a navigation scenario.
// A scenario builds an engine from a catalog, drives it through a list of
// steps and checks each step's outcome and the resulting stacks.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is the CUE catalog directory. Relative paths are resolved
	// against the scenario file's directory by LoadScenario.
	Catalog string `yaml:"catalog"`

	// Initial names the location the engine starts with.
	Initial string `yaml:"initial"`

	// Flags are set before the first step.
	Flags []string `yaml:"flags,omitempty"`

	// MaxRedirects overrides the engine's redirect bound when set.
	MaxRedirects *int `yaml:"max_redirects,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state after all steps.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario action. Exactly one action field must be set.
type Step struct {
	Navigate  string   `yaml:"navigate,omitempty"`
	Pop       bool     `yaml:"pop,omitempty"`
	Replace   []string `yaml:"replace,omitempty"`
	Switch    *int     `yaml:"switch,omitempty"`
	DeepLink  string   `yaml:"deeplink,omitempty"`
	SetFlag   string   `yaml:"set_flag,omitempty"`
	ClearFlag string   `yaml:"clear_flag,omitempty"`

	// Root targets the root stack instead of the nearest active stack.
	// Applies to navigate, pop and replace.
	Root bool `yaml:"root,omitempty"`

	// Expect checks the step's result. If nil, the step must not fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step action names, as they appear in the trace.
const (
	ActionNavigate  = "navigate"
	ActionPop       = "pop"
	ActionReplace   = "replace"
	ActionSwitch    = "switch"
	ActionDeepLink  = "deeplink"
	ActionSetFlag   = "set_flag"
	ActionClearFlag = "clear_flag"
)

// Action returns the name of the step's action, or "" if none or several
// are set.
func (s Step) Action() string {
	var set []string
	if s.Navigate != "" {
		set = append(set, ActionNavigate)
	}
	if s.Pop {
		set = append(set, ActionPop)
	}
	if s.Replace != nil {
		set = append(set, ActionReplace)
	}
	if s.Switch != nil {
		set = append(set, ActionSwitch)
	}
	if s.DeepLink != "" {
		set = append(set, ActionDeepLink)
	}
	if s.SetFlag != "" {
		set = append(set, ActionSetFlag)
	}
	if s.ClearFlag != "" {
		set = append(set, ActionClearFlag)
	}
	if len(set) != 1 {
		return ""
	}
	return set[0]
}

// Expect specifies the expected result of a step.
// Only the fields that are set are checked.
type Expect struct {
	// Outcome is "committed", "blocked" or "deferred".
	Outcome string `yaml:"outcome,omitempty"`

	// Error is the expected error code, e.g. INVALID_STACK_OPERATION.
	Error string `yaml:"error,omitempty"`

	// Root and Active are the expected root and active stack paths.
	Root   []string `yaml:"root,omitempty"`
	Active []string `yaml:"active,omitempty"`

	// Top is the expected path of the displayed entry.
	Top string `yaml:"top,omitempty"`

	// BlockedBy names the interceptor expected to block.
	BlockedBy string `yaml:"blocked_by,omitempty"`

	// Redirects is the expected number of redirect hops.
	Redirects *int `yaml:"redirects,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "outcome_count": count steps with Outcome (and Op, if set)
	// - "visited_order": Paths were displayed in order
	// - "final_state": final Root and Active stacks
	// - "redirected": a hop by Interceptor (if set) From a path To a path
	Type string `yaml:"type"`

	Op      string `yaml:"op,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
	Count   int    `yaml:"count,omitempty"`

	Paths []string `yaml:"paths,omitempty"`

	Root   []string `yaml:"root,omitempty"`
	Active []string `yaml:"active,omitempty"`

	Interceptor string `yaml:"interceptor,omitempty"`
	From        string `yaml:"from,omitempty"`
	To          string `yaml:"to,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcomeCount = "outcome_count"
	AssertVisitedOrder = "visited_order"
	AssertFinalState   = "final_state"
	AssertRedirected   = "redirected"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// A relative catalog path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	if _, err := os.Stat(scenario.Catalog); err != nil {
		return nil, fmt.Errorf("invalid scenario: catalog not found: %s", scenario.Catalog)
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the file system.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // reject typos like "step:" vs "steps:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.Catalog == "" {
		return errors.New("catalog is required")
	}
	if s.Initial == "" {
		return errors.New("initial is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	if s.MaxRedirects != nil && *s.MaxRedirects < 0 {
		return errors.New("max_redirects must be non-negative")
	}

	for i, step := range s.Steps {
		action := step.Action()
		if action == "" {
			return fmt.Errorf("steps[%d]: exactly one action is required", i)
		}
		if step.Replace != nil && len(step.Replace) == 0 {
			return fmt.Errorf("steps[%d]: replace needs at least one location", i)
		}
		if step.Root && action != ActionNavigate && action != ActionPop && action != ActionReplace {
			return fmt.Errorf("steps[%d]: root applies to navigate, pop and replace only", i)
		}
		if step.Expect != nil && step.Expect.Outcome != "" && step.Expect.Error != "" {
			return fmt.Errorf("steps[%d].expect: outcome and error are mutually exclusive", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOutcomeCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for outcome_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	case AssertVisitedOrder:
		if len(a.Paths) == 0 {
			return fmt.Errorf("assertions[%d]: paths list is required for visited_order", index)
		}
	case AssertFinalState:
		if a.Root == nil && a.Active == nil {
			return fmt.Errorf("assertions[%d]: root or active is required for final_state", index)
		}
	case AssertRedirected:
		if a.From == "" && a.To == "" {
			return fmt.Errorf("assertions[%d]: from or to is required for redirected", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
