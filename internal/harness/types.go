package harness

// TraceEvent records one executed step and the state after it.
type TraceEvent struct {
	Step   int      `json:"step"`
	Op     string   `json:"op"`
	Input  []string `json:"input,omitempty"`
	Target string   `json:"target,omitempty"` // "root" or "nearest"; empty for flag steps

	// Outcome is "committed", "blocked", "deferred" or "error" for engine
	// steps, and "ok" for flag steps.
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"` // error code

	Redirects []string `json:"redirects,omitempty"` // "by: /from => /to"
	BlockedBy string   `json:"blocked_by,omitempty"`
	Reason    string   `json:"reason,omitempty"`

	Version int64    `json:"version"`
	Root    []string `json:"root"`
	Active  []string `json:"active"`
	Top     string   `json:"top"`
}

// Outcome of flag steps, which never touch the engine.
const outcomeOK = "ok"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Root and Active are the final stacks.
	Root   []string `json:"root"`
	Active []string `json:"active"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
