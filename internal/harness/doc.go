// Package harness runs navigation scenarios against a real engine.
//
// A scenario names a CUE catalog, the initial location, and a list of
// steps. The harness compiles the catalog, wires its guards and deep links
// into a fresh engine, journals every request to an in-memory SQLite
// store, and records one trace event per step.
//
// # Scenario Format
//
//	name: auth_redirect
//	description: "Signed-out users are sent to login"
//	catalog: ../catalog
//	initial: home
//	flags: [beta]
//	steps:
//	  - navigate: profile
//	    expect:
//	      outcome: committed
//	      root: [/home, /login]
//	  - set_flag: authenticated
//	  - navigate: shell
//	    root: true
//	  - switch: 0
//	    expect: {active: [/feed]}
//	  - pop: true
//	  - deeplink: app://item/42
//	  - replace: [home]
//	    expect: {error: INVALID_STACK_OPERATION}
//	assertions:
//	  - type: redirected
//	    interceptor: auth
//	    to: /login
//	  - type: final_state
//	    root: [/home]
//
// # Assertion Types
//
//   - outcome_count: number of steps with an outcome (optionally per op)
//   - visited_order: paths were displayed in this order
//   - final_state: final root and/or active stacks
//   - redirected: some step was redirected (by, from, to)
//
// # Deterministic Testing
//
// Entry keys come from engine.NewSequenceGenerator, and traces carry only
// paths, outcomes and snapshot versions, so a scenario produces the same
// trace on every run. Golden files hold the canonical JSON of the trace
// (see GoldenTrace).
package harness
