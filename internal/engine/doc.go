// Package engine implements the navstack navigation engine.
//
// The engine owns a tree of stacks: the root stack, and for every stateful
// entry one branch stack per declared child. Application code mutates it
// through Navigate, Pop, Replace, SwitchChild and DeepLink; the rendering
// layer reads immutable ir.Snapshot values and diffs them by entry key.
//
// ARCHITECTURE:
//
// Single-Writer Queue:
// Mutating requests are serialized through a FIFO writer queue. A request
// holds the turn from the first interceptor call until its snapshot is
// published, so a slow interceptor or deep link resolver delays later
// requests instead of racing them. Each queued request is evaluated against
// the snapshot current when it reaches the head of the queue.
//
// Request Flow:
//  1. Caller takes a ticket and waits for the turn
//  2. The target stack is resolved by walking the active branches
//  3. Proposed locations run through the interceptor chain
//     (Allow / Redirect / Block, redirects bounded per request)
//  4. The mutation is applied copy-on-write and published as a new snapshot
//  5. Observers of the affected scope are notified, the request is journaled
//
// Failures (NavError) and blocked requests leave the published snapshot
// untouched. The engine stays usable after any failure.
//
// Interceptors and resolvers run while the turn is held. They must not call
// back into the engine; doing so deadlocks.
package engine
