// Package ir provides the navigation data model shared by every navstack package.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal. This keeps the model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Locations are immutable values; the engine records them, never mutates them
//   - Location is a closed union (Simple, Stateful) discriminated by Kind
//   - Snapshots are immutable trees; consumers diff them by entry key
//   - Snapshot identity is content-addressed (Fingerprint), never pointer-based
package ir
