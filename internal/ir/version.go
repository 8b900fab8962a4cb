package ir

// Version constants for the snapshot schema and engine.
const (
	// SnapshotVersion is the canonical snapshot schema version.
	// Bump when the fingerprinted shape of a snapshot changes.
	SnapshotVersion = "1"

	// EngineVersion is the navstack engine version.
	EngineVersion = "0.1.0"
)
