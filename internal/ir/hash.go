package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainSnapshot   = "navstack/snapshot/v1"
	DomainTransition = "navstack/transition/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotFingerprint computes the content-addressed identity of a snapshot.
// Version is excluded: two snapshots with the same tree have the same
// fingerprint regardless of how many mutations produced them.
func SnapshotFingerprint(s Snapshot) (string, error) {
	canonical, err := MarshalCanonical(s.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("SnapshotFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// MustSnapshotFingerprint is like SnapshotFingerprint but panics on error.
// Snapshot trees only hold strings and ints, so marshaling cannot fail.
func MustSnapshotFingerprint(s Snapshot) string {
	fp, err := SnapshotFingerprint(s)
	if err != nil {
		panic(err)
	}
	return fp
}

// TransitionID computes a stable identifier for one journaled request.
// It links the request sequence number with the fingerprints on either side.
func TransitionID(seq int64, op string, before, after string) (string, error) {
	obj := map[string]any{
		"seq":    seq,
		"op":     op,
		"before": before,
		"after":  after,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("TransitionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTransition, canonical), nil
}
