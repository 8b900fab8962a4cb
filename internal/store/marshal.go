package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/ir"
)

// marshalStrings converts a string list to canonical JSON TEXT.
// A nil list is stored as [].
func marshalStrings(field string, list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", field, err)
	}
	return string(data), nil
}

// hopJSON is the stored shape of an engine.Hop.
type hopJSON struct {
	By   string   `json:"by"`
	From string   `json:"from"`
	To   []string `json:"to"`
}

// marshalHops converts redirect hops to canonical JSON TEXT.
func marshalHops(hops []engine.Hop) (string, error) {
	arr := make([]any, len(hops))
	for i, h := range hops {
		to := h.To
		if to == nil {
			to = []string{}
		}
		arr[i] = map[string]any{"by": h.By, "from": h.From, "to": to}
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal redirects: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings parses a stored string list. Empty lists come back as nil.
func unmarshalStrings(field, data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return out, nil
}

// unmarshalHops parses stored redirect hops.
func unmarshalHops(data string) ([]engine.Hop, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var raw []hopJSON
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal redirects: %w", err)
	}
	hops := make([]engine.Hop, len(raw))
	for i, h := range raw {
		hops[i] = engine.Hop{By: h.By, From: h.From, To: h.To}
	}
	return hops, nil
}

// parseTarget is the inverse of engine.Target.String.
func parseTarget(s string) (engine.Target, error) {
	switch s {
	case engine.TargetRoot.String():
		return engine.TargetRoot, nil
	case engine.TargetNearest.String():
		return engine.TargetNearest, nil
	default:
		return 0, fmt.Errorf("unknown target %q", s)
	}
}
