// Package signalk builds the Signal K delta JSON emitted on the vessel
// network.
//
// Only the delta format is implemented, and only the value shapes this
// daemon produces. The envelope matches what a Signal K server UDP provider
// accepts: one self-contained delta object per datagram.
package signalk

import (
	"encoding/json"
	"fmt"
	"time"
)

// Source identifies the producer of a delta update.
type Source struct {
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// Value is one path/value pair inside an update.
//
// Value must marshal to valid JSON; the Attitude, MagCal and Number types in
// this package implement the null-substitution rules for invalid readings.
type Value struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Update groups values sampled at one instant from one source.
type Update struct {
	Source    Source  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Values    []Value `json:"values"`
}

// Delta is the top-level Signal K incremental update envelope.
type Delta struct {
	Context string   `json:"context,omitempty"`
	Updates []Update `json:"updates"`
}

// NewDelta wraps values in a single-update delta stamped with now.
func NewDelta(label string, now time.Time, values ...Value) Delta {
	return Delta{
		Updates: []Update{{
			Source:    Source{Label: label},
			Timestamp: now.UTC().Format(time.RFC3339Nano),
			Values:    values,
		}},
	}
}

// Marshal renders the delta as a single JSON line (no trailing newline).
func (d Delta) Marshal() ([]byte, error) {
	if len(d.Updates) == 0 {
		return nil, fmt.Errorf("signalk: delta has no updates")
	}
	for _, u := range d.Updates {
		if len(u.Values) == 0 {
			return nil, fmt.Errorf("signalk: update has no values")
		}
	}
	return json.Marshal(d)
}
