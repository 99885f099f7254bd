// Copyright 2025 Certen Protocol

package revision

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayout is the wire format for revision metadata timestamps:
// YYYYMMDDhhmmss, always UTC. Mirrors the reference client's Timestamp
// convention (other_examples/a4e41abd_rob9315-aqua-verifier-go__api-api.go.go).
const timestampLayout = "20060102150405"

// Timestamp is a UTC revision timestamp in YYYYMMDDhhmmss form.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to whole seconds and normalizes it to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Second)}
}

// String renders the timestamp in wire format.
func (t Timestamp) String() string {
	return t.UTC().Format(timestampLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timestamp) UnmarshalText(text []byte) error {
	s := strings.Trim(string(text), `"`)
	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		return fmt.Errorf("revision: invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// MarshalJSON renders the timestamp as a JSON string in wire format, in place
// of the embedded time.Time's RFC 3339 encoding.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a JSON string in wire format.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("revision: invalid timestamp %s: %w", data, err)
	}
	return t.UnmarshalText([]byte(s))
}
