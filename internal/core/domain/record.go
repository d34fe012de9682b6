package domain

import (
	"maps"
	"time"
)

// ErrorRecord is the normalized form of any raw failure.
type ErrorRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Message   string         `json:"message"`
	Stack     string         `json:"stack,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Context   Context        `json:"context"`
	Metadata  map[string]any `json:"metadata"`
	Recovered bool           `json:"recovered"`
}

// Clone returns a copy of r with its own metadata map.
func (r *ErrorRecord) Clone() *ErrorRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Metadata = maps.Clone(r.Metadata)
	return &c
}

// RawError is a failure reported by a subsystem that carries its own kind
// name and optional extra properties. Props are copied into the record
// metadata verbatim.
type RawError struct {
	Name    string
	Message string
	Stack   string
	Props   map[string]any
}

func (e *RawError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}
