package models

import "time"

// TraceEventKind classifies a TraceEvent for the observer ring buffer.
type TraceEventKind string

const (
	TraceRunState     TraceEventKind = "run_state"
	TraceToolStarted  TraceEventKind = "tool_started"
	TraceToolResult   TraceEventKind = "tool_result"
	TraceGeneric      TraceEventKind = "generic"
)

// TraceEvent is a small (<=4KiB), append-only record emitted to the
// observer. Data carries kind-specific fields as a plain map so the engine
// never needs a union type.
type TraceEvent struct {
	Sequence  uint64         `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      TraceEventKind `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`
}
