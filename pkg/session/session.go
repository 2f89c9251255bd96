// Package session connects the inbox client to a remote agent run.
// A Session carries exactly one primitive the interrupt core needs:
// submit a command (resume with a human response, or goto END) against
// the run that is currently paused.
package session

import (
	"context"
	"encoding/json"
)

// EndNode is the goto target that marks a run finished without
// answering its pending interrupt.
const EndNode = "__end__"

// Command is the control verb sent with a submission. Exactly one of
// Resume or Goto is set.
type Command struct {
	// Resume carries the selected human response payload back to the
	// paused run.
	Resume any `json:"resume,omitempty"`

	// Goto jumps the run to the named node, bypassing the interrupt.
	Goto string `json:"goto,omitempty"`
}

// Session is the remote run handle consumed by the interrupt core.
//
// Submit returns (true, nil) when the command was delivered, and
// (false, nil) when the run no longer exists server-side. In that
// case the session has already surfaced its own user-facing message
// and callers must not surface another. Any other failure is returned
// as a non-nil error.
type Session interface {
	Submit(ctx context.Context, state map[string]any, cmd Command) (bool, error)
}

// Event is one frame pushed by the backend while a run executes.
type Event struct {
	Type     EventType       `json:"type"`
	ThreadID string          `json:"thread_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// EventType discriminates stream frames.
type EventType string

const (
	// EventValues carries a partial or full state update.
	EventValues EventType = "values"

	// EventInterrupt announces a new human-in-the-loop pause.
	EventInterrupt EventType = "interrupt"

	// EventEnd signals the run completed.
	EventEnd EventType = "end"

	// EventError signals the run failed server-side.
	EventError EventType = "error"
)

// Handler receives stream events. Called from the session's read loop;
// implementations must not block.
type Handler func(Event)
