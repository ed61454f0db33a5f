// Package triage provides domain types for following root-cause-analysis runs
// and rendering their suggested code changes.
package triage

import (
	"context"
	"encoding/json"
)

// RunID identifies one invocation of the analysis workflow.
// The empty RunID means no run is active.
type RunID string

// EventKind discriminates stream events.
type EventKind string

// Event kinds. Kinds outside this set are kept verbatim when received.
const (
	KindMessage EventKind = "message"
	KindError   EventKind = "error"
	KindSystem  EventKind = "system"
	KindRaw     EventKind = "raw"
)

// ClosedText is the text of the terminal system event appended when a
// channel fails or ends.
const ClosedText = "Connection closed."

// StreamEvent is a single entry of a run's event log.
type StreamEvent struct {
	Kind EventKind `json:"kind"`
	Text string    `json:"text"`
}

// wireEvent accepts both the "kind" discriminator and the older "type" one.
type wireEvent struct {
	Kind *EventKind `json:"kind"`
	Type *EventKind `json:"type"`
	Text string     `json:"text"`
}

// ParseEvent converts a pushed payload into a StreamEvent.
// Payloads that are not a JSON object of the event shape are wrapped
// as a raw event carrying the payload verbatim.
func ParseEvent(payload string) StreamEvent {
	// Reject non-objects first: "null" would otherwise decode cleanly.
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &obj); err != nil || obj == nil {
		return StreamEvent{Kind: KindRaw, Text: payload}
	}
	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return StreamEvent{Kind: KindRaw, Text: payload}
	}
	switch {
	case w.Kind != nil:
		return StreamEvent{Kind: *w.Kind, Text: w.Text}
	case w.Type != nil:
		return StreamEvent{Kind: *w.Type, Text: w.Text}
	default:
		// An object without a discriminator is not an event.
		return StreamEvent{Kind: KindRaw, Text: payload}
	}
}

// ConnState is the lifecycle state of an event channel.
type ConnState int

// Connection states.
const (
	StateIdle ConnState = iota
	StateOpen           // connecting or open
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is the observable state of an event stream: the log for the
// current run and its connection state. Events must not be modified.
type Snapshot struct {
	RunID  RunID
	State  ConnState
	Events []StreamEvent
}

// EventStream maintains a single live subscription to a run's event channel.
type EventStream interface {
	// Subscribe tears down any previous subscription, resets the log and,
	// unless runID is empty, opens a channel for runID.
	Subscribe(runID RunID)
	// Unsubscribe closes the current channel, if any.
	Unsubscribe()
	// Snapshot returns the current log and connection state.
	Snapshot() Snapshot
}

// Channel is a live server-push connection scoped to one run.
type Channel interface {
	// Recv blocks until the next message payload arrives.
	// Any error ends the channel; Close unblocks a pending Recv.
	Recv() (string, error)
	Close() error
}

// Dialer opens event channels.
type Dialer interface {
	Dial(ctx context.Context, runID RunID) (Channel, error)
}
