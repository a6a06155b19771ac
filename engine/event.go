package engine

import "github.com/jewelryops/opsagent/core"

// EventType discriminates the stream events a turn emits.
type EventType string

const (
	// EventToken carries a chunk of the assistant reply.
	EventToken EventType = "token"
	// EventToolCall signals that a tool invocation completed (successfully
	// or not) during the turn.
	EventToolCall EventType = "tool_call"
	// EventPendingConfirmation signals the turn halted on a mutating
	// proposal that needs explicit user approval.
	EventPendingConfirmation EventType = "pending_confirmation"
	// EventError carries a turn failure. Turns refused before they start
	// (cancelled while queued, or queued behind a confirmation an earlier
	// turn raised) end with this event alone.
	EventError EventType = "error"
	// EventDone terminates every turn that ran its loop, successfully or
	// not, and carries the final reply and session counters.
	EventDone EventType = "done"
)

// Event is one element of the per-turn stream returned by SubmitMessage and
// SubmitConfirmation. A turn that ran ends with one EventDone; a turn
// refused before its loop started ends with an EventError instead. Either
// way the channel is closed afterwards.
type Event struct {
	Type      EventType                 `json:"type"`
	SessionID string                    `json:"session_id,omitempty"`
	Token     string                    `json:"token,omitempty"`
	Tool      string                    `json:"tool,omitempty"`
	Reply     string                    `json:"reply,omitempty"`
	Pending   *core.PendingConfirmation `json:"pending_confirmation,omitempty"`
	ToolCalls int64                     `json:"tool_calls_count,omitempty"`
	Err       string                    `json:"error,omitempty"`
}

// Drain collects a finished stream into a slice. Convenience for callers
// that do not need token-level streaming.
func Drain(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

// Final returns the EventDone of a finished stream, draining it fully.
func Final(events <-chan Event) (Event, []Event) {
	all := Drain(events)
	for _, ev := range all {
		if ev.Type == EventDone {
			return ev, all
		}
	}
	return Event{}, all
}
