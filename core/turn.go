package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ConfirmationOutcome records how a proposed mutating tool call was resolved.
type ConfirmationOutcome string

const (
	// ConfirmationNone marks steps that never needed a confirmation
	// (read-only tools) or proposals still awaiting a decision.
	ConfirmationNone ConfirmationOutcome = ""
	// ConfirmationApproved marks steps the user explicitly approved.
	ConfirmationApproved ConfirmationOutcome = "approved"
	// ConfirmationRejected marks steps the user declined; the tool was
	// never invoked and the step carries no result.
	ConfirmationRejected ConfirmationOutcome = "rejected"
)

// StepKind discriminates the two step variants recorded inside a turn.
type StepKind string

const (
	// StepReasoning captures oracle rationale with no external effect.
	StepReasoning StepKind = "reasoning"
	// StepToolCall captures a tool invocation: arguments, outcome, result.
	StepToolCall StepKind = "tool_call"
)

// Step is one entry in a turn's execution record. Steps are appended in
// causal execution order and never reordered; the sequence is the audit
// trail for the turn.
//
// For tool call steps, Result stays nil until the invocation actually ran.
// A mutating step only ever carries a result when Confirmation is
// ConfirmationApproved.
type Step struct {
	Kind         StepKind            `json:"kind"`
	Rationale    string              `json:"rationale,omitempty"`
	Tool         string              `json:"tool,omitempty"`
	Arguments    json.RawMessage     `json:"arguments,omitempty"`
	Result       json.RawMessage     `json:"result,omitempty"`
	Err          string              `json:"error,omitempty"`
	Mutating     bool                `json:"mutating,omitempty"`
	Confirmation ConfirmationOutcome `json:"confirmation,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

// NewReasoningStep records oracle rationale that produced no external effect.
func NewReasoningStep(rationale string) Step {
	return Step{Kind: StepReasoning, Rationale: rationale, Timestamp: time.Now().UTC()}
}

// NewToolCallStep records a proposed tool invocation. Result and outcome are
// filled in by the engine as the proposal progresses.
func NewToolCallStep(tool string, args json.RawMessage, mutating bool) Step {
	return Step{Kind: StepToolCall, Tool: tool, Arguments: args, Mutating: mutating, Timestamp: time.Now().UTC()}
}

// Executed reports whether the step represents a tool call that actually ran.
func (s Step) Executed() bool {
	return s.Kind == StepToolCall && (s.Result != nil || s.Err != "")
}

// Turn is the full processing record of one inbound user message: the
// message, the ordered steps the loop executed in response, and the final
// assistant reply. A turn is immutable once appended to a session.
type Turn struct {
	ID          string    `json:"id"`
	UserMessage string    `json:"user_message"`
	Steps       []Step    `json:"steps,omitempty"`
	Reply       string    `json:"reply"`
	Started     time.Time `json:"started"`
	Completed   time.Time `json:"completed"`
}

// NewTurn starts a turn record for the given user message.
func NewTurn(userMessage string) Turn {
	return Turn{ID: NewID(), UserMessage: userMessage, Started: time.Now().UTC()}
}

// ExecutedToolCalls counts the steps whose tool invocation actually ran.
func (t Turn) ExecutedToolCalls() int {
	n := 0
	for _, s := range t.Steps {
		if s.Executed() {
			n++
		}
	}
	return n
}

// CompletedToolCalls counts the steps that recorded a non-null result. The
// session's ToolCalls counter tracks exactly this quantity: failed or
// never-dispatched proposals carry only an error and do not count.
func (t Turn) CompletedToolCalls() int {
	n := 0
	for _, s := range t.Steps {
		if s.Kind == StepToolCall && s.Result != nil {
			n++
		}
	}
	return n
}

// NewID generates a unique identifier for turns, proposals and stream events.
func NewID() string { return uuid.NewString() }
