// Package oracle defines the decision-oracle contract: given the assembled
// turn context, the oracle answers with either a final reply or a batch of
// proposed tool calls. Provider adapters (openai, anthropic subpackages)
// translate the contract to vendor APIs; the core never depends on a vendor
// directly.
package oracle

import (
	"context"
	"encoding/json"

	"github.com/jewelryops/opsagent/core"
	"github.com/jewelryops/opsagent/entity"
	"github.com/jewelryops/opsagent/tool"
)

// ToolCall is one proposed invocation: a tool name plus raw JSON arguments.
// The engine validates both — an unknown name or malformed arguments become
// observations fed back into the next decision, never a crash.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Decision is the oracle's answer, a tagged variant: either a final
// natural-language reply (terminating the turn) or one or more tool calls.
// Rationale optionally carries the oracle's reasoning for the audit trail.
type Decision struct {
	Reply     string     `json:"reply,omitempty"`
	Calls     []ToolCall `json:"calls,omitempty"`
	Rationale string     `json:"rationale,omitempty"`
}

// IsReply reports whether the decision terminates the turn.
func (d Decision) IsReply() bool { return len(d.Calls) == 0 }

// Context is the bounded decision context the engine assembles each
// iteration: the investigation summary (replacing compressed history), a
// window of recent raw turns, the current user message with its extracted
// entities, the available tools, and the steps already executed this turn.
type Context struct {
	System      string
	Summary     *core.InvestigationSummary
	RecentTurns []core.Turn
	UserMessage string
	Entities    entity.Set
	Tools       []tool.Descriptor
	// Steps holds the current turn's execution record so far, including
	// tool results and errors the oracle should react to.
	Steps []core.Step
}

// Oracle is the external decision component, opaque to the core.
//
// Decide picks the next action for the current loop iteration. Summarize is
// a plain text→text completion used by the context compressor; oracles that
// cannot summarize may return an error and the compressor falls back to
// extractive summaries.
type Oracle interface {
	Decide(ctx context.Context, dc Context) (Decision, error)
	Summarize(ctx context.Context, prompt string) (string, error)
}
