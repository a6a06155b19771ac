// Package tool implements the registry and dispatcher that every tool call
// passes through: descriptor metadata, schema-validated arguments, uniform
// invocation and normalized error handling. Confirmation gating is not this
// package's concern — the engine gates before it ever calls Invoke.
package tool

import (
	"context"
	"errors"
	"fmt"
)

// Descriptor is the static metadata for a registered tool. It is immutable
// after registration and exposed verbatim to the decision oracle so the
// oracle knows the available action space.
type Descriptor struct {
	// Name uniquely identifies the tool (snake_case by convention).
	Name string `json:"name"`
	// Description tells the oracle when and how to use the tool.
	Description string `json:"description"`
	// Parameters is a minimal JSON-Schema object (type/properties/required)
	// describing accepted arguments.
	Parameters map[string]any `json:"parameters"`
	// Mutating marks tools whose execution changes external state. Mutating
	// tools are gated behind user confirmation by the layer above.
	Mutating bool `json:"mutating"`
}

// InvokeFunc executes a tool with already-validated arguments. The returned
// value must be JSON-serializable.
type InvokeFunc func(ctx context.Context, args map[string]any) (any, error)

// Registration sentinel and dispatch errors.
var (
	// ErrUnknownTool is returned when invoking or describing a tool that
	// was never registered. The oracle proposing one is an observation,
	// not a crash.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrDuplicateTool is returned when registering a name twice.
	ErrDuplicateTool = errors.New("tool already registered")
)

// ValidationError reports arguments that do not satisfy a tool's schema.
type ValidationError struct {
	Tool    string `json:"tool"`
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid arguments for %s: field %q %s", e.Tool, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Message)
}

// ProviderError wraps any failure surfaced by the underlying tool provider:
// network timeouts, remote errors, malformed responses, panics. Transient
// distinguishes failures worth retrying from permanent ones.
type ProviderError struct {
	Tool      string `json:"tool"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	Transient bool   `json:"transient"`
	cause     error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("provider error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *ProviderError) Unwrap() error { return e.cause }

// NewProviderError builds a ProviderError wrapping cause.
func NewProviderError(tool, code, message string, transient bool, cause error) *ProviderError {
	return &ProviderError{Tool: tool, Code: code, Message: message, Transient: transient, cause: cause}
}
