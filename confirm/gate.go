// Package confirm decides whether a proposed tool call may execute
// immediately or must wait for explicit user approval.
//
// The proposal lifecycle PROPOSED → AWAITING_USER → APPROVED/REJECTED is
// encoded structurally rather than as a field: a proposal is PROPOSED only
// transiently inside the engine between classification and persistence;
// a core.PendingConfirmation stored on the session is by definition
// AWAITING_USER; resolution records the outcome on the recorded step and
// clears the pending entry. That keeps the state machine restart-safe — the
// persisted session alone is enough to resume it.
package confirm

import (
	"fmt"
	"sync"

	"github.com/jewelryops/opsagent/tool"
)

// Verdict is the gate's classification of a proposed tool call.
type Verdict int

const (
	// AutoApprove lets the call execute with no confirmation round trip.
	AutoApprove Verdict = iota
	// NeedsConfirmation suspends the call until the user approves it.
	NeedsConfirmation
)

// String returns a readable verdict name for logs.
func (v Verdict) String() string {
	if v == NeedsConfirmation {
		return "needs_confirmation"
	}
	return "auto_approve"
}

// ClassifierFunc refines the verdict for a single tool using its arguments.
// The same base tool can be benign or sensitive depending on arguments, so
// classification is pluggable per tool rather than a single global boolean.
type ClassifierFunc func(desc tool.Descriptor, args map[string]any) Verdict

// Gate classifies proposed tool calls. The default rule is the descriptor's
// static Mutating flag; per-tool overrides refine it by argument inspection.
// When in doubt the gate errs toward confirmation: an override registered for
// a mutating tool can relax the rule, but absent any override a mutating tool
// always needs approval.
type Gate struct {
	mu        sync.RWMutex
	overrides map[string]ClassifierFunc
}

// NewGate constructs a gate with no per-tool overrides.
func NewGate() *Gate {
	return &Gate{overrides: map[string]ClassifierFunc{}}
}

// Override installs an argument-aware classifier for one tool, replacing any
// previous override for that name.
func (g *Gate) Override(toolName string, fn ClassifierFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.overrides[toolName] = fn
}

// Classify returns the verdict for a proposed call.
func (g *Gate) Classify(desc tool.Descriptor, args map[string]any) Verdict {
	g.mu.RLock()
	fn := g.overrides[desc.Name]
	g.mu.RUnlock()
	if fn != nil {
		return fn(desc, args)
	}
	if desc.Mutating {
		return NeedsConfirmation
	}
	return AutoApprove
}

// Reason builds the user-facing explanation attached to a pending
// confirmation prompt.
func Reason(desc tool.Descriptor) string {
	return fmt.Sprintf("%s changes external state and needs your approval", desc.Name)
}

// QuantityThreshold returns a classifier for tools that adjust a numeric
// quantity: adjustments within ±limit auto-approve, while larger swings and
// zeroing writes (absolute quantity 0) require confirmation. field names the
// argument carrying the adjustment.
//
// This is the worked example for "update inventory by a small delta" vs
// "zero out inventory" sharing one tool.
func QuantityThreshold(field string, limit float64) ClassifierFunc {
	return func(desc tool.Descriptor, args map[string]any) Verdict {
		v, ok := args[field]
		if !ok {
			return NeedsConfirmation
		}
		delta, ok := toFloat(v)
		if !ok {
			return NeedsConfirmation
		}
		if delta == 0 {
			return NeedsConfirmation // zeroing stock is always sensitive
		}
		if delta < 0 {
			delta = -delta
		}
		if delta <= limit {
			return AutoApprove
		}
		return NeedsConfirmation
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
