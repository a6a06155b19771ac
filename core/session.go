package core

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jewelryops/opsagent/entity"
)

// InvestigationSummary is the bounded distillation of prior turns. Once
// generated it replaces — not supplements — raw history in the context fed to
// the decision oracle. The entity set is carried structurally so compression
// never loses identifiers even when the summary text drops one.
type InvestigationSummary struct {
	Text            string     `json:"summary"`
	KeyFindings     []string   `json:"key_findings,omitempty"`
	OpenItems       []string   `json:"open_items,omitempty"`
	Entities        entity.Set `json:"entities"`
	CompressedTurns int        `json:"compressed_turns"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PendingConfirmation is a single outstanding mutating-tool-call proposal
// awaiting an explicit yes/no from the user. A session holds at most one at
// any instant.
type PendingConfirmation struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewPendingConfirmation builds a proposal record for a gated tool call.
func NewPendingConfirmation(tool string, args json.RawMessage, reason string) *PendingConfirmation {
	return &PendingConfirmation{
		ID:        NewID(),
		Tool:      tool,
		Arguments: args,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

// Session is one user's continuous conversation context, keyed by an opaque
// id. It owns the ordered turn sequence, the current investigation summary,
// the monotonic tool call counter and at most one pending confirmation.
// All accessors are safe for concurrent use.
//
// Contract:
//   - Turns are append-only; history is never reordered.
//   - ToolCalls only increases across the session's life.
//   - SetPending refuses a second proposal while one is outstanding.
//   - Snapshot returns a deep copy safe for journaling or inspection.
type Session struct {
	ID        string                `json:"id"`
	Turns     []Turn                `json:"turns"`
	Summary   *InvestigationSummary `json:"summary,omitempty"`
	Pending   *PendingConfirmation  `json:"pending_confirmation,omitempty"`
	ToolCalls int64                 `json:"tool_calls"`
	Created   time.Time             `json:"created"`
	Updated   time.Time             `json:"updated"`
	mu        sync.RWMutex
}

// NewSession creates an empty session with the given id.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, Created: now, Updated: now}
}

// AppendTurn appends a completed turn to the session history.
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Turns = append(s.Turns, t)
	s.Updated = time.Now().UTC()
}

// SetSummary replaces the current investigation summary.
func (s *Session) SetSummary(sum *InvestigationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Summary = sum
	s.Updated = time.Now().UTC()
}

// GetSummary returns the current summary (may be nil before first compression).
func (s *Session) GetSummary() *InvestigationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Summary
}

// SetPending installs a pending confirmation. It reports false without
// modifying the session when another proposal is already outstanding.
func (s *Session) SetPending(p *PendingConfirmation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Pending != nil {
		return false
	}
	s.Pending = p
	s.Updated = time.Now().UTC()
	return true
}

// TakePending removes and returns the pending confirmation, or nil.
func (s *Session) TakePending() *PendingConfirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.Pending
	s.Pending = nil
	if p != nil {
		s.Updated = time.Now().UTC()
	}
	return p
}

// GetPending returns the outstanding proposal without clearing it.
func (s *Session) GetPending() *PendingConfirmation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Pending
}

// IncrementToolCalls bumps the monotonic counter by one completed tool call
// and returns the new value. Callers increment only when an invocation
// recorded a result, keeping the counter equal to the number of
// result-bearing steps.
func (s *Session) IncrementToolCalls() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ToolCalls++
	s.Updated = time.Now().UTC()
	return s.ToolCalls
}

// ToolCallCount returns the current counter value.
func (s *Session) ToolCallCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ToolCalls
}

// TurnCount returns the number of completed turns.
func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Turns)
}

// StepCount returns the total number of steps across all turns.
func (s *Session) StepCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.Turns {
		n += len(t.Steps)
	}
	return n
}

// RecentTurns returns a copy of the last n turns (all turns if n exceeds the
// history length). Turns are returned oldest first.
func (s *Session) RecentTurns(n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || len(s.Turns) == 0 {
		return nil
	}
	start := len(s.Turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.Turns)-start)
	copy(out, s.Turns[start:])
	return out
}

// AllTurns returns a copy of the full turn sequence for audit.
func (s *Session) AllTurns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.Turns))
	copy(out, s.Turns)
	return out
}

// LastActive returns the Updated timestamp.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Updated
}

// Snapshot returns a deep copy of the session safe for serialization while
// the original keeps mutating.
func (s *Session) Snapshot() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:        s.ID,
		Turns:     make([]Turn, len(s.Turns)),
		ToolCalls: s.ToolCalls,
		Created:   s.Created,
		Updated:   s.Updated,
	}
	copy(clone.Turns, s.Turns)
	if s.Summary != nil {
		sum := *s.Summary
		clone.Summary = &sum
	}
	if s.Pending != nil {
		p := *s.Pending
		clone.Pending = &p
	}
	return clone
}
