package oracle

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a deterministic in-memory Oracle for tests and examples. Decisions
// are consumed from a scripted queue in order; when the script runs dry the
// mock falls back to a canned reply so loops always terminate.
type Mock struct {
	mu        sync.Mutex
	script    []Decision
	summarize func(prompt string) (string, error)

	// Contexts records every decision context received, letting tests
	// assert on what the engine assembled.
	Contexts []Context
}

// NewMock creates an empty mock oracle.
func NewMock() *Mock { return &Mock{} }

// Enqueue appends decisions to the script.
func (m *Mock) Enqueue(decisions ...Decision) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, decisions...)
	return m
}

// OnSummarize installs the summarization behavior. Unset, Summarize errors.
func (m *Mock) OnSummarize(fn func(prompt string) (string, error)) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summarize = fn
	return m
}

// Decide implements Oracle by consuming the next scripted decision.
func (m *Mock) Decide(_ context.Context, dc Context) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Contexts = append(m.Contexts, dc)
	if len(m.script) == 0 {
		return Decision{Reply: "I have nothing further to add."}, nil
	}
	d := m.script[0]
	m.script = m.script[1:]
	return d, nil
}

// Summarize implements Oracle via the installed hook.
func (m *Mock) Summarize(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	fn := m.summarize
	m.mu.Unlock()
	if fn == nil {
		return "", fmt.Errorf("mock oracle has no summarize hook")
	}
	return fn(prompt)
}

// DecisionCount returns how many decisions have been requested so far.
func (m *Mock) DecisionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Contexts)
}
