package core

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAppendTurnPreservesOrder(t *testing.T) {
	s := NewSession("s1")

	first := NewTurn("where is ORD-1?")
	first.Steps = append(first.Steps, NewToolCallStep("get_order", json.RawMessage(`{"order_id":"ORD-1"}`), false))
	first.Reply = "in transit"
	s.AppendTurn(first)
	s.AppendTurn(NewTurn("thanks"))

	turns := s.AllTurns()
	require.Len(t, turns, 2)
	assert.Equal(t, "where is ORD-1?", turns[0].UserMessage)
	assert.Equal(t, "thanks", turns[1].UserMessage)
	assert.Equal(t, 2, s.TurnCount())
	assert.Equal(t, 1, s.StepCount())
}

func TestSessionRecentTurnsWindow(t *testing.T) {
	s := NewSession("s1")
	for _, msg := range []string{"a", "b", "c", "d"} {
		s.AppendTurn(NewTurn(msg))
	}

	recent := s.RecentTurns(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].UserMessage)
	assert.Equal(t, "d", recent[1].UserMessage)

	assert.Len(t, s.RecentTurns(100), 4)
	assert.Nil(t, s.RecentTurns(0))
}

func TestSessionSinglePendingInvariant(t *testing.T) {
	s := NewSession("s1")

	p1 := NewPendingConfirmation("cancel_order", json.RawMessage(`{"order_id":"ORD-102"}`), "mutating")
	assert.True(t, s.SetPending(p1))

	p2 := NewPendingConfirmation("send_email", json.RawMessage(`{}`), "mutating")
	assert.False(t, s.SetPending(p2), "second proposal must be refused while one is outstanding")
	assert.Equal(t, p1.ID, s.GetPending().ID)

	taken := s.TakePending()
	require.NotNil(t, taken)
	assert.Equal(t, p1.ID, taken.ID)
	assert.Nil(t, s.GetPending())

	// Cleared, so a new proposal is accepted again.
	assert.True(t, s.SetPending(p2))
}

func TestSessionToolCallCounterMonotonic(t *testing.T) {
	s := NewSession("s1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncrementToolCalls()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), s.ToolCallCount())
}

func TestSessionSnapshotIsDeepCopy(t *testing.T) {
	s := NewSession("s1")
	s.AppendTurn(NewTurn("hello"))
	s.SetSummary(&InvestigationSummary{Text: "initial"})
	s.SetPending(NewPendingConfirmation("cancel_order", nil, ""))

	snap := s.Snapshot()
	s.AppendTurn(NewTurn("more"))
	s.SetSummary(&InvestigationSummary{Text: "replaced"})
	s.TakePending()

	assert.Len(t, snap.Turns, 1)
	assert.Equal(t, "initial", snap.Summary.Text)
	assert.NotNil(t, snap.Pending)
}

func TestStepExecuted(t *testing.T) {
	step := NewToolCallStep("get_order", nil, false)
	assert.False(t, step.Executed())

	step.Result = json.RawMessage(`{"status":"shipped"}`)
	assert.True(t, step.Executed())

	errStep := NewToolCallStep("get_order", nil, false)
	errStep.Err = "provider timeout"
	assert.True(t, errStep.Executed())

	reasoning := NewReasoningStep("checking notes first")
	assert.False(t, reasoning.Executed())
}

func TestTurnExecutedToolCalls(t *testing.T) {
	turn := NewTurn("cancel ORD-102")

	executed := NewToolCallStep("get_order", nil, false)
	executed.Result = json.RawMessage(`{}`)

	rejected := NewToolCallStep("cancel_order", nil, true)
	rejected.Confirmation = ConfirmationRejected

	turn.Steps = []Step{NewReasoningStep("look up first"), executed, rejected}
	assert.Equal(t, 1, turn.ExecutedToolCalls())
}
