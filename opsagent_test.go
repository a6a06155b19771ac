package opsagent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryops/opsagent/compress"
	"github.com/jewelryops/opsagent/engine"
	"github.com/jewelryops/opsagent/oracle"
	"github.com/jewelryops/opsagent/providers"
)

func newTestAgent(t *testing.T, mock *oracle.Mock) *Agent {
	t.Helper()
	a := New(mock, func(o *Options) {
		o.Compressor = compress.NewExtractive()
	})
	require.NoError(t, providers.RegisterAll(a.Registry(), providers.NewStore()))
	return a
}

func TestSendSyncReply(t *testing.T) {
	mock := oracle.NewMock().Enqueue(oracle.Decision{Reply: "Happy to help with your order."})
	a := newTestAgent(t, mock)

	done, all, err := a.SendSync(context.Background(), "s1", "hi there")
	require.NoError(t, err)

	assert.Equal(t, engine.EventDone, done.Type)
	assert.Equal(t, "Happy to help with your order.", done.Reply)
	assert.NotEmpty(t, all)
}

func TestSendSyncExecutesRegisteredTool(t *testing.T) {
	mock := oracle.NewMock().Enqueue(
		oracle.Decision{Calls: []oracle.ToolCall{{
			Name:      "get_order",
			Arguments: json.RawMessage(`{"order_id":"ORD-2035"}`),
		}}},
		oracle.Decision{Reply: "ORD-2035 shipped on the 12th."},
	)
	a := newTestAgent(t, mock)

	done, _, err := a.SendSync(context.Background(), "s1", "where is ORD-2035?")
	require.NoError(t, err)

	assert.Equal(t, int64(1), done.ToolCalls)
	assert.Equal(t, "ORD-2035 shipped on the 12th.", done.Reply)
}

func TestConfirmSyncResolvesPendingMutation(t *testing.T) {
	mock := oracle.NewMock().Enqueue(
		oracle.Decision{Calls: []oracle.ToolCall{{
			Name:      "add_note",
			Arguments: json.RawMessage(`{"entity_type":"customer","entity_id":"cust_001","body":"prefers evening calls"}`),
		}}},
		oracle.Decision{Reply: "Noted on the customer's file."},
	)
	a := newTestAgent(t, mock)

	done, _, err := a.SendSync(context.Background(), "s1", "note that cust_001 prefers evening calls")
	require.NoError(t, err)
	require.NotNil(t, done.Pending)
	assert.Equal(t, "add_note", done.Pending.Tool)

	done, _, err = a.ConfirmSync(context.Background(), "s1", true)
	require.NoError(t, err)
	assert.Nil(t, done.Pending)
	assert.Equal(t, int64(1), done.ToolCalls)
}

func TestConfirmWithoutPendingErrors(t *testing.T) {
	a := newTestAgent(t, oracle.NewMock())

	_, _, err := a.ConfirmSync(context.Background(), "s1", true)
	assert.ErrorIs(t, err, engine.ErrNoPendingConfirmation)
}
