package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryops/opsagent/compress"
	"github.com/jewelryops/opsagent/engine"
	"github.com/jewelryops/opsagent/oracle"
	"github.com/jewelryops/opsagent/session"
	"github.com/jewelryops/opsagent/tool"
)

func newTestServer(t *testing.T, mock *oracle.Mock, reg *tool.Registry) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	e := engine.New(mock, func(o *engine.Options) {
		o.Store = session.NewInMemoryStore()
		o.Registry = reg
		o.Compressor = compress.NewExtractive()
	})
	srv := New(e)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return ts, conn
}

// readTurn collects frames for one turn, stopping at done or error.
func readTurn(t *testing.T, conn *websocket.Conn) (engine.Event, []engine.Event) {
	t.Helper()
	var all []engine.Event
	for {
		var ev engine.Event
		require.NoError(t, conn.ReadJSON(&ev))
		all = append(all, ev)
		if ev.Type == engine.EventDone || ev.Type == engine.EventError {
			return ev, all
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, oracle.NewMock(), tool.NewRegistry(nil))

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestChatStreamsTokensAndDone(t *testing.T) {
	mock := oracle.NewMock().Enqueue(oracle.Decision{Reply: "We ship within two business days."})
	_, conn := newTestServer(t, mock, tool.NewRegistry(nil))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"session_id": "s1",
		"message":    "how fast do you ship?",
	}))
	done, all := readTurn(t, conn)

	assert.Equal(t, engine.EventDone, done.Type)
	assert.Equal(t, "s1", done.SessionID)
	assert.Equal(t, "We ship within two business days.", done.Reply)

	var b strings.Builder
	for _, ev := range all {
		if ev.Type == engine.EventToken {
			b.WriteString(ev.Token)
		}
	}
	assert.Equal(t, "We ship within two business days.", b.String())
}

func TestChatGeneratesSessionID(t *testing.T) {
	mock := oracle.NewMock().Enqueue(oracle.Decision{Reply: "Hello!"})
	_, conn := newTestServer(t, mock, tool.NewRegistry(nil))

	require.NoError(t, conn.WriteJSON(map[string]any{"message": "hi"}))
	done, _ := readTurn(t, conn)

	assert.Equal(t, engine.EventDone, done.Type)
	assert.NotEmpty(t, done.SessionID)
}

func TestConfirmationRoundTripOverWire(t *testing.T) {
	mock := oracle.NewMock().Enqueue(
		oracle.Decision{Calls: []oracle.ToolCall{{Name: "cancel_order", Arguments: json.RawMessage(`{"order_id":"ORD-2041"}`)}}},
		oracle.Decision{Reply: "ORD-2041 has been cancelled."},
	)
	reg := tool.NewRegistry(nil)
	var invoked int32
	require.NoError(t, reg.Register(tool.Descriptor{
		Name:        "cancel_order",
		Description: "cancel an order",
		Parameters:  map[string]any{"type": "object"},
		Mutating:    true,
	}, func(ctx context.Context, args map[string]any) (any, error) {
		atomic.AddInt32(&invoked, 1)
		return map[string]any{"status": "cancelled"}, nil
	}))
	_, conn := newTestServer(t, mock, reg)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"session_id": "s1",
		"message":    "cancel ORD-2041",
	}))
	done, _ := readTurn(t, conn)

	require.Equal(t, engine.EventDone, done.Type)
	require.NotNil(t, done.Pending)
	assert.Equal(t, "cancel_order", done.Pending.Tool)
	assert.Equal(t, int32(0), atomic.LoadInt32(&invoked))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"session_id": "s1",
		"confirm":    true,
	}))
	done, _ = readTurn(t, conn)

	require.Equal(t, engine.EventDone, done.Type)
	assert.Nil(t, done.Pending)
	assert.Equal(t, "ORD-2041 has been cancelled.", done.Reply)
	assert.Equal(t, int64(1), done.ToolCalls)
	assert.Equal(t, int32(1), atomic.LoadInt32(&invoked))
}

func TestProtocolErrorsKeepConnectionOpen(t *testing.T) {
	mock := oracle.NewMock().Enqueue(oracle.Decision{Reply: "Still here."})
	_, conn := newTestServer(t, mock, tool.NewRegistry(nil))

	// Confirmation with nothing pending.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"session_id": "s1",
		"confirm":    true,
	}))
	ev, _ := readTurn(t, conn)
	assert.Equal(t, engine.EventError, ev.Type)
	assert.Contains(t, ev.Err, "no pending confirmation")

	// Frame with neither message nor confirm.
	require.NoError(t, conn.WriteJSON(map[string]any{"session_id": "s1"}))
	ev, _ = readTurn(t, conn)
	assert.Equal(t, engine.EventError, ev.Type)

	// The connection still serves normal turns.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"session_id": "s1",
		"message":    "are you there?",
	}))
	done, _ := readTurn(t, conn)
	assert.Equal(t, engine.EventDone, done.Type)
	assert.Equal(t, "Still here.", done.Reply)
}

func TestMessageWhileConfirmationPendingReturnsError(t *testing.T) {
	mock := oracle.NewMock().Enqueue(
		oracle.Decision{Calls: []oracle.ToolCall{{Name: "send_email", Arguments: json.RawMessage(`{}`)}}},
	)
	reg := tool.NewRegistry(nil)
	require.NoError(t, reg.Register(tool.Descriptor{
		Name:        "send_email",
		Description: "send an email",
		Parameters:  map[string]any{"type": "object"},
		Mutating:    true,
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return "sent", nil
	}))
	_, conn := newTestServer(t, mock, reg)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"session_id": "s1",
		"message":    "email the customer",
	}))
	done, _ := readTurn(t, conn)
	require.NotNil(t, done.Pending)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"session_id": "s1",
		"message":    "also check inventory",
	}))
	ev, _ := readTurn(t, conn)
	assert.Equal(t, engine.EventError, ev.Type)
	assert.Contains(t, ev.Err, "confirmation")
}
