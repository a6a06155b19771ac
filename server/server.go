// Package server exposes the orchestration engine over a websocket chat
// endpoint plus a health check. The wire protocol is JSON per message:
// clients send {"session_id", "message"} or {"session_id", "confirm"},
// the server streams {"type":"token"} chunks and finishes each turn with
// {"type":"done", "session_id", "tool_calls_count"}; a pending confirmation
// travels in-band on the done message.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jewelryops/opsagent/core"
	"github.com/jewelryops/opsagent/engine"
	"github.com/jewelryops/opsagent/logging"
	"github.com/jewelryops/opsagent/session"
)

// Options configure the Server.
type Options struct {
	// Addr is the listen address, host:port.
	Addr string
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Server is the websocket front end over the engine.
type Server struct {
	engine   *engine.Engine
	logger   logging.Logger
	addr     string
	upgrader websocket.Upgrader
	server   *http.Server
}

// New creates a Server around the engine.
func New(e *engine.Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:   ":8080",
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Server{
		engine: e,
		logger: opts.Logger,
		addr:   opts.Addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the routed HTTP handler; exposed for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleChat)
	return mux
}

// Start runs the HTTP server until Shutdown or a listen error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
	}
	s.logger.Info("server.starting", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// clientMessage is one inbound frame. Confirm distinguishes a confirmation
// response from an ordinary message.
type clientMessage struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
	Confirm   *bool  `json:"confirm,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server.upgrade_failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("server.read_failed", "error", err)
			}
			return
		}
		s.handleTurn(r.Context(), conn, msg)
	}
}

// handleTurn submits one client frame to the engine and relays the turn's
// event stream. Protocol misuse is reported as an error frame; the
// connection stays open.
func (s *Server) handleTurn(ctx context.Context, conn *websocket.Conn, msg clientMessage) {
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = core.NewID()
	}

	var (
		events <-chan engine.Event
		err    error
	)
	switch {
	case msg.Confirm != nil:
		events, err = s.engine.SubmitConfirmation(ctx, sessionID, *msg.Confirm)
	case msg.Message != "":
		events, err = s.engine.SubmitMessage(ctx, sessionID, msg.Message)
	default:
		err = errors.New("message or confirm is required")
	}
	if err != nil {
		if isProtocolError(err) {
			s.logger.Debug("server.turn_rejected", "session_id", sessionID, "error", err)
		} else {
			s.logger.Warn("server.turn_failed", "session_id", sessionID, "error", err)
		}
		s.writeEvent(conn, engine.Event{Type: engine.EventError, SessionID: sessionID, Err: err.Error()})
		return
	}

	for ev := range events {
		s.writeEvent(conn, ev)
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, ev engine.Event) {
	if err := conn.WriteJSON(ev); err != nil {
		s.logger.Warn("server.write_failed", "session_id", ev.SessionID, "error", err)
	}
}

// isProtocolError reports whether the error is client misuse rather than an
// internal failure.
func isProtocolError(err error) bool {
	return errors.Is(err, session.ErrConfirmationPending) ||
		errors.Is(err, engine.ErrNoPendingConfirmation) ||
		errors.Is(err, session.ErrUnknownSession)
}
