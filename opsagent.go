// Package opsagent provides a high-level façade over the orchestration
// engine and its services (sessions, tools, confirmation gating, logging)
// for building conversational support assistants over business records.
// Most applications interact with this package by:
//  1. Creating an Agent via New() with a decision oracle (optionally
//     overriding the default in-memory services)
//  2. Registering tools on its registry, or calling providers.RegisterAll
//  3. Submitting messages asynchronously (Send) or synchronously (SendSync)
//
// The façade delegates orchestration to engine.Engine while keeping setup
// concise. All defaults are safe for local development and testing;
// production deployments typically supply a journaled session store and a
// structured logger.
package opsagent

import (
	"context"

	"github.com/jewelryops/opsagent/compress"
	"github.com/jewelryops/opsagent/confirm"
	"github.com/jewelryops/opsagent/engine"
	"github.com/jewelryops/opsagent/logging"
	"github.com/jewelryops/opsagent/oracle"
	"github.com/jewelryops/opsagent/session"
	"github.com/jewelryops/opsagent/tool"
)

// Options configures the Agent.
type Options struct {
	// EngineConfig holds loop tuning (step budget, compression thresholds,
	// concurrency, buffers).
	EngineConfig engine.Config

	// Store (defaults to an in-memory store without a journal)
	Store session.Store

	// Registry dispatches tool invocations (defaults to an empty registry)
	Registry *tool.Registry

	// Gate classifies proposed tool calls (defaults to the mutating-flag gate)
	Gate *confirm.Gate

	// Compressor bounds session context (defaults to an oracle-backed
	// compressor)
	Compressor compress.Compressor

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Agent is the high-level façade aggregating the engine and its services.
type Agent struct {
	opts   Options
	engine *engine.Engine
}

// New creates an Agent around the given decision oracle. Any unset service
// is initialized with an in-memory implementation.
func New(o oracle.Oracle, optFns ...func(o *Options)) *Agent {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = tool.NewRegistry(opts.Logger)
	}

	e := engine.New(o, func(eo *engine.Options) {
		eo.Config = opts.EngineConfig
		eo.Store = opts.Store
		eo.Registry = opts.Registry
		eo.Gate = opts.Gate
		eo.Compressor = opts.Compressor
		eo.Logger = opts.Logger
	})

	return &Agent{opts: opts, engine: e}
}

// Engine exposes the underlying engine for callers that need direct access.
func (a *Agent) Engine() *engine.Engine { return a.engine }

// Registry exposes the tool registry for registration.
func (a *Agent) Registry() *tool.Registry { return a.opts.Registry }

// Send starts a turn for the session and returns its event stream.
func (a *Agent) Send(ctx context.Context, sessionID, message string) (<-chan engine.Event, error) {
	return a.engine.SubmitMessage(ctx, sessionID, message)
}

// Confirm resolves the session's pending confirmation and returns the
// resumed turn's event stream.
func (a *Agent) Confirm(ctx context.Context, sessionID string, approve bool) (<-chan engine.Event, error) {
	return a.engine.SubmitConfirmation(ctx, sessionID, approve)
}

// SendSync is a synchronous helper that drains the event stream and returns
// the terminal done event along with every event observed.
func (a *Agent) SendSync(ctx context.Context, sessionID, message string) (engine.Event, []engine.Event, error) {
	events, err := a.engine.SubmitMessage(ctx, sessionID, message)
	if err != nil {
		return engine.Event{}, nil, err
	}
	done, all := drain(ctx, events)
	return done, all, nil
}

// ConfirmSync is the synchronous counterpart of Confirm.
func (a *Agent) ConfirmSync(ctx context.Context, sessionID string, approve bool) (engine.Event, []engine.Event, error) {
	events, err := a.engine.SubmitConfirmation(ctx, sessionID, approve)
	if err != nil {
		return engine.Event{}, nil, err
	}
	done, all := drain(ctx, events)
	return done, all, nil
}

// drain collects events until the stream closes or the context ends. The
// last event collected is the terminal one; on cancellation it may be zero.
func drain(ctx context.Context, events <-chan engine.Event) (engine.Event, []engine.Event) {
	var (
		all  []engine.Event
		last engine.Event
	)
	for {
		select {
		case <-ctx.Done():
			return last, all
		case ev, ok := <-events:
			if !ok {
				return last, all
			}
			all = append(all, ev)
			last = ev
		}
	}
}
