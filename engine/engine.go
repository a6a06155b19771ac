package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jewelryops/opsagent/compress"
	"github.com/jewelryops/opsagent/confirm"
	"github.com/jewelryops/opsagent/core"
	"github.com/jewelryops/opsagent/entity"
	"github.com/jewelryops/opsagent/logging"
	"github.com/jewelryops/opsagent/oracle"
	"github.com/jewelryops/opsagent/session"
	"github.com/jewelryops/opsagent/tool"
)

var (
	// ErrNoPendingConfirmation is returned by SubmitConfirmation when the
	// session has no outstanding proposal to resolve.
	ErrNoPendingConfirmation = errors.New("no pending confirmation for session")

	// ErrStepBudgetExceeded marks a turn that ran out of decide cycles. It
	// is logged, never surfaced; the caller sees the fallback reply.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")
)

// Options configures an Engine. Zero-value fields fall back to in-memory or
// no-op defaults suitable for tests and examples.
type Options struct {
	// Config holds loop tuning parameters. Defaults to DefaultConfig.
	Config Config

	// Store holds per-session state and serializes turns per session.
	// Defaults to an in-memory store without a journal.
	Store session.Store

	// Registry dispatches tool invocations. Defaults to an empty registry.
	Registry *tool.Registry

	// Gate classifies proposed tool calls. Defaults to the static
	// mutating-flag gate.
	Gate *confirm.Gate

	// Compressor bounds session context. Defaults to an oracle-backed
	// compressor over the engine's oracle.
	Compressor compress.Compressor

	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Engine runs the observe→decide→act loop for conversational sessions.
// All public methods are safe for concurrent use.
type Engine struct {
	oracle     oracle.Oracle
	store      session.Store
	registry   *tool.Registry
	gate       *confirm.Gate
	compressor compress.Compressor
	logger     logging.Logger
	config     Config
	limiter    *turnLimiter
}

// New creates an Engine around the given decision oracle.
func New(o oracle.Oracle, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}
	if opts.Registry == nil {
		opts.Registry = tool.NewRegistry(opts.Logger)
	}
	if opts.Gate == nil {
		opts.Gate = confirm.NewGate()
	}
	if opts.Compressor == nil {
		opts.Compressor = compress.NewWithOracle(o, opts.Logger)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	cfg := opts.Config.withDefaults()
	return &Engine{
		oracle:     o,
		store:      opts.Store,
		registry:   opts.Registry,
		gate:       opts.Gate,
		compressor: opts.Compressor,
		logger:     opts.Logger,
		config:     cfg,
		limiter:    newTurnLimiter(cfg.MaxConcurrentTurns),
	}
}

// SubmitMessage starts a turn for the given session and returns its event
// stream. Turns for the same session are processed strictly in submission
// order. While a confirmation is pending, ordinary messages are refused with
// session.ErrConfirmationPending; the proposal must be resolved first.
func (e *Engine) SubmitMessage(ctx context.Context, sessionID, text string) (<-chan Event, error) {
	sess := e.store.GetOrCreate(sessionID)
	if sess.GetPending() != nil {
		return nil, session.ErrConfirmationPending
	}
	// Reserving before returning pins this turn's place in the session
	// queue, so back-to-back submissions run in submission order.
	ticket := e.store.Reserve(sessionID)
	events := make(chan Event, e.config.EventBufferSize)
	go e.runTurn(ctx, sess, core.NewTurn(text), nil, ticket, events)
	return events, nil
}

// SubmitConfirmation resolves the session's pending mutating proposal.
// Approval executes the suspended call and re-enters the decision loop for a
// wrap-up reply; rejection records a rejected step without ever invoking the
// tool, then asks the oracle for a wrap-up reply.
func (e *Engine) SubmitConfirmation(ctx context.Context, sessionID string, approve bool) (<-chan Event, error) {
	sess := e.store.GetOrCreate(sessionID)
	if sess.GetPending() == nil {
		return nil, ErrNoPendingConfirmation
	}
	ticket := e.store.Reserve(sessionID)
	events := make(chan Event, e.config.EventBufferSize)
	turn := core.NewTurn(confirmationMessage(approve))
	go e.runTurn(ctx, sess, turn, &approve, ticket, events)
	return events, nil
}

func confirmationMessage(approve bool) string {
	if approve {
		return "yes, go ahead"
	}
	return "no, don't do that"
}

// turnOutcome is how a turn's loop terminated.
type turnOutcome int

const (
	outcomeReply turnOutcome = iota
	outcomePending
	outcomeFailed
)

// runTurn owns the full lifecycle of one turn: admission through the global
// limiter and the per-session lock, optional confirmation resolution, the
// decision loop, persistence, compression, and the final done event.
func (e *Engine) runTurn(ctx context.Context, sess *core.Session, turn core.Turn, approve *bool, ticket session.Ticket, events chan<- Event) {
	defer close(events)

	if err := ticket.Wait(ctx); err != nil {
		e.emit(ctx, events, Event{Type: EventError, SessionID: sess.ID, Err: err.Error()})
		return
	}
	defer e.store.Release(sess.ID)

	// The limiter is taken after the session token so a queued turn does
	// not hog a concurrency slot while blocked behind its predecessor.
	if err := e.limiter.acquire(ctx); err != nil {
		e.emit(ctx, events, Event{Type: EventError, SessionID: sess.ID, Err: err.Error()})
		return
	}
	defer e.limiter.release()

	// An earlier queued turn may have raised a confirmation after this
	// message was submitted; never proceed past an unresolved proposal.
	if approve == nil && sess.GetPending() != nil {
		e.emit(ctx, events, Event{Type: EventError, SessionID: sess.ID, Err: session.ErrConfirmationPending.Error()})
		return
	}

	outcome := e.resolveAndLoop(ctx, sess, &turn, approve, events)

	// The partial turn is recorded even when the loop failed or the
	// connection dropped mid-turn.
	turn.Completed = time.Now().UTC()
	if err := e.store.AppendTurn(sess.ID, turn); err != nil {
		e.logger.Error("engine.turn.append_failed", "session_id", sess.ID, "error", err)
	}
	e.maybeCompress(ctx, sess)

	done := Event{Type: EventDone, SessionID: sess.ID, ToolCalls: sess.ToolCallCount()}
	switch outcome {
	case outcomeReply:
		e.emitTokens(ctx, events, sess.ID, turn.Reply)
		done.Reply = turn.Reply
	case outcomePending:
		done.Pending = sess.GetPending()
	}
	e.emit(ctx, events, done)

	e.logger.Info("engine.turn.completed",
		"session_id", sess.ID,
		"turn_id", turn.ID,
		"steps", len(turn.Steps),
		"tool_calls", turn.ExecutedToolCalls(),
		"pending", outcome == outcomePending,
	)
}

// resolveAndLoop applies a confirmation resolution when present, then runs
// the decision loop for the remaining budget.
func (e *Engine) resolveAndLoop(ctx context.Context, sess *core.Session, turn *core.Turn, approve *bool, events chan<- Event) turnOutcome {
	if approve != nil {
		pending := sess.GetPending()
		if pending == nil {
			e.emit(ctx, events, Event{Type: EventError, SessionID: sess.ID, Err: ErrNoPendingConfirmation.Error()})
			return outcomeFailed
		}
		if err := e.store.ClearPending(sess.ID); err != nil {
			e.emit(ctx, events, Event{Type: EventError, SessionID: sess.ID, Err: err.Error()})
			return outcomeFailed
		}
		if *approve {
			e.execute(ctx, sess, turn, pending.Tool, pending.Arguments, true, core.ConfirmationApproved, events)
		} else {
			step := core.NewToolCallStep(pending.Tool, pending.Arguments, true)
			step.Confirmation = core.ConfirmationRejected
			turn.Steps = append(turn.Steps, step)
			e.logger.Info("engine.confirmation.rejected", "session_id", sess.ID, "tool", pending.Tool)
		}
	}
	return e.loop(ctx, sess, turn, events)
}

// loop runs decide→execute cycles until the oracle replies, a mutating
// proposal suspends the turn, or the step budget runs out.
func (e *Engine) loop(ctx context.Context, sess *core.Session, turn *core.Turn, events chan<- Event) turnOutcome {
	for cycle := 0; cycle < e.config.StepBudget; cycle++ {
		decision, err := e.oracle.Decide(ctx, e.buildContext(sess, turn))
		if err != nil {
			e.logger.Error("engine.decide.failed", "session_id", sess.ID, "turn_id", turn.ID, "error", err)
			e.emit(ctx, events, Event{Type: EventError, SessionID: sess.ID, Err: err.Error()})
			return outcomeFailed
		}
		if decision.Rationale != "" {
			turn.Steps = append(turn.Steps, core.NewReasoningStep(decision.Rationale))
		}
		if decision.IsReply() {
			turn.Reply = decision.Reply
			return outcomeReply
		}

		for _, call := range decision.Calls {
			desc, err := e.registry.Describe(call.Name)
			if err != nil {
				// Unknown tool becomes an observation the oracle can
				// react to on the next cycle. Nothing was dispatched, so
				// the counter is untouched.
				step := core.NewToolCallStep(call.Name, call.Arguments, false)
				step.Err = err.Error()
				turn.Steps = append(turn.Steps, step)
				continue
			}

			if e.gate.Classify(desc, argsMap(call.Arguments)) == confirm.NeedsConfirmation {
				pending := core.NewPendingConfirmation(call.Name, call.Arguments, confirm.Reason(desc))
				if err := e.store.SetPending(sess.ID, pending); err != nil {
					e.emit(ctx, events, Event{Type: EventError, SessionID: sess.ID, Err: err.Error()})
					return outcomeFailed
				}
				e.logger.Info("engine.confirmation.proposed", "session_id", sess.ID, "tool", call.Name)
				e.emit(ctx, events, Event{Type: EventPendingConfirmation, SessionID: sess.ID, Pending: pending})
				// Remaining proposals from this decision are dropped;
				// the oracle re-decides once the user resolves.
				return outcomePending
			}

			outcome := core.ConfirmationNone
			if desc.Mutating {
				// Auto-approved by the gate (e.g. small inventory delta).
				outcome = core.ConfirmationApproved
			}
			e.execute(ctx, sess, turn, call.Name, call.Arguments, desc.Mutating, outcome, events)
		}
	}

	e.logger.Warn("engine.turn.budget_exhausted",
		"session_id", sess.ID,
		"turn_id", turn.ID,
		"budget", e.config.StepBudget,
		"error", ErrStepBudgetExceeded,
	)
	turn.Reply = e.config.FallbackReply
	return outcomeReply
}

// execute runs one tool call past the gate and records the step. Invocation
// errors are folded into the step, never returned. The session counter moves
// only for calls that recorded a result: it must equal the number of steps
// with a non-null result at every instant, so proposals that failed
// validation or errored in the provider do not count.
func (e *Engine) execute(ctx context.Context, sess *core.Session, turn *core.Turn, name string, args json.RawMessage, mutating bool, outcome core.ConfirmationOutcome, events chan<- Event) {
	step := core.NewToolCallStep(name, args, mutating)
	step.Confirmation = outcome

	result, err := e.registry.Invoke(ctx, name, args)
	if err != nil {
		step.Err = err.Error()
	} else {
		step.Result = result
		sess.IncrementToolCalls()
	}
	turn.Steps = append(turn.Steps, step)

	e.emit(ctx, events, Event{Type: EventToolCall, SessionID: sess.ID, Tool: name})
}

// buildContext assembles the bounded decision context: system prompt,
// summary, the recent raw-turn window, the current message with extracted
// entities, tool descriptors, and the current turn's steps so far.
func (e *Engine) buildContext(sess *core.Session, turn *core.Turn) oracle.Context {
	summary := sess.GetSummary()

	window := e.config.RecentTurnWindow
	if summary != nil {
		// Never feed turns the summary already covers.
		if raw := sess.TurnCount() - summary.CompressedTurns; raw < window {
			window = raw
		}
	}
	var recent []core.Turn
	if window > 0 {
		recent = sess.RecentTurns(window)
	}

	entities := entity.Extract(turn.UserMessage)
	if summary != nil {
		entities = entities.Merge(summary.Entities)
	}
	for _, t := range recent {
		entities = entities.Merge(entity.Extract(t.UserMessage)).Merge(entity.Extract(t.Reply))
	}

	return oracle.Context{
		System:      e.config.SystemPrompt,
		Summary:     summary,
		RecentTurns: recent,
		UserMessage: turn.UserMessage,
		Entities:    entities,
		Tools:       e.registry.DescribeAll(),
		Steps:       turn.Steps,
	}
}

// maybeCompress folds history older than the recent window into the summary
// once the raw tail exceeds the turn or step thresholds. Full history stays
// in the store; only the decision context shrinks.
func (e *Engine) maybeCompress(ctx context.Context, sess *core.Session) {
	turns := sess.AllTurns()
	covered := 0
	prev := sess.GetSummary()
	if prev != nil {
		covered = prev.CompressedTurns
	}
	if covered > len(turns) {
		return
	}

	tail := turns[covered:]
	steps := 0
	for _, t := range tail {
		steps += len(t.Steps)
	}
	if len(tail) <= e.config.CompressAfterTurns && steps <= e.config.CompressAfterSteps {
		return
	}

	cutoff := len(turns) - e.config.RecentTurnWindow
	if cutoff <= covered {
		return
	}

	next, err := e.compressor.Compress(ctx, prev, turns[covered:cutoff])
	if err != nil {
		e.logger.Warn("engine.compress.failed", "session_id", sess.ID, "error", err)
		return
	}
	next.CompressedTurns = cutoff
	if err := e.store.SetSummary(sess.ID, next); err != nil {
		e.logger.Error("engine.compress.store_failed", "session_id", sess.ID, "error", err)
		return
	}
	e.logger.Info("engine.compress.completed",
		"session_id", sess.ID,
		"compressed_turns", cutoff,
		"summary_len", len(next.Text),
	)
}

// emitTokens streams the reply as whitespace-delimited chunks, mirroring
// token-level model streaming for interactive clients.
func (e *Engine) emitTokens(ctx context.Context, events chan<- Event, sessionID, reply string) {
	words := strings.Fields(reply)
	for i, w := range words {
		token := w
		if i < len(words)-1 {
			token += " "
		}
		e.emit(ctx, events, Event{Type: EventToken, SessionID: sessionID, Token: token})
	}
}

// emit delivers an event unless the caller is gone.
func (e *Engine) emit(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func argsMap(raw json.RawMessage) map[string]any {
	var m map[string]any
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
