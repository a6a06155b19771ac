// Package session holds per-session mutable state keyed by session id: turn
// history, investigation summary, pending confirmation and counters. The
// store is the module's only shared mutable state; it is safe under
// concurrent access across sessions and serializes turns within a session.
package session

import (
	"context"
	"errors"

	"github.com/jewelryops/opsagent/core"
)

var (
	// ErrUnknownSession is returned for operations on a session id that was
	// never created. Defensive: engine code always goes through GetOrCreate
	// first, so hitting this indicates an integration bug.
	ErrUnknownSession = errors.New("unknown session")
	// ErrConfirmationPending is returned when installing a pending
	// confirmation while another is already outstanding.
	ErrConfirmationPending = errors.New("confirmation already pending")
)

// Ticket is a reserved place in a session's turn queue. Wait blocks until
// the holder owns the turn token; on cancellation the reservation is
// abandoned and the queue keeps moving.
type Ticket interface {
	Wait(ctx context.Context) error
}

// Store is the narrow operation set every session mutation goes through.
//
// Reserve/Wait/Release serialize turns within one session: Reserve takes a
// queue position synchronously, Wait blocks until the session's earlier
// turns finish, and tokens are granted in strict reservation order — so two
// messages to the same session are processed in submission order and never
// interleave. Sessions are independent; queueing on one session never blocks
// another.
type Store interface {
	// GetOrCreate returns the session for id, creating an empty one on
	// first access. It never fails.
	GetOrCreate(id string) *core.Session
	// AppendTurn appends a completed turn to the session's history.
	AppendTurn(id string, t core.Turn) error
	// SetSummary replaces the session's investigation summary.
	SetSummary(id string, s *core.InvestigationSummary) error
	// SetPending installs a pending confirmation, enforcing the
	// at-most-one invariant via ErrConfirmationPending.
	SetPending(id string, p *core.PendingConfirmation) error
	// ClearPending removes the pending confirmation if any.
	ClearPending(id string) error
	// Reserve synchronously takes the next place in the session's turn
	// queue. It never blocks.
	Reserve(id string) Ticket
	// Acquire is Reserve followed by Wait.
	Acquire(ctx context.Context, id string) error
	// Release returns the turn token, waking the next waiter if any.
	Release(id string)
}
