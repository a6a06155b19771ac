package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jewelryops/opsagent/core"
	"github.com/jewelryops/opsagent/logging"
)

// InMemoryStore keeps sessions in a process-local map. State lives for the
// process lifetime unless evicted; an optional Journal mirrors snapshots to
// durable storage as a fire-and-forget write-through so a restart can resume
// where the state machine left off.
//
// Per-key serialization uses an explicit FIFO waiter queue per session
// rather than one global lock, so sessions never contend with each other.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry

	journal Journal
	logger  logging.Logger
}

// entry pairs a session with its turn-token state. busy + waiters implement
// a FIFO mutex: waiters are woken strictly in arrival order.
type entry struct {
	session *core.Session

	lockMu  sync.Mutex
	busy    bool
	waiters []chan struct{}
}

// StoreOptions configure NewInMemoryStore.
type StoreOptions struct {
	// Journal, when set, receives a session snapshot after every mutation.
	// Writes are fire-and-forget and never block store operations.
	Journal Journal
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore(optFns ...func(o *StoreOptions)) *InMemoryStore {
	opts := StoreOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &InMemoryStore{
		entries: map[string]*entry{},
		journal: opts.Journal,
		logger:  opts.Logger,
	}
}

// GetOrCreate implements Store. It never fails; an unseen id creates an
// empty session.
func (s *InMemoryStore) GetOrCreate(id string) *core.Session {
	return s.entryFor(id).session
}

// Load seeds the store with a previously journaled session, typically during
// startup restore. An existing in-memory session for the same id wins.
func (s *InMemoryStore) Load(sess *core.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[sess.ID]; exists {
		return
	}
	s.entries[sess.ID] = &entry{session: sess}
}

// AppendTurn implements Store.
func (s *InMemoryStore) AppendTurn(id string, t core.Turn) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.session.AppendTurn(t)
	s.writeThrough(e.session)
	return nil
}

// SetSummary implements Store.
func (s *InMemoryStore) SetSummary(id string, sum *core.InvestigationSummary) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.session.SetSummary(sum)
	s.writeThrough(e.session)
	return nil
}

// SetPending implements Store, enforcing the at-most-one invariant.
func (s *InMemoryStore) SetPending(id string, p *core.PendingConfirmation) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !e.session.SetPending(p) {
		return fmt.Errorf("%w: session %s", ErrConfirmationPending, id)
	}
	s.writeThrough(e.session)
	return nil
}

// ClearPending implements Store.
func (s *InMemoryStore) ClearPending(id string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	if e.session.TakePending() != nil {
		s.writeThrough(e.session)
	}
	return nil
}

// ticket is a reserved queue position. A nil ch means the token was granted
// at reservation time.
type ticket struct {
	store *InMemoryStore
	id    string
	ch    chan struct{}
}

// Wait implements Ticket. A cancelled waiter is removed from the queue
// without disturbing the others.
func (t *ticket) Wait(ctx context.Context) error {
	if t.ch == nil {
		return nil
	}
	select {
	case <-t.ch:
		return nil
	case <-ctx.Done():
		e := t.store.entryFor(t.id)
		e.lockMu.Lock()
		removed := false
		for i, w := range e.waiters {
			if w == t.ch {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				removed = true
				break
			}
		}
		e.lockMu.Unlock()
		if !removed {
			// Release already handed us the token; pass it along so the
			// queue keeps moving.
			<-t.ch
			t.store.Release(t.id)
		}
		return ctx.Err()
	}
}

// Reserve implements Store. Tokens are granted in strict reservation order.
func (s *InMemoryStore) Reserve(id string) Ticket {
	e := s.entryFor(id)

	e.lockMu.Lock()
	if !e.busy {
		e.busy = true
		e.lockMu.Unlock()
		return &ticket{store: s, id: id}
	}
	ch := make(chan struct{}, 1)
	e.waiters = append(e.waiters, ch)
	e.lockMu.Unlock()
	return &ticket{store: s, id: id, ch: ch}
}

// Acquire implements Store.
func (s *InMemoryStore) Acquire(ctx context.Context, id string) error {
	return s.Reserve(id).Wait(ctx)
}

// Release implements Store.
func (s *InMemoryStore) Release(id string) {
	e := s.entryFor(id)
	e.lockMu.Lock()
	if len(e.waiters) > 0 {
		next := e.waiters[0]
		e.waiters = e.waiters[1:]
		e.lockMu.Unlock()
		next <- struct{}{}
		return
	}
	e.busy = false
	e.lockMu.Unlock()
}

// EvictIdle removes sessions idle for longer than maxIdle, skipping any with
// an in-flight or queued turn. It returns the number evicted.
func (s *InMemoryStore) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, e := range s.entries {
		e.lockMu.Lock()
		active := e.busy || len(e.waiters) > 0
		e.lockMu.Unlock()
		if active || !e.session.LastActive().Before(cutoff) {
			continue
		}
		delete(s.entries, id)
		evicted++
	}
	if evicted > 0 {
		s.logger.Info("session.evicted_idle", "count", evicted)
	}
	return evicted
}

// SessionIDs returns the ids of all live sessions.
func (s *InMemoryStore) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

func (s *InMemoryStore) entryFor(id string) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e
	}
	e = &entry{session: core.NewSession(id)}
	s.entries[id] = e
	return e
}

func (s *InMemoryStore) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return e, nil
}

func (s *InMemoryStore) writeThrough(sess *core.Session) {
	if s.journal == nil {
		return
	}
	s.journal.Record(sess.Snapshot())
}
