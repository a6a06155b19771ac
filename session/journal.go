package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jewelryops/opsagent/core"
	"github.com/jewelryops/opsagent/logging"
)

// Journal mirrors session snapshots to durable storage. Record is
// fire-and-forget: implementations must never block the caller, and a lost
// write costs at most the latest snapshot, which the next mutation rewrites.
type Journal interface {
	// Record persists a snapshot asynchronously.
	Record(snapshot *core.Session)
	// Restore loads every journaled session, used at startup to resume
	// exactly at the state machine position each session was in.
	Restore() ([]*core.Session, error)
	// Close flushes buffered writes and releases resources.
	Close() error
}

// SQLiteJournal keeps one row per session: the session id plus a JSON blob
// of the full snapshot (turn sequence, summary, pending confirmation,
// counters). Writes flow through a buffered channel to a single background
// writer so Record never blocks the orchestration loop; overflow drops the
// write and logs it.
type SQLiteJournal struct {
	db     *sql.DB
	writes chan *core.Session
	done   chan struct{}
	logger logging.Logger

	closeOnce sync.Once
}

// journalBuffer is the write queue depth. A full queue means sqlite cannot
// keep up with turn completion; dropping snapshots is acceptable because
// every later mutation rewrites the whole row.
const journalBuffer = 256

// OpenSQLiteJournal opens or creates the journal database at path, creating
// parent directories as needed.
func OpenSQLiteJournal(path string, logger logging.Logger) (*SQLiteJournal, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	j := &SQLiteJournal{
		db:     db,
		writes: make(chan *core.Session, journalBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
	if err := j.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}
	go j.writeLoop()
	return j, nil
}

func (j *SQLiteJournal) createSchema() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			state      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record implements Journal. It never blocks; when the write queue is full
// the snapshot is dropped and counted in the logs.
func (j *SQLiteJournal) Record(snapshot *core.Session) {
	select {
	case j.writes <- snapshot:
	default:
		j.logger.Warn("journal.write_dropped", "session_id", snapshot.ID)
	}
}

func (j *SQLiteJournal) writeLoop() {
	defer close(j.done)
	for snapshot := range j.writes {
		j.persist(snapshot)
	}
}

func (j *SQLiteJournal) persist(snapshot *core.Session) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		j.logger.Error("journal.marshal_failed", "session_id", snapshot.ID, "error", err.Error())
		return
	}
	_, err = j.db.Exec(`
		INSERT INTO sessions (session_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, snapshot.ID, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		j.logger.Error("journal.write_failed", "session_id", snapshot.ID, "error", err.Error())
	}
}

// Restore implements Journal.
func (j *SQLiteJournal) Restore() ([]*core.Session, error) {
	rows, err := j.db.Query(`SELECT state FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var sessions []*core.Session
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		var sess core.Session
		if err := json.Unmarshal([]byte(state), &sess); err != nil {
			j.logger.Warn("journal.skip_corrupt_row", "error", err.Error())
			continue
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// Close drains pending writes then closes the database. Safe to call twice.
func (j *SQLiteJournal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		close(j.writes)
		<-j.done
		err = j.db.Close()
	})
	return err
}
