// Package journal persists the raw action stream to SQLite: one row per
// session and one per recorded action. The journal is append-only during a
// session and read back for inspection and replay; the learned memory itself
// lives in the snapshot, not here.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the journal database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the journal at the given path and runs migrations.
// Use ":memory:" for an ephemeral journal.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal pragmas: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			snapshot_path TEXT NOT NULL DEFAULT '',
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			actions INTEGER DEFAULT 0,
			turns INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			turn_key TEXT NOT NULL DEFAULT '',
			action_key TEXT NOT NULL,
			action_json TEXT NOT NULL DEFAULT '',
			succeeded BOOLEAN NOT NULL,
			echo TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SessionRecord is one session's row in the journal.
type SessionRecord struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	SnapshotPath string     `json:"snapshot_path,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Actions      int        `json:"actions"`
	Turns        int        `json:"turns"`
}

// Event is one recorded action.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	TurnKey   string    `json:"turn_key,omitempty"`
	ActionKey string    `json:"action_key"`
	Action    string    `json:"action,omitempty"` // raw action JSON as the source supplied it
	Succeeded bool      `json:"succeeded"`
	Echo      string    `json:"echo,omitempty"` // surfaced suggestion text, empty when none
	CreatedAt time.Time `json:"created_at"`
}

// StartSession inserts a session row. The ID must be unique.
func (s *Store) StartSession(rec *SessionRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, source, snapshot_path)
		VALUES (?, ?, ?)
	`, rec.ID, rec.Source, rec.SnapshotPath)
	return err
}

// EndSession marks a session finished and stores its final counters.
func (s *Store) EndSession(id string, actions, turns int) error {
	_, err := s.db.Exec(`
		UPDATE sessions
		SET ended_at = CURRENT_TIMESTAMP, actions = ?, turns = ?
		WHERE id = ?
	`, actions, turns, id)
	return err
}

// AppendEvent appends one action to a session's stream.
func (s *Store) AppendEvent(ev *Event) error {
	result, err := s.db.Exec(`
		INSERT INTO events (session_id, seq, turn_key, action_key, action_json, succeeded, echo)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.SessionID, ev.Seq, ev.TurnKey, ev.ActionKey, ev.Action, ev.Succeeded, ev.Echo)
	if err != nil {
		return err
	}
	id, _ := result.LastInsertId()
	ev.ID = id
	return nil
}

// GetSession retrieves one session by ID. Returns sql.ErrNoRows when absent.
func (s *Store) GetSession(id string) (*SessionRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, source, snapshot_path, started_at, ended_at, actions, turns
		FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

// RecentSessions returns the most recent sessions, newest first.
func (s *Store) RecentSessions(limit int) ([]*SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, source, snapshot_path, started_at, ended_at, actions, turns
		FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []*SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}

// Events returns a session's actions in recording order.
func (s *Store) Events(sessionID string) ([]*Event, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, seq, turn_key, action_key, action_json, succeeded, echo, created_at
		FROM events WHERE session_id = ? ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []*Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Seq, &ev.TurnKey, &ev.ActionKey,
			&ev.Action, &ev.Succeeded, &ev.Echo, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var rec SessionRecord
	var endedAt sql.NullTime
	if err := row.Scan(&rec.ID, &rec.Source, &rec.SnapshotPath, &rec.StartedAt,
		&endedAt, &rec.Actions, &rec.Turns); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}
	return &rec, nil
}
