// Package transcript keeps an audit journal of executed statements in SQLite.
// The journal is write-mostly: entries are listed for inspection but never
// replayed into a session.
package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/antibyte/retrocalc/pkg/logger"
)

// Entry is one journaled statement.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Failed    bool      `json:"failed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store wraps the SQLite connection holding the journal.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the journal at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{conn: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info(logger.AreaTranscript, "Transcript journal opened at %s", path)
	return s, nil
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS statements (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			input TEXT NOT NULL,
			output TEXT NOT NULL,
			failed INTEGER DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_statements_session ON statements(session_id, seq)`,
	}

	for _, query := range queries {
		if _, err := s.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Append stores one statement for sessionID and returns the stored entry.
func (s *Store) Append(ctx context.Context, sessionID, input, output string, failed bool) (Entry, error) {
	if sessionID == "" {
		return Entry{}, errors.New("transcript: empty session id")
	}
	e := Entry{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Input:     input,
		Output:    output,
		Failed:    failed,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO statements (id, session_id, seq, input, output, failed, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM statements WHERE session_id = ?), ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.SessionID, e.Input, e.Output, boolToInt(e.Failed), e.CreatedAt.UnixMilli())
	if err != nil {
		return Entry{}, fmt.Errorf("error storing statement: %w", err)
	}
	return e, nil
}

// List returns the entries of sessionID in execution order.
func (s *Store) List(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, session_id, input, output, failed, created_at
		FROM statements WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("error querying transcript: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			failed  int
			created int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Input, &e.Output, &failed, &created); err != nil {
			return nil, fmt.Errorf("error scanning transcript row: %w", err)
		}
		e.Failed = failed != 0
		e.CreatedAt = time.UnixMilli(created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sessions returns the ids of all sessions with at least one entry.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT DISTINCT session_id FROM statements ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Prune deletes entries older than maxAge and reports how many were removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.conn.ExecContext(ctx, `DELETE FROM statements WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error pruning transcript: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Info(logger.AreaTranscript, "Pruned %d transcript entries older than %v", n, maxAge)
	}
	return n, nil
}

// ForSession binds the store to one session so it can serve as a statement
// recorder for a REPL loop or a websocket connection.
func (s *Store) ForSession(sessionID string) *SessionRecorder {
	return &SessionRecorder{store: s, sessionID: sessionID}
}

// SessionRecorder appends to the journal of a single session.
type SessionRecorder struct {
	store     *Store
	sessionID string
}

// SessionID returns the id entries are recorded under.
func (r *SessionRecorder) SessionID() string {
	return r.sessionID
}

// Record implements repl.Recorder.
func (r *SessionRecorder) Record(input, output string, failed bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.store.Append(ctx, r.sessionID, input, output, failed)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
