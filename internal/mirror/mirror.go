package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"aeon-session-server/internal/model"
)

// Store mirrors session documents into a relational table for cross-session
// querying. It is never authoritative: the core only writes to it.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	route TEXT NOT NULL,
	data TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) UpsertSession(ctx context.Context, sessionID string, doc model.SessionDocument) error {
	data, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO sessions(session_id, route, data, schema_version, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	route=excluded.route,
	data=excluded.data,
	schema_version=excluded.schema_version,
	updated_at=excluded.updated_at`,
		sessionID, doc.Route, string(data), doc.Schema.Version, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (route, data, schemaVersion string, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT route, data, schema_version FROM sessions WHERE session_id = ?`, sessionID)
	if err := row.Scan(&route, &data, &schemaVersion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", "", err
		}
		return "", "", "", fmt.Errorf("read session %s: %w", sessionID, err)
	}
	return route, data, schemaVersion, nil
}

type job struct {
	sessionID string
	doc       model.SessionDocument
}

// Writer drains mirror jobs on its own goroutine. Enqueue never blocks the
// caller's turn; failures are logged and dropped, never retried or surfaced.
type Writer struct {
	store *Store
	jobs  chan job

	closeOnce sync.Once
	done      chan struct{}
}

func NewWriter(store *Store) *Writer {
	w := &Writer{
		store: store,
		jobs:  make(chan job, 64),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Writer) run() {
	defer close(w.done)
	for j := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.store.UpsertSession(ctx, j.sessionID, j.doc); err != nil {
			log.Printf("mirror: write failed for session %s: %v", j.sessionID, err)
		}
		cancel()
	}
}

func (w *Writer) Enqueue(sessionID string, doc model.SessionDocument) {
	select {
	case w.jobs <- job{sessionID: sessionID, doc: doc}:
	default:
		log.Printf("mirror: queue full, dropping write for session %s", sessionID)
	}
}

// Close stops accepting jobs and waits for in-flight writes to finish.
func (w *Writer) Close() {
	w.closeOnce.Do(func() { close(w.jobs) })
	<-w.done
}
