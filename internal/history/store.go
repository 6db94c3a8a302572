// Package history persists the interview log and notifies readers when it changes.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// StorageKey is the single key holding the serialized log.
const StorageKey = "interviewHistory"

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// Store is the append-only history log backed by SQLite.
type Store struct {
	db *sql.DB

	// serializes read-modify-write cycles
	writeMu sync.Mutex

	subMu       sync.Mutex
	subscribers map[int]chan struct{}
	nextSubID   int
}

// DefaultPath returns the default database path.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "mockinterview", "history.db")
}

// Open opens (creating if needed) the history database at path.
// ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
		var err error
		if dsn, err = fileDSN(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: in-memory databases are per connection, and
	// PRAGMA data_version only reports other connections' commits.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{
		db:          db,
		subscribers: make(map[int]chan struct{}),
	}, nil
}

// fileDSN builds a file: URI so '?' or '#' in path stay part of the name.
func fileDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve history path: %w", err)
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	u := url.URL{
		Scheme:   "file",
		Path:     abs,
		RawQuery: "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
	}
	return u.String(), nil
}

// Close closes the database connection and every subscription.
func (s *Store) Close() error {
	s.subMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subMu.Unlock()

	return s.db.Close()
}

// ReadAll returns the full log as currently persisted.
func (s *Store) ReadAll() ([]Entry, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, StorageKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(value), &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

// Append adds entries to the end of the log in one write. It never fails the
// caller: storage errors are logged and the entries are dropped.
func (s *Store) Append(entries ...Entry) {
	if len(entries) == 0 {
		return
	}

	s.writeMu.Lock()
	current, err := s.ReadAll()
	if err != nil {
		s.writeMu.Unlock()
		slog.Error("Failed to read history, entries not saved", "count", len(entries), "error", err)
		return
	}

	current = append(current, entries...)
	err = s.write(current)
	s.writeMu.Unlock()

	if err != nil {
		slog.Error("Failed to save history", "count", len(entries), "error", err)
		return
	}

	slog.Debug("History appended", "count", len(entries), "total", len(current))
	s.broadcast()
}

// GroupBySession reads the log and partitions it by session.
func (s *Store) GroupBySession() (map[string]*SessionGroup, error) {
	entries, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	return GroupBySession(entries), nil
}

// Sessions returns the grouped log, newest session first.
func (s *Store) Sessions() ([]*SessionGroup, error) {
	groups, err := s.GroupBySession()
	if err != nil {
		return nil, err
	}
	return SortedSessions(groups), nil
}

// ClearAll removes the whole log.
func (s *Store) ClearAll() error {
	s.writeMu.Lock()
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, StorageKey)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	slog.Info("History cleared")
	s.broadcast()
	return nil
}

// DeleteSession removes every entry of one session.
func (s *Store) DeleteSession(sessionID string) error {
	s.writeMu.Lock()
	entries, err := s.ReadAll()
	if err != nil {
		s.writeMu.Unlock()
		return err
	}

	kept := entries[:0]
	removed := 0
	for _, entry := range entries {
		id := entry.SessionID
		if id == "" {
			id = UnknownSession
		}
		if id == sessionID {
			removed++
			continue
		}
		kept = append(kept, entry)
	}

	err = s.write(kept)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}

	slog.Info("History session deleted", "session_id", sessionID, "entries", removed)
	s.broadcast()
	return nil
}

func (s *Store) write(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, StorageKey, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Subscribe returns a channel signalled after every change, and a function
// to detach it. Signals coalesce: a slow reader sees one pending signal.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan struct{}, 1)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if c, ok := s.subscribers[id]; ok {
				close(c)
				delete(s.subscribers, id)
			}
		})
	}
}

func (s *Store) broadcast() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch polls for commits made by other processes and broadcasts them to
// subscribers until ctx is done.
func (s *Store) Watch(ctx context.Context, interval time.Duration) error {
	last, err := s.dataVersion(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			version, err := s.dataVersion(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Debug("History watch poll failed", "error", err)
				continue
			}
			if version != last {
				last = version
				slog.Debug("History changed externally", "data_version", version)
				s.broadcast()
			}
		}
	}
}

func (s *Store) dataVersion(ctx context.Context) (int64, error) {
	var version int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("query data_version: %w", err)
	}
	return version, nil
}
