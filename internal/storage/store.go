// Package storage implements the local persistence engine for SafeDraft.
//
// It uses SQLite (modernc.org/sqlite, pure Go) to store draft sessions,
// monitoring rules, application settings, and the hierarchical notebook.
// All mutating operations are serialized by a single mutex around the
// database handle and notify registered observers after commit, so UI
// layers always refresh to a state at least as new as the one that
// triggered the notification.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// TimeLayout is the timestamp format used in every table. It is UTC and
// fixed-width, so lexicographic order matches chronological order.
const TimeLayout = "2006-01-02 15:04:05.000000"

// Now returns the current time formatted for SQLite.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp produced by Now.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// defaultRules is seeded into an empty triggers_v2 table on first run.
var defaultRules = []struct {
	ruleType string
	value    string
}{
	{"title", "ChatGPT"},
	{"title", "Claude"},
	{"title", "DeepSeek"},
	{"process", "winword.exe"},
	{"process", "wps.exe"},
	{"process", "notepad.exe"},
	{"process", "feishu.exe"},
}

// Config holds storage configuration.
type Config struct {
	DataDir string
	DBName  string
}

// DefaultConfig returns the default configuration: a safedraft.db file
// under ~/.safedraft.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".safedraft"),
		DBName:  "safedraft.db",
	}
}

// Store is the local persistence engine backed by SQLite.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string

	obsMu     sync.Mutex
	observers map[int]func()
	nextObsID int
}

// Open creates the data directory if needed, opens SQLite with WAL mode,
// and runs the idempotent schema migration.
func Open(cfg Config) (*Store, error) {
	if cfg.DataDir == "" || cfg.DBName == "" {
		def := DefaultConfig()
		if cfg.DataDir == "" {
			cfg.DataDir = def.DataDir
		}
		if cfg.DBName == "" {
			cfg.DBName = def.DBName
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	s := &Store{
		path:      filepath.Join(cfg.DataDir, cfg.DBName),
		observers: make(map[int]func()),
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// open dials the database at s.path and runs migrations. Callers must
// hold no lock; used by Open and Reopen.
func (s *Store) open() error {
	db, err := openDB("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("storage: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return fmt.Errorf("storage: pragma %q: %w", p, err)
		}
	}

	s.mu.Lock()
	s.db = db
	s.mu.Unlock()

	if err := s.migrate(); err != nil {
		db.Close()
		return fmt.Errorf("storage: migration: %w", err)
	}
	return nil
}

// Close closes the underlying database connection. The closed handle
// stays in place, so accessors called afterwards fail with
// database/sql's closed-handle error rather than panicking; Reopen
// installs a fresh handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Reopen re-dials the database at the same path. Used by the whole-file
// sync path after the database file has been swapped on disk.
func (s *Store) Reopen() error {
	return s.open()
}

// Ping runs a trivial read query, verifying that the file behind the
// handle is a usable SafeDraft database.
func (s *Store) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := s.db.QueryRow(`SELECT count(*) FROM drafts`).Scan(&n); err != nil {
		return fmt.Errorf("storage: ping: %w", err)
	}
	return nil
}

// Path returns the absolute path of the database file.
func (s *Store) Path() string {
	return s.path
}

// ─── Migration ───────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema := `
		CREATE TABLE IF NOT EXISTS drafts (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			content         TEXT,
			created_at      TEXT,
			last_updated_at TEXT
		);

		CREATE TABLE IF NOT EXISTS triggers_v2 (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_type TEXT,
			value     TEXT,
			enabled   INTEGER DEFAULT 1,
			UNIQUE(rule_type, value)
		);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS folders (
			uuid       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS notes (
			uuid            TEXT PRIMARY KEY,
			folder_uuid     TEXT NOT NULL DEFAULT '',
			title           TEXT NOT NULL DEFAULT '',
			content         TEXT NOT NULL DEFAULT '',
			is_deleted      INTEGER NOT NULL DEFAULT 0,
			updated_at      TEXT NOT NULL,
			source_draft_id INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_drafts_updated ON drafts(last_updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_notes_folder   ON notes(folder_uuid);
		CREATE INDEX IF NOT EXISTS idx_notes_updated  ON notes(updated_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	var ruleCount int
	if err := s.db.QueryRow(`SELECT count(*) FROM triggers_v2`).Scan(&ruleCount); err != nil {
		return err
	}
	if ruleCount == 0 {
		for _, r := range defaultRules {
			if _, err := s.db.Exec(
				`INSERT OR IGNORE INTO triggers_v2 (rule_type, value, enabled) VALUES (?, ?, 1)`,
				r.ruleType, r.value,
			); err != nil {
				return err
			}
		}
	}

	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, "theme", "Deep",
	); err != nil {
		return err
	}
	return nil
}

// ─── Settings ────────────────────────────────────────────────────────────────

// Setting returns the value for key, or def when the key is absent.
func (s *Store) Setting(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err != nil {
		return def
	}
	return v
}

// SetSetting stores or replaces a key/value pair.
func (s *Store) SetSetting(key, value string) error {
	s.mu.Lock()
	_, err := s.db.Exec(`REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("storage: set setting %q: %w", key, err)
	}
	return nil
}

// ─── Observers ───────────────────────────────────────────────────────────────

// AddObserver registers fn to run after every committed mutation and
// returns an unsubscribe function. Observers run synchronously on the
// mutating goroutine, after the store lock has been released, so
// callbacks may call back into the store.
func (s *Store) AddObserver(fn func()) func() {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// notify fans out to observers. Must be called without s.mu held.
func (s *Store) notify() {
	s.obsMu.Lock()
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
