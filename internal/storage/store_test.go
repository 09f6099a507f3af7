package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"safedraft/internal/storage"
)

// newTestStore creates a Store backed by a temp directory for isolation.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(storage.Config{DataDir: t.TempDir(), DBName: "safedraft.db"})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ─── Open / Initialization ──────────────────────────────────────────────────

func TestOpen_CreatesDBFile(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.Open(storage.Config{DataDir: dir, DBName: "safedraft.db"})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, "safedraft.db")); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if got, want := s.Path(), filepath.Join(dir, "safedraft.db"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestOpen_SeedsDefaultRules(t *testing.T) {
	s := newTestStore(t)

	rules, err := s.Rules()
	if err != nil {
		t.Fatalf("Rules() error: %v", err)
	}
	if len(rules) != 7 {
		t.Fatalf("seeded rule count = %d, want 7", len(rules))
	}
	for _, r := range rules {
		if !r.Enabled {
			t.Errorf("seeded rule %q/%q not enabled", r.RuleType, r.Value)
		}
	}
}

func TestOpen_IdempotentReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := storage.Config{DataDir: dir, DBName: "safedraft.db"}

	s1, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	id, err := s1.SaveContent("hello", 0)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	s1.Close()

	// Second open must not wipe data or re-run seeding destructively.
	s2, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	drafts, err := s2.History("")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != id {
		t.Fatalf("drafts after reopen = %+v, want single row id %d", drafts, id)
	}

	// Deleting a seeded rule must survive reopen too.
	rules, _ := s2.Rules()
	if err := s2.DeleteRule(rules[0].ID); err != nil {
		t.Fatalf("delete rule: %v", err)
	}
	s2.Close()

	s3, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("third open: %v", err)
	}
	defer s3.Close()
	rules, _ = s3.Rules()
	if len(rules) != 6 {
		t.Errorf("rule count after reopen = %d, want 6 (seeding must not re-add)", len(rules))
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestClosedStore_AccessorsErrorInsteadOfPanic(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveContentForced("kept"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := s.Ping(); err == nil {
		t.Error("Ping on closed store returned nil")
	}
	if _, err := s.History(""); err == nil {
		t.Error("History on closed store returned nil")
	}
	if _, err := s.SaveContentForced("lost"); err == nil {
		t.Error("save on closed store returned nil")
	}
	if got := s.Setting("theme", "fallback"); got != "fallback" {
		t.Errorf("Setting on closed store = %q, want the default", got)
	}

	// Reopen restores the store, data intact.
	if err := s.Reopen(); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if err := s.Ping(); err != nil {
		t.Fatalf("Ping after Reopen: %v", err)
	}
	drafts, err := s.History("")
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 1 || drafts[0].Content != "kept" {
		t.Errorf("drafts after Reopen = %+v", drafts)
	}
}

// ─── Settings ────────────────────────────────────────────────────────────────

func TestSettings_DefaultAndRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if got := s.Setting("theme", "x"); got != "Deep" {
		t.Errorf("seeded theme = %q, want %q", got, "Deep")
	}
	if got := s.Setting("missing", "fallback"); got != "fallback" {
		t.Errorf("missing setting = %q, want fallback", got)
	}

	if err := s.SetSetting("font_size", "16"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if got := s.Setting("font_size", ""); got != "16" {
		t.Errorf("font_size = %q, want 16", got)
	}

	// Overwrite.
	if err := s.SetSetting("font_size", "18"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	if got := s.Setting("font_size", ""); got != "18" {
		t.Errorf("font_size after overwrite = %q, want 18", got)
	}
}

// ─── Observers ───────────────────────────────────────────────────────────────

func TestAddObserver_NotifiesOnMutation(t *testing.T) {
	s := newTestStore(t)

	calls := 0
	unsubscribe := s.AddObserver(func() { calls++ })

	if _, err := s.SaveContent("draft", 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if calls != 1 {
		t.Fatalf("observer calls after save = %d, want 1", calls)
	}

	// Reads must not notify.
	if _, err := s.History(""); err != nil {
		t.Fatalf("history: %v", err)
	}
	if calls != 1 {
		t.Fatalf("observer calls after read = %d, want 1", calls)
	}

	unsubscribe()
	if _, err := s.SaveContent("another", 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if calls != 1 {
		t.Errorf("observer called after unsubscribe, calls = %d", calls)
	}
}

func TestAddObserver_CallbackMayUseStore(t *testing.T) {
	s := newTestStore(t)

	var seen int
	s.AddObserver(func() {
		drafts, err := s.History("")
		if err != nil {
			t.Errorf("history inside observer: %v", err)
		}
		seen = len(drafts)
	})

	if _, err := s.SaveContent("reentrant", 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if seen != 1 {
		t.Errorf("observer saw %d drafts, want 1", seen)
	}
}
