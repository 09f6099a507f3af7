package storage_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"safedraft/internal/storage"
)

// ─── Folders ─────────────────────────────────────────────────────────────────

func TestCreateAndRenameFolder(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateFolder("Work")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if id == "" {
		t.Fatal("empty folder uuid")
	}

	if err := s.RenameFolder(id, "Work Stuff"); err != nil {
		t.Fatalf("RenameFolder: %v", err)
	}
	folders, err := s.Folders()
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 || folders[0].Name != "Work Stuff" {
		t.Errorf("folders = %+v", folders)
	}
}

func TestDeleteFolder_CascadeTrashesNotes(t *testing.T) {
	s := newTestStore(t)

	f, err := s.CreateFolder("Doomed")
	if err != nil {
		t.Fatal(err)
	}
	n1, err := s.CreateNote(f, "a", "content a")
	if err != nil {
		t.Fatal(err)
	}
	outside, err := s.CreateNote("", "outside", "stays")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteFolder(f, true); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	folders, _ := s.Folders()
	if len(folders) != 0 {
		t.Errorf("deleted folder still listed: %+v", folders)
	}

	trash, _ := s.DeletedNotes()
	if len(trash) != 1 || trash[0].UUID != n1 {
		t.Errorf("trash = %+v, want the cascaded note", trash)
	}

	live, _ := s.Notes("", "")
	if len(live) != 1 || live[0].UUID != outside {
		t.Errorf("live notes = %+v, want only the unfiled one", live)
	}
}

func TestDeleteFolder_OrphanMovesNotesToUnfiled(t *testing.T) {
	s := newTestStore(t)

	f, err := s.CreateFolder("Shelf")
	if err != nil {
		t.Fatal(err)
	}
	n, err := s.CreateNote(f, "kept", "survives")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteFolder(f, false); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	got, err := s.NoteByUUID(n)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("note vanished")
	}
	if got.IsDeleted {
		t.Error("non-cascade delete trashed the note")
	}
	if got.FolderUUID != "" {
		t.Errorf("note folder = %q, want unfiled", got.FolderUUID)
	}
}

// ─── Notes ───────────────────────────────────────────────────────────────────

func TestNotes_FolderAndKeywordFilters(t *testing.T) {
	s := newTestStore(t)

	f, _ := s.CreateFolder("Recipes")
	if _, err := s.CreateNote(f, "Soup", "tomato soup"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateNote(f, "Bread", "rye loaf"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateNote("", "Soup budget", "unrelated"); err != nil {
		t.Fatal(err)
	}

	inFolder, err := s.Notes(f, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(inFolder) != 2 {
		t.Errorf("folder filter count = %d, want 2", len(inFolder))
	}

	soup, err := s.Notes("", "SOUP")
	if err != nil {
		t.Fatal(err)
	}
	if len(soup) != 2 {
		t.Errorf("keyword matches = %d, want 2 (title and content, any folder)", len(soup))
	}

	both, err := s.Notes(f, "soup")
	if err != nil {
		t.Fatal(err)
	}
	if len(both) != 1 || both[0].Title != "Soup" {
		t.Errorf("combined filter = %+v", both)
	}
}

func TestUpdateNote(t *testing.T) {
	s := newTestStore(t)

	id, _ := s.CreateNote("", "draft", "v1")
	if err := s.UpdateNote(id, "final", "v2"); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	n, _ := s.NoteByUUID(id)
	if n.Title != "final" || n.Content != "v2" {
		t.Errorf("note = %+v", n)
	}
}

func TestNoteFromDraft(t *testing.T) {
	s := newTestStore(t)

	draftID, err := s.SaveContentForced("  \nImportant idea\nwith a second line")
	if err != nil {
		t.Fatal(err)
	}
	f, _ := s.CreateFolder("Ideas")

	noteID, err := s.NoteFromDraft(draftID, f)
	if err != nil {
		t.Fatalf("NoteFromDraft: %v", err)
	}
	n, _ := s.NoteByUUID(noteID)
	if n.Title != "Important idea" {
		t.Errorf("title = %q, want first non-empty line", n.Title)
	}
	if n.FolderUUID != f {
		t.Errorf("folder = %q, want %q", n.FolderUUID, f)
	}
	if n.SourceDraftID == nil || *n.SourceDraftID != draftID {
		t.Errorf("source draft backlink = %v, want %d", n.SourceDraftID, draftID)
	}
}

func TestNoteFromDraft_TitleTruncatesOnRuneBoundary(t *testing.T) {
	s := newTestStore(t)

	// 70 three-byte runes: a byte-index cut at 60 would land mid-rune.
	long := strings.Repeat("草", 70)
	draftID, err := s.SaveContentForced(long)
	if err != nil {
		t.Fatal(err)
	}

	noteID, err := s.NoteFromDraft(draftID, "")
	if err != nil {
		t.Fatalf("NoteFromDraft: %v", err)
	}
	n, _ := s.NoteByUUID(noteID)
	if !utf8.ValidString(n.Title) {
		t.Fatalf("title is not valid UTF-8: %q", n.Title)
	}
	if got := utf8.RuneCountInString(n.Title); got != 60 {
		t.Errorf("title runes = %d, want 60", got)
	}
}

func TestNoteFromDraft_MissingDraft(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.NoteFromDraft(999, ""); err == nil {
		t.Fatal("expected error for missing draft")
	}
}

// ─── Trash lifecycle ─────────────────────────────────────────────────────────

func TestDeleteRestoreNote(t *testing.T) {
	s := newTestStore(t)

	f, _ := s.CreateFolder("Home")
	id, _ := s.CreateNote(f, "gone then back", "x")

	if err := s.DeleteNote(id); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	live, _ := s.Notes("", "")
	if len(live) != 0 {
		t.Fatalf("trashed note still live: %+v", live)
	}

	if err := s.RestoreNote(id); err != nil {
		t.Fatalf("RestoreNote: %v", err)
	}
	n, _ := s.NoteByUUID(id)
	if n.IsDeleted {
		t.Error("note still trashed after restore")
	}
	if n.FolderUUID != f {
		t.Errorf("restored folder = %q, want original %q", n.FolderUUID, f)
	}
}

func TestRestoreNote_OriginalFolderGoneMeansUnfiled(t *testing.T) {
	s := newTestStore(t)

	f, _ := s.CreateFolder("Ephemeral")
	id, _ := s.CreateNote(f, "orphan", "x")

	if err := s.DeleteNote(id); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteFolder(f, false); err != nil {
		t.Fatal(err)
	}

	if err := s.RestoreNote(id); err != nil {
		t.Fatalf("RestoreNote: %v", err)
	}
	n, _ := s.NoteByUUID(id)
	if n.FolderUUID != "" {
		t.Errorf("restored into deleted folder %q, want unfiled", n.FolderUUID)
	}
}

func TestHardDeleteNote(t *testing.T) {
	s := newTestStore(t)

	id, _ := s.CreateNote("", "perm", "x")
	if err := s.DeleteNote(id); err != nil {
		t.Fatal(err)
	}
	if err := s.HardDeleteNote(id); err != nil {
		t.Fatalf("HardDeleteNote: %v", err)
	}
	n, err := s.NoteByUUID(id)
	if err != nil {
		t.Fatal(err)
	}
	if n != nil {
		t.Errorf("note survived hard delete: %+v", n)
	}
}

// ─── Merge ───────────────────────────────────────────────────────────────────

func TestMergeNote_LastWriterWins(t *testing.T) {
	s := newTestStore(t)

	id, _ := s.CreateNote("", "local", "local body")
	local, _ := s.NoteByUUID(id)

	// Older remote copy loses.
	stale := storage.Note{
		UUID:      id,
		Title:     "stale",
		Content:   "stale body",
		UpdatedAt: "2020-01-01 00:00:00.000000",
	}
	changed, err := s.MergeNote(stale)
	if err != nil {
		t.Fatalf("MergeNote stale: %v", err)
	}
	if changed {
		t.Error("stale remote overwrote newer local")
	}

	// Newer remote copy wins.
	fresh := storage.Note{
		UUID:      id,
		Title:     "fresh",
		Content:   "fresh body",
		UpdatedAt: "2099-01-01 00:00:00.000000",
	}
	changed, err = s.MergeNote(fresh)
	if err != nil {
		t.Fatalf("MergeNote fresh: %v", err)
	}
	if !changed {
		t.Error("newer remote did not apply")
	}
	n, _ := s.NoteByUUID(id)
	if n.Title != "fresh" || n.UpdatedAt != fresh.UpdatedAt {
		t.Errorf("merged note = %+v", n)
	}
	_ = local
}

func TestMergeNote_InsertsUnknownUUID(t *testing.T) {
	s := newTestStore(t)

	remote := storage.Note{
		UUID:      "11111111-2222-3333-4444-555555555555",
		Title:     "imported",
		Content:   "from remote",
		UpdatedAt: "2026-01-01 12:00:00.000000",
	}
	changed, err := s.MergeNote(remote)
	if err != nil {
		t.Fatalf("MergeNote: %v", err)
	}
	if !changed {
		t.Fatal("insert of unknown note reported no change")
	}
	n, _ := s.NoteByUUID(remote.UUID)
	if n == nil || n.Title != "imported" {
		t.Errorf("note = %+v", n)
	}
}

func TestMergeNote_RemoteTombstoneTrashesLocal(t *testing.T) {
	s := newTestStore(t)

	id, _ := s.CreateNote("", "doomed remotely", "x")
	tomb := storage.Note{
		UUID:      id,
		Title:     "doomed remotely",
		Content:   "x",
		IsDeleted: true,
		UpdatedAt: "2099-01-01 00:00:00.000000",
	}
	if _, err := s.MergeNote(tomb); err != nil {
		t.Fatal(err)
	}
	live, _ := s.Notes("", "")
	if len(live) != 0 {
		t.Errorf("tombstoned note still live: %+v", live)
	}
}

func TestMergeFolder_LastWriterWins(t *testing.T) {
	s := newTestStore(t)

	id, _ := s.CreateFolder("Local Name")
	fresh := storage.Folder{
		UUID:      id,
		Name:      "Remote Name",
		UpdatedAt: "2099-01-01 00:00:00.000000",
	}
	changed, err := s.MergeFolder(fresh)
	if err != nil {
		t.Fatalf("MergeFolder: %v", err)
	}
	if !changed {
		t.Fatal("newer remote folder did not apply")
	}
	folders, _ := s.Folders()
	if len(folders) != 1 || folders[0].Name != "Remote Name" {
		t.Errorf("folders = %+v", folders)
	}
}
