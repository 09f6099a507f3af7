package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Folder groups notes. Deletion is soft: a deleted folder stays in the
// table so remote replicas can converge on its tombstone.
type Folder struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	IsDeleted bool   `json:"is_deleted"`
	UpdatedAt string `json:"updated_at"`
}

// Note is one notebook entry. An empty FolderUUID means unfiled.
// SourceDraftID links back to the draft a note was promoted from.
type Note struct {
	UUID          string `json:"uuid"`
	FolderUUID    string `json:"folder_uuid"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	IsDeleted     bool   `json:"is_deleted"`
	UpdatedAt     string `json:"updated_at"`
	SourceDraftID *int64 `json:"source_draft_id,omitempty"`
}

// ─── Folders ─────────────────────────────────────────────────────────────────

// CreateFolder inserts a new folder and returns its uuid.
func (s *Store) CreateFolder(name string) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	_, err := s.db.Exec(
		`INSERT INTO folders (uuid, name, is_deleted, updated_at) VALUES (?, ?, 0, ?)`,
		id, name, Now(),
	)
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("storage: create folder: %w", err)
	}
	s.notify()
	return id, nil
}

// RenameFolder updates a folder's name.
func (s *Store) RenameFolder(folderUUID, name string) error {
	s.mu.Lock()
	_, err := s.db.Exec(
		`UPDATE folders SET name = ?, updated_at = ? WHERE uuid = ?`,
		name, Now(), folderUUID,
	)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("storage: rename folder: %w", err)
	}
	s.notify()
	return nil
}

// Folders returns all non-deleted folders ordered by name.
func (s *Store) Folders() ([]Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryFolders(`SELECT uuid, name, is_deleted, updated_at FROM folders WHERE is_deleted = 0 ORDER BY name`)
}

// AllFolders returns every folder including tombstones. Sync support.
func (s *Store) AllFolders() ([]Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryFolders(`SELECT uuid, name, is_deleted, updated_at FROM folders ORDER BY name`)
}

func (s *Store) queryFolders(query string, args ...any) ([]Folder, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: folders: %w", err)
	}
	defer rows.Close()

	var result []Folder
	for rows.Next() {
		var (
			f       Folder
			deleted int
		)
		if err := rows.Scan(&f.UUID, &f.Name, &deleted, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.IsDeleted = deleted != 0
		result = append(result, f)
	}
	return result, rows.Err()
}

// DeleteFolder soft-deletes a folder. With cascade, every child note is
// soft-deleted too; without it, child notes are reassigned to unfiled.
// Never both.
func (s *Store) DeleteFolder(folderUUID string, cascade bool) error {
	now := Now()

	s.mu.Lock()
	err := func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(
			`UPDATE folders SET is_deleted = 1, updated_at = ? WHERE uuid = ?`,
			now, folderUUID,
		); err != nil {
			return err
		}

		if cascade {
			_, err = tx.Exec(
				`UPDATE notes SET is_deleted = 1, updated_at = ? WHERE folder_uuid = ? AND is_deleted = 0`,
				now, folderUUID,
			)
		} else {
			_, err = tx.Exec(
				`UPDATE notes SET folder_uuid = '', updated_at = ? WHERE folder_uuid = ?`,
				now, folderUUID,
			)
		}
		if err != nil {
			return err
		}
		return tx.Commit()
	}()
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("storage: delete folder: %w", err)
	}
	s.notify()
	return nil
}

// ─── Notes ───────────────────────────────────────────────────────────────────

// CreateNote inserts a new note and returns its uuid. folderUUID may be
// empty for an unfiled note.
func (s *Store) CreateNote(folderUUID, title, content string) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	_, err := s.db.Exec(
		`INSERT INTO notes (uuid, folder_uuid, title, content, is_deleted, updated_at) VALUES (?, ?, ?, ?, 0, ?)`,
		id, folderUUID, title, content, Now(),
	)
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("storage: create note: %w", err)
	}
	s.notify()
	return id, nil
}

// NoteFromDraft promotes a draft row into a note, keeping a backlink to
// the source draft. The first line of the draft becomes the title.
func (s *Store) NoteFromDraft(draftID int64, folderUUID string) (string, error) {
	s.mu.Lock()
	var content string
	err := s.db.QueryRow(`SELECT content FROM drafts WHERE id = ?`, draftID).Scan(&content)
	if err != nil {
		s.mu.Unlock()
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("storage: draft %d not found", draftID)
		}
		return "", fmt.Errorf("storage: note from draft: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO notes (uuid, folder_uuid, title, content, is_deleted, updated_at, source_draft_id)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id, folderUUID, draftTitle(content), content, Now(), draftID,
	)
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("storage: note from draft: %w", err)
	}
	s.notify()
	return id, nil
}

// draftTitle derives a display title from draft content: the first
// non-empty line, truncated.
func draftTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > 60 {
			return string(runes[:60])
		}
		return line
	}
	return "Untitled"
}

// UpdateNote replaces a note's title and content.
func (s *Store) UpdateNote(noteUUID, title, content string) error {
	s.mu.Lock()
	_, err := s.db.Exec(
		`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE uuid = ?`,
		title, content, Now(), noteUUID,
	)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("storage: update note: %w", err)
	}
	s.notify()
	return nil
}

// Notes returns non-deleted notes ordered by updated_at descending.
// An empty folderUUID returns notes from every folder; a non-empty
// keyword filters by case-insensitive substring on title and content.
func (s *Store) Notes(folderUUID, keyword string) ([]Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT uuid, folder_uuid, title, content, is_deleted, updated_at, source_draft_id
	          FROM notes WHERE is_deleted = 0`
	args := []any{}
	if folderUUID != "" {
		query += ` AND folder_uuid = ?`
		args = append(args, folderUUID)
	}
	if kw := strings.TrimSpace(keyword); kw != "" {
		query += ` AND (lower(title) LIKE ? OR lower(content) LIKE ?)`
		pat := "%" + strings.ToLower(kw) + "%"
		args = append(args, pat, pat)
	}
	query += ` ORDER BY updated_at DESC`

	return s.queryNotes(query, args...)
}

// AllNotes returns every note including trashed ones. Sync support.
func (s *Store) AllNotes() ([]Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryNotes(
		`SELECT uuid, folder_uuid, title, content, is_deleted, updated_at, source_draft_id
		 FROM notes ORDER BY updated_at DESC`,
	)
}

// DeletedNotes returns the trash, newest first.
func (s *Store) DeletedNotes() ([]Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryNotes(
		`SELECT uuid, folder_uuid, title, content, is_deleted, updated_at, source_draft_id
		 FROM notes WHERE is_deleted = 1 ORDER BY updated_at DESC`,
	)
}

// NoteByUUID fetches a single note, or nil when it does not exist.
func (s *Store) NoteByUUID(noteUUID string) (*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.queryNotes(
		`SELECT uuid, folder_uuid, title, content, is_deleted, updated_at, source_draft_id
		 FROM notes WHERE uuid = ?`, noteUUID,
	)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return &notes[0], nil
}

func (s *Store) queryNotes(query string, args ...any) ([]Note, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: notes: %w", err)
	}
	defer rows.Close()

	var result []Note
	for rows.Next() {
		var (
			n       Note
			deleted int
		)
		if err := rows.Scan(&n.UUID, &n.FolderUUID, &n.Title, &n.Content, &deleted, &n.UpdatedAt, &n.SourceDraftID); err != nil {
			return nil, err
		}
		n.IsDeleted = deleted != 0
		result = append(result, n)
	}
	return result, rows.Err()
}

// DeleteNote moves a note to the trash. Recoverable via RestoreNote.
func (s *Store) DeleteNote(noteUUID string) error {
	s.mu.Lock()
	_, err := s.db.Exec(
		`UPDATE notes SET is_deleted = 1, updated_at = ? WHERE uuid = ?`,
		Now(), noteUUID,
	)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("storage: delete note: %w", err)
	}
	s.notify()
	return nil
}

// RestoreNote brings a note back from the trash. If its original folder
// was deleted in the meantime, the note is restored as unfiled rather
// than resurrected into a ghost folder.
func (s *Store) RestoreNote(noteUUID string) error {
	s.mu.Lock()
	err := func() error {
		var folderUUID string
		if err := s.db.QueryRow(
			`SELECT folder_uuid FROM notes WHERE uuid = ?`, noteUUID,
		).Scan(&folderUUID); err != nil {
			return err
		}

		if folderUUID != "" {
			var alive int
			err := s.db.QueryRow(
				`SELECT count(*) FROM folders WHERE uuid = ? AND is_deleted = 0`, folderUUID,
			).Scan(&alive)
			if err != nil {
				return err
			}
			if alive == 0 {
				folderUUID = ""
			}
		}

		_, err := s.db.Exec(
			`UPDATE notes SET is_deleted = 0, folder_uuid = ?, updated_at = ? WHERE uuid = ?`,
			folderUUID, Now(), noteUUID,
		)
		return err
	}()
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("storage: restore note: %w", err)
	}
	s.notify()
	return nil
}

// HardDeleteNote permanently removes a note. Only reachable from the
// trash view; there is no undo.
func (s *Store) HardDeleteNote(noteUUID string) error {
	s.mu.Lock()
	_, err := s.db.Exec(`DELETE FROM notes WHERE uuid = ?`, noteUUID)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("storage: hard delete note: %w", err)
	}
	s.notify()
	return nil
}

// ─── Merge (pull-and-merge support) ─────────────────────────────────────────

// MergeFolder applies a pulled remote folder with last-writer-wins
// semantics: the remote row replaces the local one only when its
// updated_at is strictly later. Absent folders are inserted. Returns
// whether the local store changed.
func (s *Store) MergeFolder(f Folder) (bool, error) {
	s.mu.Lock()
	changed, err := s.mergeRow(
		`SELECT updated_at FROM folders WHERE uuid = ?`,
		f.UUID, f.UpdatedAt,
		func() error {
			_, err := s.db.Exec(
				`REPLACE INTO folders (uuid, name, is_deleted, updated_at) VALUES (?, ?, ?, ?)`,
				f.UUID, f.Name, boolToInt(f.IsDeleted), f.UpdatedAt,
			)
			return err
		},
	)
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("storage: merge folder: %w", err)
	}
	if changed {
		s.notify()
	}
	return changed, nil
}

// MergeNote applies a pulled remote note, last-writer-wins on updated_at.
func (s *Store) MergeNote(n Note) (bool, error) {
	s.mu.Lock()
	changed, err := s.mergeRow(
		`SELECT updated_at FROM notes WHERE uuid = ?`,
		n.UUID, n.UpdatedAt,
		func() error {
			_, err := s.db.Exec(
				`REPLACE INTO notes (uuid, folder_uuid, title, content, is_deleted, updated_at, source_draft_id)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				n.UUID, n.FolderUUID, n.Title, n.Content, boolToInt(n.IsDeleted), n.UpdatedAt, n.SourceDraftID,
			)
			return err
		},
	)
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("storage: merge note: %w", err)
	}
	if changed {
		s.notify()
	}
	return changed, nil
}

// mergeRow runs the upsert-if-newer decision. Caller holds s.mu.
// Timestamps are compared structurally, not as strings.
func (s *Store) mergeRow(selectQuery, key, remoteUpdatedAt string, replace func() error) (bool, error) {
	var localUpdatedAt string
	err := s.db.QueryRow(selectQuery, key).Scan(&localUpdatedAt)
	switch {
	case err == sql.ErrNoRows:
		return true, replace()
	case err != nil:
		return false, err
	}

	remote, err := ParseTime(remoteUpdatedAt)
	if err != nil {
		return false, fmt.Errorf("bad remote timestamp %q: %w", remoteUpdatedAt, err)
	}
	local, err := ParseTime(localUpdatedAt)
	if err != nil {
		return false, fmt.Errorf("bad local timestamp %q: %w", localUpdatedAt, err)
	}
	if !remote.After(local) {
		return false, nil
	}
	return true, replace()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
