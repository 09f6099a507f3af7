package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// Draft is one row of the draft history: a contiguous typing session or
// an explicit snapshot/archive point. Content is never stored empty.
type Draft struct {
	ID            int64  `json:"id"`
	Content       string `json:"content"`
	CreatedAt     string `json:"created_at"`
	LastUpdatedAt string `json:"last_updated_at"`
}

// SaveContent is the keystroke-driven autosave. A sessionID of 0 inserts
// a new row and returns its id; the caller passes that id back on every
// subsequent autosave to keep updating the same row. Blank content is a
// no-op and returns 0.
//
// Session identity is deliberately owned by the caller: each editor view
// keeps its own id, so two open windows never corrupt each other's rows.
func (s *Store) SaveContent(content string, sessionID int64) (int64, error) {
	if strings.TrimSpace(content) == "" {
		return 0, nil
	}
	now := Now()

	s.mu.Lock()
	var (
		id  int64
		err error
	)
	if sessionID > 0 {
		_, err = s.db.Exec(
			`UPDATE drafts SET content = ?, last_updated_at = ? WHERE id = ?`,
			content, now, sessionID,
		)
		id = sessionID
	} else {
		var res sql.Result
		res, err = s.db.Exec(
			`INSERT INTO drafts (content, created_at, last_updated_at) VALUES (?, ?, ?)`,
			content, now, now,
		)
		if err == nil {
			id, err = res.LastInsertId()
		}
	}
	s.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("storage: save content: %w", err)
	}
	s.notify()
	return id, nil
}

// SaveContentForced always inserts a new row, regardless of any live
// session: "archive and clear". Blank content is a no-op.
func (s *Store) SaveContentForced(content string) (int64, error) {
	return s.insertDraft(content)
}

// SaveSnapshot inserts a checkpoint row without touching the caller's
// live session: later autosaves keep updating the old row, so the
// snapshot stays a separate branch-off point. Blank content is a no-op.
func (s *Store) SaveSnapshot(content string) (int64, error) {
	return s.insertDraft(content)
}

func (s *Store) insertDraft(content string) (int64, error) {
	if strings.TrimSpace(content) == "" {
		return 0, nil
	}
	now := Now()

	s.mu.Lock()
	res, err := s.db.Exec(
		`INSERT INTO drafts (content, created_at, last_updated_at) VALUES (?, ?, ?)`,
		content, now, now,
	)
	var id int64
	if err == nil {
		id, err = res.LastInsertId()
	}
	s.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("storage: insert draft: %w", err)
	}
	s.notify()
	return id, nil
}

// History returns all drafts ordered by last_updated_at descending.
// A non-empty keyword filters by case-insensitive substring on content.
func (s *Store) History(keyword string) ([]Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, content, created_at, last_updated_at FROM drafts`
	args := []any{}
	if strings.TrimSpace(keyword) != "" {
		query += ` WHERE lower(content) LIKE ?`
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(keyword))+"%")
	}
	query += ` ORDER BY last_updated_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: history: %w", err)
	}
	defer rows.Close()

	var result []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.Content, &d.CreatedAt, &d.LastUpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// HistoryByCreation returns all drafts ordered by created_at descending.
// Unlike History, a later autosave into an old session does not move the
// row; the export file keeps sessions in the order they were started.
func (s *Store) HistoryByCreation() ([]Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, content, created_at, last_updated_at FROM drafts ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: history by creation: %w", err)
	}
	defer rows.Close()

	var result []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.Content, &d.CreatedAt, &d.LastUpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// DeleteDraft permanently removes one draft row.
func (s *Store) DeleteDraft(id int64) error {
	s.mu.Lock()
	_, err := s.db.Exec(`DELETE FROM drafts WHERE id = ?`, id)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("storage: delete draft: %w", err)
	}
	s.notify()
	return nil
}

// DeduplicateDrafts removes all but the highest-id row for each distinct
// content value and returns the number of rows removed. Maintenance
// operation, not part of the autosave hot path.
func (s *Store) DeduplicateDrafts() (int, error) {
	s.mu.Lock()
	res, err := s.db.Exec(
		`DELETE FROM drafts WHERE id NOT IN (SELECT MAX(id) FROM drafts GROUP BY content)`,
	)
	var removed int64
	if err == nil {
		removed, err = res.RowsAffected()
	}
	s.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("storage: deduplicate drafts: %w", err)
	}
	if removed > 0 {
		s.notify()
	}
	return int(removed), nil
}

// InsertDraftIfAbsent inserts a remote draft row unless a local row with
// the same (created_at, content) pair already exists. Returns whether a
// row was inserted. Used by pull-and-merge; timestamps are preserved.
func (s *Store) InsertDraftIfAbsent(d Draft) (bool, error) {
	s.mu.Lock()
	var existing int
	err := s.db.QueryRow(
		`SELECT count(*) FROM drafts WHERE created_at = ? AND content = ?`,
		d.CreatedAt, d.Content,
	).Scan(&existing)
	if err == nil && existing == 0 {
		_, err = s.db.Exec(
			`INSERT INTO drafts (content, created_at, last_updated_at) VALUES (?, ?, ?)`,
			d.Content, d.CreatedAt, d.LastUpdatedAt,
		)
		s.mu.Unlock()
		if err != nil {
			return false, fmt.Errorf("storage: merge draft: %w", err)
		}
		s.notify()
		return true, nil
	}
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("storage: merge draft: %w", err)
	}
	return false, nil
}
