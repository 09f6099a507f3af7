// Package syncer pushes local mutations to a remote analytical store
// and merges remote rows back. Drafts are content-addressed for
// idempotent re-push; folders and notes merge last-writer-wins on
// updated_at.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"safedraft/internal/storage"
)

// DraftRow is a draft as stored remotely, keyed by DraftKey.
type DraftRow struct {
	Key           string
	Content       string
	CreatedAt     string
	LastUpdatedAt string
}

// FolderRow mirrors a local folder, tombstones included.
type FolderRow struct {
	UUID      string
	Name      string
	IsDeleted bool
	UpdatedAt string
}

// NoteRow mirrors a local note, tombstones included.
type NoteRow struct {
	UUID       string
	FolderUUID string
	Title      string
	Content    string
	IsDeleted  bool
	UpdatedAt  string
}

// DraftKey derives the deterministic remote identifier for a draft from
// its creation timestamp and content. Re-pushing the same logical draft
// always produces the same key, so a replace-on-conflict remote merges
// it into one row. Two drafts created at the same instant with
// identical content collide and merge; accepted for this domain.
func DraftKey(createdAt, content string) string {
	sum := sha256.Sum256([]byte(createdAt + "\n" + content))
	return hex.EncodeToString(sum[:])
}

func toDraftRow(d storage.Draft) DraftRow {
	return DraftRow{
		Key:           DraftKey(d.CreatedAt, d.Content),
		Content:       d.Content,
		CreatedAt:     d.CreatedAt,
		LastUpdatedAt: d.LastUpdatedAt,
	}
}

func toFolderRow(f storage.Folder) FolderRow {
	return FolderRow{UUID: f.UUID, Name: f.Name, IsDeleted: f.IsDeleted, UpdatedAt: f.UpdatedAt}
}

func toNoteRow(n storage.Note) NoteRow {
	return NoteRow{
		UUID:       n.UUID,
		FolderUUID: n.FolderUUID,
		Title:      n.Title,
		Content:    n.Content,
		IsDeleted:  n.IsDeleted,
		UpdatedAt:  n.UpdatedAt,
	}
}

// Remote is the analytical store the coordinator syncs against. The
// production implementation is ClickHouse; tests use an in-memory fake.
type Remote interface {
	EnsureSchema(ctx context.Context) error
	UpsertDrafts(ctx context.Context, rows []DraftRow) error
	UpsertFolders(ctx context.Context, rows []FolderRow) error
	UpsertNotes(ctx context.Context, rows []NoteRow) error
	FetchDrafts(ctx context.Context) ([]DraftRow, error)
	FetchFolders(ctx context.Context) ([]FolderRow, error)
	FetchNotes(ctx context.Context) ([]NoteRow, error)
	Close() error
}
