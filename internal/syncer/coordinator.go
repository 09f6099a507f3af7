package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/rs/zerolog"

	"safedraft/internal/storage"
)

// DefaultQuietPeriod is how long autosaves must stay quiet before a
// pending push runs. A new autosave within the window reschedules it,
// so only the last state of a typing burst is ever pushed.
const DefaultQuietPeriod = 5 * time.Second

const backgroundPushTimeout = 30 * time.Second

// Coordinator schedules debounced pushes of local mutations to a Remote
// and performs user-initiated push/pull. Background push failures are
// logged and dropped (at-most-once, best-effort); only the explicit
// PushAll/PullAndMerge calls surface errors to the caller.
type Coordinator struct {
	store  *storage.Store
	remote Remote
	log    zerolog.Logger

	debounced func(func())

	mu          sync.Mutex
	closed      bool
	schemaReady bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithQuietPeriod overrides the debounce window. Tests use short ones.
func WithQuietPeriod(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.debounced = debounce.New(d) }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

// NewCoordinator wires a coordinator over the local store and a remote.
func NewCoordinator(store *storage.Store, remote Remote, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:     store,
		remote:    remote,
		log:       zerolog.Nop(),
		debounced: debounce.New(DefaultQuietPeriod),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotifyDraftSaved schedules a draft push after the quiet period. Safe
// to call from the autosave hot path: it never blocks on the network
// and never returns an error.
func (c *Coordinator) NotifyDraftSaved() {
	c.debounced(func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), backgroundPushTimeout)
		defer cancel()
		if err := c.PushDrafts(ctx); err != nil {
			c.log.Warn().Err(err).Msg("background draft push failed")
		}
	})
}

// ensureSchema runs remote DDL before the first successful push or
// pull. A failure is returned to that attempt only; the next attempt
// retries, so a transient outage never wedges the coordinator.
func (c *Coordinator) ensureSchema(ctx context.Context) error {
	c.mu.Lock()
	ready := c.schemaReady
	c.mu.Unlock()
	if ready {
		return nil
	}
	if err := c.remote.EnsureSchema(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.schemaReady = true
	c.mu.Unlock()
	return nil
}

// PushDrafts pushes every local draft. Idempotent: the content-derived
// key lets the remote merge re-pushed rows.
func (c *Coordinator) PushDrafts(ctx context.Context) error {
	if err := c.ensureSchema(ctx); err != nil {
		return err
	}
	drafts, err := c.store.History("")
	if err != nil {
		return err
	}
	rows := make([]DraftRow, 0, len(drafts))
	for _, d := range drafts {
		rows = append(rows, toDraftRow(d))
	}
	if err := c.remote.UpsertDrafts(ctx, rows); err != nil {
		return err
	}
	c.log.Debug().Int("drafts", len(rows)).Msg("drafts pushed")
	return nil
}

// PushAll pushes drafts, folders, and notes, tombstones included so
// deletions propagate.
func (c *Coordinator) PushAll(ctx context.Context) error {
	if err := c.PushDrafts(ctx); err != nil {
		return err
	}

	folders, err := c.store.AllFolders()
	if err != nil {
		return err
	}
	folderRows := make([]FolderRow, 0, len(folders))
	for _, f := range folders {
		folderRows = append(folderRows, toFolderRow(f))
	}
	if err := c.remote.UpsertFolders(ctx, folderRows); err != nil {
		return err
	}

	notes, err := c.store.AllNotes()
	if err != nil {
		return err
	}
	noteRows := make([]NoteRow, 0, len(notes))
	for _, n := range notes {
		noteRows = append(noteRows, toNoteRow(n))
	}
	if err := c.remote.UpsertNotes(ctx, noteRows); err != nil {
		return err
	}

	c.log.Info().
		Int("folders", len(folderRows)).
		Int("notes", len(noteRows)).
		Msg("full push complete")
	return nil
}

// PullAndMerge fetches remote rows and merges them into the local
// store: drafts are inserted only when their (created_at, content) pair
// is absent locally; folders and notes apply last-writer-wins on
// updated_at. Returns the number of local rows changed.
func (c *Coordinator) PullAndMerge(ctx context.Context) (int, error) {
	if err := c.ensureSchema(ctx); err != nil {
		return 0, err
	}

	changed := 0

	drafts, err := c.remote.FetchDrafts(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range drafts {
		inserted, err := c.store.InsertDraftIfAbsent(storage.Draft{
			Content:       d.Content,
			CreatedAt:     d.CreatedAt,
			LastUpdatedAt: d.LastUpdatedAt,
		})
		if err != nil {
			return changed, err
		}
		if inserted {
			changed++
		}
	}

	folders, err := c.remote.FetchFolders(ctx)
	if err != nil {
		return changed, err
	}
	for _, f := range folders {
		applied, err := c.store.MergeFolder(storage.Folder{
			UUID:      f.UUID,
			Name:      f.Name,
			IsDeleted: f.IsDeleted,
			UpdatedAt: f.UpdatedAt,
		})
		if err != nil {
			return changed, err
		}
		if applied {
			changed++
		}
	}

	notes, err := c.remote.FetchNotes(ctx)
	if err != nil {
		return changed, err
	}
	for _, n := range notes {
		applied, err := c.store.MergeNote(storage.Note{
			UUID:       n.UUID,
			FolderUUID: n.FolderUUID,
			Title:      n.Title,
			Content:    n.Content,
			IsDeleted:  n.IsDeleted,
			UpdatedAt:  n.UpdatedAt,
		})
		if err != nil {
			return changed, err
		}
		if applied {
			changed++
		}
	}

	c.log.Info().Int("changed", changed).Msg("pull merge complete")
	return changed, nil
}

// Close cancels any pending debounced push and closes the remote. A
// push already in flight finishes on its own; one still waiting out the
// quiet period is displaced by a no-op so it never touches a closed
// connection.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.debounced(func() {})

	if c.remote == nil {
		return nil
	}
	if err := c.remote.Close(); err != nil {
		return fmt.Errorf("syncer: close remote: %w", err)
	}
	return nil
}
