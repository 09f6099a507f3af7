// Package filesync is the whole-file snapshot sync path: the entire
// local database file is uploaded to or downloaded from a remote host.
// It is file-granular last-write-wins, so it is mutually exclusive with
// the row-level sync path; the caller picks one strategy.
package filesync

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Transport moves files to and from the remote host. The production
// implementation is SFTP; tests use a local-directory fake.
type Transport interface {
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
	Close() error
}

// Swapper is the slice of the local store the pull path needs to swap
// the database file underneath it safely.
type Swapper interface {
	Path() string
	Close() error
	Reopen() error
	Ping() error
}

// Push uploads the local database file as-is.
func Push(ctx context.Context, t Transport, dbPath, remotePath string) error {
	if err := t.Upload(ctx, dbPath, remotePath); err != nil {
		return fmt.Errorf("filesync: push: %w", err)
	}
	return nil
}

// Pull downloads the remote database file and swaps it in under the
// live store: download to a temp path, close the local handle, move the
// current file to a backup, move the temp file into place, reopen and
// sanity-check. Any failure after the close restores the backup and
// reopens the original, so the local store is never left unusable.
func Pull(ctx context.Context, t Transport, store Swapper, remotePath string, log zerolog.Logger) error {
	livePath := store.Path()
	tempPath := livePath + ".incoming"
	backupPath := livePath + ".bak"

	if err := t.Download(ctx, remotePath, tempPath); err != nil {
		return fmt.Errorf("filesync: pull download: %w", err)
	}
	defer os.Remove(tempPath)

	if err := store.Close(); err != nil {
		return fmt.Errorf("filesync: pull close store: %w", err)
	}

	// Past this point every failure path must leave a working store.
	rollback := func(cause error) error {
		if err := os.Rename(backupPath, livePath); err != nil {
			log.Error().Err(err).Msg("restore backup failed")
		}
		if err := store.Reopen(); err != nil {
			log.Error().Err(err).Msg("reopen after rollback failed")
		}
		return fmt.Errorf("filesync: pull: %w (rolled back)", cause)
	}

	if err := os.Rename(livePath, backupPath); err != nil {
		if reopenErr := store.Reopen(); reopenErr != nil {
			log.Error().Err(reopenErr).Msg("reopen after failed backup rename")
		}
		return fmt.Errorf("filesync: pull backup: %w", err)
	}
	if err := os.Rename(tempPath, livePath); err != nil {
		return rollback(err)
	}
	if err := store.Reopen(); err != nil {
		store.Close()
		return rollback(err)
	}
	if err := store.Ping(); err != nil {
		store.Close()
		return rollback(err)
	}

	os.Remove(backupPath)
	log.Info().Str("remote", remotePath).Msg("database replaced from remote")
	return nil
}
