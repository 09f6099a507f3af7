package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"safedraft/internal/storage"
)

// ClickHouseConfig holds connection parameters for the remote store.
type ClickHouseConfig struct {
	Addr     string // host:port, native protocol
	Database string
	Username string
	Password string
}

// ClickHouseRemote implements Remote on a ClickHouse server. Drafts use
// a ReplacingMergeTree keyed by the deterministic draft key; folders
// and notes use ReplacingMergeTree(updated_at) so the server itself
// keeps the latest version per uuid. Reads use FINAL to present merged
// rows.
type ClickHouseRemote struct {
	conn driver.Conn
}

// DialClickHouse connects to the remote store and verifies the
// connection with a ping.
func DialClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseRemote, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("syncer: clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("syncer: clickhouse ping: %w", err)
	}
	return &ClickHouseRemote{conn: conn}, nil
}

func (r *ClickHouseRemote) Close() error {
	return r.conn.Close()
}

// EnsureSchema creates the remote tables if they do not exist.
func (r *ClickHouseRemote) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS safedraft_drafts (
			draft_key       String,
			content         String,
			created_at      String,
			last_updated_at String
		) ENGINE = ReplacingMergeTree
		ORDER BY draft_key`,

		`CREATE TABLE IF NOT EXISTS safedraft_folders (
			uuid       String,
			name       String,
			is_deleted UInt8,
			updated_at DateTime64(6, 'UTC')
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY uuid`,

		`CREATE TABLE IF NOT EXISTS safedraft_notes (
			uuid        String,
			folder_uuid String,
			title       String,
			content     String,
			is_deleted  UInt8,
			updated_at  DateTime64(6, 'UTC')
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY uuid`,
	}
	for _, q := range ddl {
		if err := r.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("syncer: ensure schema: %w", err)
		}
	}
	return nil
}

func (r *ClickHouseRemote) UpsertDrafts(ctx context.Context, rows []DraftRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := r.conn.PrepareBatch(ctx, `INSERT INTO safedraft_drafts`)
	if err != nil {
		return fmt.Errorf("syncer: upsert drafts: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row.Key, row.Content, row.CreatedAt, row.LastUpdatedAt); err != nil {
			return fmt.Errorf("syncer: upsert drafts: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("syncer: upsert drafts: %w", err)
	}
	return nil
}

func (r *ClickHouseRemote) UpsertFolders(ctx context.Context, rows []FolderRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := r.conn.PrepareBatch(ctx, `INSERT INTO safedraft_folders`)
	if err != nil {
		return fmt.Errorf("syncer: upsert folders: %w", err)
	}
	for _, row := range rows {
		ts, err := storage.ParseTime(row.UpdatedAt)
		if err != nil {
			return fmt.Errorf("syncer: upsert folders: %w", err)
		}
		if err := batch.Append(row.UUID, row.Name, boolToUInt8(row.IsDeleted), ts); err != nil {
			return fmt.Errorf("syncer: upsert folders: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("syncer: upsert folders: %w", err)
	}
	return nil
}

func (r *ClickHouseRemote) UpsertNotes(ctx context.Context, rows []NoteRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := r.conn.PrepareBatch(ctx, `INSERT INTO safedraft_notes`)
	if err != nil {
		return fmt.Errorf("syncer: upsert notes: %w", err)
	}
	for _, row := range rows {
		ts, err := storage.ParseTime(row.UpdatedAt)
		if err != nil {
			return fmt.Errorf("syncer: upsert notes: %w", err)
		}
		if err := batch.Append(row.UUID, row.FolderUUID, row.Title, row.Content, boolToUInt8(row.IsDeleted), ts); err != nil {
			return fmt.Errorf("syncer: upsert notes: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("syncer: upsert notes: %w", err)
	}
	return nil
}

func (r *ClickHouseRemote) FetchDrafts(ctx context.Context) ([]DraftRow, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT draft_key, content, created_at, last_updated_at FROM safedraft_drafts FINAL`,
	)
	if err != nil {
		return nil, fmt.Errorf("syncer: fetch drafts: %w", err)
	}
	defer rows.Close()

	var result []DraftRow
	for rows.Next() {
		var d DraftRow
		if err := rows.Scan(&d.Key, &d.Content, &d.CreatedAt, &d.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("syncer: fetch drafts: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *ClickHouseRemote) FetchFolders(ctx context.Context) ([]FolderRow, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT uuid, name, is_deleted, updated_at FROM safedraft_folders FINAL`,
	)
	if err != nil {
		return nil, fmt.Errorf("syncer: fetch folders: %w", err)
	}
	defer rows.Close()

	var result []FolderRow
	for rows.Next() {
		var (
			f       FolderRow
			deleted uint8
			ts      time.Time
		)
		if err := rows.Scan(&f.UUID, &f.Name, &deleted, &ts); err != nil {
			return nil, fmt.Errorf("syncer: fetch folders: %w", err)
		}
		f.IsDeleted = deleted != 0
		f.UpdatedAt = ts.UTC().Format(storage.TimeLayout)
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *ClickHouseRemote) FetchNotes(ctx context.Context) ([]NoteRow, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT uuid, folder_uuid, title, content, is_deleted, updated_at FROM safedraft_notes FINAL`,
	)
	if err != nil {
		return nil, fmt.Errorf("syncer: fetch notes: %w", err)
	}
	defer rows.Close()

	var result []NoteRow
	for rows.Next() {
		var (
			n       NoteRow
			deleted uint8
			ts      time.Time
		)
		if err := rows.Scan(&n.UUID, &n.FolderUUID, &n.Title, &n.Content, &deleted, &ts); err != nil {
			return nil, fmt.Errorf("syncer: fetch notes: %w", err)
		}
		n.IsDeleted = deleted != 0
		n.UpdatedAt = ts.UTC().Format(storage.TimeLayout)
		result = append(result, n)
	}
	return result, rows.Err()
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
