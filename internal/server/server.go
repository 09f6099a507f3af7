// Package server wires the MCP components and creates the server
// instance. This is the composition root: it injects the shared store
// and sync coordinator into the tool handlers. No business logic lives
// here, only wiring.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"safedraft/internal/storage"
	"safedraft/internal/syncer"
	"safedraft/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with all draft and notebook tools
// registered. coord may be nil when remote sync is not configured; the
// tools then run without push scheduling and sync_now reports sync off.
func New(store *storage.Store, coord *syncer.Coordinator) *server.MCPServer {
	s := server.NewMCPServer(
		"safedraft",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	var notify func()
	if coord != nil {
		notify = coord.NotifyDraftSaved
	}

	saveTool := tools.NewDraftSaveTool(store, notify)
	s.AddTool(saveTool.Definition(), saveTool.Handle)

	snapshotTool := tools.NewDraftSnapshotTool(store, notify)
	s.AddTool(snapshotTool.Definition(), snapshotTool.Handle)

	searchTool := tools.NewDraftSearchTool(store)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	dedupeTool := tools.NewDraftDedupeTool(store)
	s.AddTool(dedupeTool.Definition(), dedupeTool.Handle)

	noteListTool := tools.NewNoteListTool(store)
	s.AddTool(noteListTool.Definition(), noteListTool.Handle)

	noteSaveTool := tools.NewNoteSaveTool(store)
	s.AddTool(noteSaveTool.Definition(), noteSaveTool.Handle)

	syncTool := tools.NewSyncNowTool(coord)
	s.AddTool(syncTool.Definition(), syncTool.Handle)

	return s
}

func serverInstructions() string {
	return `SafeDraft is a local safety net for text drafts: everything the user types
into risky windows (chat apps, editors that lose state) can be archived,
searched, and promoted into organized notes.

Use draft_save to archive text the user risks losing, draft_snapshot to
checkpoint work in progress, and draft_search to recover earlier text.
note_save and note_list manage the durable notebook. sync_now reconciles
with the configured remote store when the user asks to sync.`
}
