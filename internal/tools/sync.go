package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"safedraft/internal/syncer"
)

// SyncNowTool handles the sync_now MCP tool: an explicit, user-visible
// pull-and-merge against the remote store. Unlike the background push
// path, errors here are surfaced to the caller.
type SyncNowTool struct {
	coord *syncer.Coordinator
}

// NewSyncNowTool creates a SyncNowTool. coord may be nil when row-level
// sync is not configured; the tool then reports that sync is off.
func NewSyncNowTool(coord *syncer.Coordinator) *SyncNowTool {
	return &SyncNowTool{coord: coord}
}

// Definition returns the MCP tool definition for sync_now.
func (t *SyncNowTool) Definition() mcp.Tool {
	return mcp.NewTool("sync_now",
		mcp.WithDescription(
			"Synchronize with the remote store immediately: push all local drafts, folders and "+
				"notes, then pull remote rows and merge them in (newer wins). Reports how many "+
				"local rows changed.",
		),
	)
}

// Handle processes the sync_now tool call.
func (t *SyncNowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.coord == nil {
		return mcp.NewToolResultError("remote sync is not configured (sync_mode is off or ssh)"), nil
	}

	if err := t.coord.PushAll(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("push failed: %v", err)), nil
	}
	changed, err := t.coord.PullAndMerge(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pull failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Sync complete. %d local row(s) updated from remote.", changed)), nil
}
