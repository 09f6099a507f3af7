// Package tools provides the MCP tool handlers for the draft capture
// and notebook surfaces.
//
// Each tool handler follows the same pattern:
// - A struct with dependencies (storage.Store, sync hooks) injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"safedraft/internal/storage"
)

// DraftSaveTool handles the draft_save MCP tool: archive a piece of
// text as a new draft row.
type DraftSaveTool struct {
	store  *storage.Store
	notify func()
}

// NewDraftSaveTool creates a DraftSaveTool. notify is invoked after a
// successful save to schedule a remote push; it may be nil when sync is
// off.
func NewDraftSaveTool(store *storage.Store, notify func()) *DraftSaveTool {
	return &DraftSaveTool{store: store, notify: notify}
}

// Definition returns the MCP tool definition for draft_save.
func (t *DraftSaveTool) Definition() mcp.Tool {
	return mcp.NewTool("draft_save",
		mcp.WithDescription(
			"Archive a piece of text as a new draft in the local safety-net history. "+
				"Use this to preserve text the user is about to paste into a chat window or editor, "+
				"so it survives a crash, an accidental close, or a lost session.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The draft text to archive"),
		),
	)
}

// Handle processes the draft_save tool call.
func (t *DraftSaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	id, err := t.store.SaveContentForced(content)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save draft: %v", err)), nil
	}
	if id == 0 {
		return mcp.NewToolResultText("Nothing saved: content was blank."), nil
	}
	if t.notify != nil {
		t.notify()
	}
	return mcp.NewToolResultText(fmt.Sprintf("Draft archived.\nID: %d", id)), nil
}

// ─── DraftSnapshotTool ──────────────────────────────────────────────────────

// DraftSnapshotTool handles the draft_snapshot MCP tool: checkpoint the
// current text without ending the live session that produced it.
type DraftSnapshotTool struct {
	store  *storage.Store
	notify func()
}

// NewDraftSnapshotTool creates a DraftSnapshotTool.
func NewDraftSnapshotTool(store *storage.Store, notify func()) *DraftSnapshotTool {
	return &DraftSnapshotTool{store: store, notify: notify}
}

// Definition returns the MCP tool definition for draft_snapshot.
func (t *DraftSnapshotTool) Definition() mcp.Tool {
	return mcp.NewTool("draft_snapshot",
		mcp.WithDescription(
			"Save a checkpoint copy of in-progress text. Unlike draft_save this is meant for "+
				"work that will keep evolving: the checkpoint stays frozen as a branch-off point "+
				"while the live text continues to change.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The current text to checkpoint"),
		),
	)
}

// Handle processes the draft_snapshot tool call.
func (t *DraftSnapshotTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	id, err := t.store.SaveSnapshot(content)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to snapshot: %v", err)), nil
	}
	if id == 0 {
		return mcp.NewToolResultText("Nothing saved: content was blank."), nil
	}
	if t.notify != nil {
		t.notify()
	}
	return mcp.NewToolResultText(fmt.Sprintf("Snapshot saved.\nID: %d", id)), nil
}

// ─── DraftSearchTool ────────────────────────────────────────────────────────

// DraftSearchTool handles the draft_search MCP tool.
type DraftSearchTool struct {
	store *storage.Store
}

// NewDraftSearchTool creates a DraftSearchTool.
func NewDraftSearchTool(store *storage.Store) *DraftSearchTool {
	return &DraftSearchTool{store: store}
}

// Definition returns the MCP tool definition for draft_search.
func (t *DraftSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("draft_search",
		mcp.WithDescription(
			"Search the draft history. Returns drafts newest-first, optionally filtered by a "+
				"case-insensitive keyword over their content. Use this to recover text the user "+
				"typed earlier and lost.",
		),
		mcp.WithString("keyword",
			mcp.Description("Substring to filter draft content by; omit to list everything"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of drafts to return (default 20)"),
		),
	)
}

// Handle processes the draft_search tool call.
func (t *DraftSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword := req.GetString("keyword", "")
	limit := intArg(req, "limit", 20)

	drafts, err := t.store.History(keyword)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search drafts: %v", err)), nil
	}
	if len(drafts) == 0 {
		return mcp.NewToolResultText("No drafts found."), nil
	}
	if limit > 0 && len(drafts) > limit {
		drafts = drafts[:limit]
	}

	out := fmt.Sprintf("Found %d draft(s):\n", len(drafts))
	for _, d := range drafts {
		out += fmt.Sprintf("\n[%d] updated %s\n%s\n", d.ID, d.LastUpdatedAt, excerpt(d.Content, 400))
	}
	return mcp.NewToolResultText(out), nil
}

// ─── DraftDedupeTool ────────────────────────────────────────────────────────

// DraftDedupeTool handles the draft_dedupe MCP tool.
type DraftDedupeTool struct {
	store *storage.Store
}

// NewDraftDedupeTool creates a DraftDedupeTool.
func NewDraftDedupeTool(store *storage.Store) *DraftDedupeTool {
	return &DraftDedupeTool{store: store}
}

// Definition returns the MCP tool definition for draft_dedupe.
func (t *DraftDedupeTool) Definition() mcp.Tool {
	return mcp.NewTool("draft_dedupe",
		mcp.WithDescription(
			"Remove duplicate drafts, keeping only the newest copy of each distinct content. "+
				"A maintenance operation for a history cluttered by repeated archives of the same text.",
		),
	)
}

// Handle processes the draft_dedupe tool call.
func (t *DraftDedupeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	removed, err := t.store.DeduplicateDrafts()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to deduplicate: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed %d duplicate draft(s).", removed)), nil
}
