package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"safedraft/internal/storage"
)

// NoteListTool handles the note_list MCP tool: browse the notebook.
type NoteListTool struct {
	store *storage.Store
}

// NewNoteListTool creates a NoteListTool.
func NewNoteListTool(store *storage.Store) *NoteListTool {
	return &NoteListTool{store: store}
}

// Definition returns the MCP tool definition for note_list.
func (t *NoteListTool) Definition() mcp.Tool {
	return mcp.NewTool("note_list",
		mcp.WithDescription(
			"List notebook folders and notes. Optionally filter notes to one folder "+
				"or by a case-insensitive keyword over title and content. Trashed notes are excluded.",
		),
		mcp.WithString("folder_uuid",
			mcp.Description("Restrict to a single folder; omit for all folders"),
		),
		mcp.WithString("keyword",
			mcp.Description("Substring filter over note title and content"),
		),
	)
}

// Handle processes the note_list tool call.
func (t *NoteListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folderUUID := req.GetString("folder_uuid", "")
	keyword := req.GetString("keyword", "")

	folders, err := t.store.Folders()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list folders: %v", err)), nil
	}
	notes, err := t.store.Notes(folderUUID, keyword)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list notes: %v", err)), nil
	}

	out := fmt.Sprintf("%d folder(s), %d note(s)\n", len(folders), len(notes))
	if len(folders) > 0 {
		out += "\nFolders:\n"
		for _, f := range folders {
			out += fmt.Sprintf("- %s  (%s)\n", f.Name, f.UUID)
		}
	}
	if len(notes) > 0 {
		out += "\nNotes:\n"
		for _, n := range notes {
			loc := "unfiled"
			if n.FolderUUID != "" {
				loc = n.FolderUUID
			}
			out += fmt.Sprintf("- %s  (%s, in %s, updated %s)\n  %s\n",
				n.Title, n.UUID, loc, n.UpdatedAt, excerpt(n.Content, 200))
		}
	}
	return mcp.NewToolResultText(out), nil
}

// ─── NoteSaveTool ───────────────────────────────────────────────────────────

// NoteSaveTool handles the note_save MCP tool: create a note or update
// an existing one.
type NoteSaveTool struct {
	store *storage.Store
}

// NewNoteSaveTool creates a NoteSaveTool.
func NewNoteSaveTool(store *storage.Store) *NoteSaveTool {
	return &NoteSaveTool{store: store}
}

// Definition returns the MCP tool definition for note_save.
func (t *NoteSaveTool) Definition() mcp.Tool {
	return mcp.NewTool("note_save",
		mcp.WithDescription(
			"Create a notebook note, or update an existing one when 'uuid' is given. "+
				"Use this to promote recovered draft text into a durable, organized note.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Note title"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Note body"),
		),
		mcp.WithString("uuid",
			mcp.Description("Existing note to update; omit to create a new one"),
		),
		mcp.WithString("folder_uuid",
			mcp.Description("Folder for a new note; omit for unfiled"),
		),
	)
}

// Handle processes the note_save tool call.
func (t *NoteSaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	content := req.GetString("content", "")
	if title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	if noteUUID := req.GetString("uuid", ""); noteUUID != "" {
		existing, err := t.store.NoteByUUID(noteUUID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to look up note: %v", err)), nil
		}
		if existing == nil {
			return mcp.NewToolResultError(fmt.Sprintf("note %s does not exist", noteUUID)), nil
		}
		if err := t.store.UpdateNote(noteUUID, title, content); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to update note: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Note updated: %q\nUUID: %s", title, noteUUID)), nil
	}

	noteUUID, err := t.store.CreateNote(req.GetString("folder_uuid", ""), title, content)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create note: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Note created: %q\nUUID: %s", title, noteUUID)), nil
}
