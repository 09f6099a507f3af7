// Package export dumps the draft history as a marks JSON file, the
// interchange format used by note-gen style collectors.
package export

import (
	"encoding/json"
	"fmt"
	"os"

	"safedraft/internal/storage"
)

// Mark is one exported draft entry. CreatedAt is unix milliseconds.
type Mark struct {
	ID        int64   `json:"id"`
	TagID     int     `json:"tagId"`
	Type      string  `json:"type"`
	Content   string  `json:"content"`
	URL       *string `json:"url"`
	Desc      string  `json:"desc"`
	Deleted   int     `json:"deleted"`
	CreatedAt int64   `json:"createdAt"`
}

// WriteMarks writes every draft to outPath, newest-created first, and
// returns the number of entries written.
func WriteMarks(store *storage.Store, outPath string) (int, error) {
	drafts, err := store.HistoryByCreation()
	if err != nil {
		return 0, fmt.Errorf("export: read drafts: %w", err)
	}

	marks := make([]Mark, 0, len(drafts))
	for _, d := range drafts {
		created, err := storage.ParseTime(d.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("export: draft %d timestamp: %w", d.ID, err)
		}
		marks = append(marks, Mark{
			ID:        d.ID,
			TagID:     1,
			Type:      "text",
			Content:   d.Content,
			Desc:      d.Content,
			CreatedAt: created.UnixMilli(),
		})
	}

	data, err := json.MarshalIndent(marks, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("export: encode: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0600); err != nil {
		return 0, fmt.Errorf("export: write %s: %w", outPath, err)
	}
	return len(marks), nil
}
