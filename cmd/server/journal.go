package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/brandon/mcp-mailbox/internal/audit"
)

type journalReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
}

type journalLine struct {
	ID        string   `json:"id"`
	Action    string   `json:"action"`
	Folder    string   `json:"folder"`
	UIDs      []string `json:"uids"`
	Requested int      `json:"requested"`
	CreatedAt string   `json:"createdAt"`
}

// printJournal writes the newest limit journal entries to w, one JSON object per line
func printJournal(ctx context.Context, j journalReader, limit int, w io.Writer) error {
	entries, err := j.Recent(ctx, limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for _, e := range entries {
		line := journalLine{
			ID:        e.ID,
			Action:    e.Action,
			Folder:    e.Folder,
			UIDs:      e.UIDs,
			Requested: e.Requested,
			CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write journal entry: %w", err)
		}
	}
	return nil
}
