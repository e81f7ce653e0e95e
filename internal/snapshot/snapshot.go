// Package snapshot archives conversation context files to Drive and
// maintains a JSON index of the archived snapshots, so memory survives
// host redeploys.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/amana/internal/types"
	"github.com/user/amana/internal/workspace"
)

// IndexEntry records one archived snapshot in the index.
type IndexEntry struct {
	Name      string `json:"name"`
	FileID    string `json:"file_id"`
	Link      string `json:"link,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Archiver uploads context snapshots to a Drive folder.
type Archiver struct {
	ws       *workspace.Client
	dataDir  string
	folderID string
	now      func() time.Time
}

// New creates an Archiver over the context directory. folderID names
// the Drive destination folder; empty disables archiving.
func New(ws *workspace.Client, dataDir, folderID string) *Archiver {
	return &Archiver{
		ws:       ws,
		dataDir:  dataDir,
		folderID: folderID,
		now:      time.Now,
	}
}

// Enabled reports whether a destination folder is configured.
func (a *Archiver) Enabled() bool {
	return a.folderID != ""
}

// Run archives every conversation context file and then uploads a
// refreshed index. Individual upload failures are logged and skipped so
// one bad file never blocks the rest.
func (a *Archiver) Run(ctx context.Context) error {
	if !a.Enabled() {
		return fmt.Errorf("snapshot folder not configured")
	}

	entries, err := os.ReadDir(a.dataDir)
	if err != nil {
		return fmt.Errorf("read context dir: %w", err)
	}

	stamp := a.now().UTC().Format("20060102-150405")
	index := make([]IndexEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(a.dataDir, entry.Name()))
		if err != nil {
			slog.Warn("snapshot read failed", "file", entry.Name(), "error", err)
			continue
		}
		name := fmt.Sprintf("%s_%s_CONTEXT.json", strings.TrimSuffix(entry.Name(), ".json"), stamp)
		file, err := a.ws.Upload(ctx, name, "application/json", content, a.folderID)
		if err != nil {
			slog.Warn("snapshot upload failed", "file", entry.Name(), "error", err)
			continue
		}
		index = append(index, IndexEntry{
			Name:      file.Name,
			FileID:    file.ID,
			Link:      file.WebViewLink,
			CreatedAt: a.now().UTC().Format(time.RFC3339),
		})
	}

	if len(index) == 0 {
		return fmt.Errorf("nothing archived")
	}
	if err := a.uploadIndex(ctx, index); err != nil {
		return err
	}
	slog.Info("snapshot complete", "files", len(index))
	return nil
}

// Snapshot archives a single conversation's context file.
func (a *Archiver) Snapshot(ctx context.Context, id types.ConversationID) (*workspace.DriveFile, error) {
	if !a.Enabled() {
		return nil, fmt.Errorf("snapshot folder not configured")
	}
	path := filepath.Join(a.dataDir, id.SafeKey()+".json")
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context: %w", err)
	}
	name := fmt.Sprintf("%s_%s_CONTEXT.json", id.SafeKey(), a.now().UTC().Format("20060102-150405"))
	return a.ws.Upload(ctx, name, "application/json", content, a.folderID)
}

func (a *Archiver) uploadIndex(ctx context.Context, index []IndexEntry) error {
	body, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if _, err := a.ws.Upload(ctx, "Amana_INDEX.json", "application/json", body, a.folderID); err != nil {
		return fmt.Errorf("upload index: %w", err)
	}
	return nil
}
