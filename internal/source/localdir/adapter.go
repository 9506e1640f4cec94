package localdir

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/sermonkb/internal/source"
)

const (
	SourceID   = "localdir"
	SourceName = "Local Directory"
)

// Adapter implements TranscriptSource over a directory of transcript
// files. Each video is a <video_id>.txt file holding the transcript; an
// optional <video_id>.json sidecar carries title and publish date.
type Adapter struct {
	dir    string
	items  []source.VideoItem
	loaded bool
}

type sidecar struct {
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// NewAdapter creates a new local directory adapter.
func NewAdapter(dir string) *Adapter {
	return &Adapter{dir: dir}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return SourceName
}

// ListVideos pages through the directory listing. The cursor is the index
// into the sorted file list.
func (a *Adapter) ListVideos(ctx context.Context, cursor string, limit int) ([]source.VideoItem, string, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, "", fmt.Errorf("failed to scan transcript directory: %w", err)
		}
		a.loaded = true
	}

	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
	}
	if start >= len(a.items) {
		return []source.VideoItem{}, "", nil
	}

	end := start + limit
	if limit <= 0 || end > len(a.items) {
		end = len(a.items)
	}

	nextCursor := ""
	if end < len(a.items) {
		nextCursor = strconv.Itoa(end)
	}
	return a.items[start:end], nextCursor, nil
}

// FetchTranscript reads the transcript file for a video. An empty file
// counts as transcripts disabled.
func (a *Adapter) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(a.dir, videoID+".txt"))
	if os.IsNotExist(err) {
		return "", source.ErrTranscriptsDisabled
	}
	if err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", source.ErrTranscriptsDisabled
	}
	return text, nil
}

func (a *Adapter) loadItems() error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return err
	}

	a.items = a.items[:0]
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		videoID := strings.TrimSuffix(entry.Name(), ".txt")
		item := source.VideoItem{VideoID: videoID, Title: videoID}

		if raw, err := os.ReadFile(filepath.Join(a.dir, videoID+".json")); err == nil {
			var meta sidecar
			if err := json.Unmarshal(raw, &meta); err == nil {
				if meta.Title != "" {
					item.Title = meta.Title
				}
				item.PublishedAt = meta.PublishedAt
			}
		}
		a.items = append(a.items, item)
	}

	sort.Slice(a.items, func(i, j int) bool {
		return a.items[i].VideoID < a.items[j].VideoID
	})
	return nil
}
