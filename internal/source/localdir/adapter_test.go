package localdir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/timmy/sermonkb/internal/source"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestListVideosPagination(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vid-a.txt", "first transcript")
	writeFile(t, dir, "vid-b.txt", "second transcript")
	writeFile(t, dir, "vid-c.txt", "third transcript")
	writeFile(t, dir, "notes.md", "not a transcript")

	a := NewAdapter(dir)

	items, cursor, err := a.ListVideos(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(items) != 2 || items[0].VideoID != "vid-a" || items[1].VideoID != "vid-b" {
		t.Fatalf("first page = %+v", items)
	}
	if cursor == "" {
		t.Fatal("expected a next cursor")
	}

	items, cursor, err = a.ListVideos(context.Background(), cursor, 2)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(items) != 1 || items[0].VideoID != "vid-c" {
		t.Fatalf("second page = %+v", items)
	}
	if cursor != "" {
		t.Errorf("cursor = %q, want empty at end", cursor)
	}
}

func TestListVideosReadsSidecarMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vid-a.txt", "transcript")
	writeFile(t, dir, "vid-a.json", `{"title":"On Hope","published_at":"2024-05-01T00:00:00Z"}`)

	a := NewAdapter(dir)
	items, _, err := a.ListVideos(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Title != "On Hope" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[0].PublishedAt.IsZero() {
		t.Error("published date not parsed from sidecar")
	}
}

func TestFetchTranscript(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vid-a.txt", "  the full transcript  \n")
	writeFile(t, dir, "vid-empty.txt", "   \n")

	a := NewAdapter(dir)

	text, err := a.FetchTranscript(context.Background(), "vid-a")
	if err != nil {
		t.Fatalf("FetchTranscript: %v", err)
	}
	if text != "the full transcript" {
		t.Errorf("transcript = %q", text)
	}

	if _, err := a.FetchTranscript(context.Background(), "vid-empty"); !errors.Is(err, source.ErrTranscriptsDisabled) {
		t.Errorf("empty file: err = %v, want ErrTranscriptsDisabled", err)
	}
	if _, err := a.FetchTranscript(context.Background(), "vid-missing"); !errors.Is(err, source.ErrTranscriptsDisabled) {
		t.Errorf("missing file: err = %v, want ErrTranscriptsDisabled", err)
	}
}
