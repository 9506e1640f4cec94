package service

import (
	"context"
	"testing"

	"github.com/timmy/sermonkb/internal/domain"
	"github.com/timmy/sermonkb/internal/index"
	"github.com/timmy/sermonkb/internal/logger"
	"github.com/timmy/sermonkb/internal/repository"
)

func newTestIndexer(t *testing.T) (*IndexerService, *repository.ChunkRepository, *index.FileStore) {
	t.Helper()
	db := newTestDB(t)
	chunkRepo := repository.NewChunkRepository(db)
	embedRepo := repository.NewEmbeddingRepository(db)
	embedder, err := NewLocalEmbedder(8)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	store := index.NewFileStore(t.TempDir())
	svc := NewIndexerService(chunkRepo, embedRepo, embedder, store, nil, nil, logger.NewDefault())
	return svc, chunkRepo, store
}

func seedChunks(t *testing.T, chunkRepo *repository.ChunkRepository, videoID string, contents []string) {
	t.Helper()
	chunks := make([]domain.Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = domain.Chunk{Position: i, Content: content}
	}
	if err := chunkRepo.ReplaceForVideo(context.Background(), videoID, chunks); err != nil {
		t.Fatalf("ReplaceForVideo: %v", err)
	}
}

func TestRebuildPublishesLoadableArtifacts(t *testing.T) {
	svc, chunkRepo, store := newTestIndexer(t)
	seedChunks(t, chunkRepo, "vid-1", []string{
		"Hope is the anchor of the soul.",
		"Patience grows in seasons of waiting.",
		"Forgiveness is given, not earned.",
	})

	stats, err := svc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if stats.Chunks != 3 || stats.Embedded != 3 || stats.CacheHits != 0 {
		t.Errorf("stats = %+v", stats)
	}

	flat, meta, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if flat.Len() != 3 || len(meta.Entries) != 3 {
		t.Errorf("index has %d vectors, metadata %d entries", flat.Len(), len(meta.Entries))
	}
	if meta.Provider != "local" {
		t.Errorf("provider = %q", meta.Provider)
	}
	for _, entry := range meta.Entries {
		if entry.VideoID != "vid-1" || entry.ChunkID == 0 {
			t.Errorf("bad entry %+v", entry)
		}
	}
}

func TestRebuildServesRepeatFromCache(t *testing.T) {
	svc, chunkRepo, _ := newTestIndexer(t)
	seedChunks(t, chunkRepo, "vid-1", []string{
		"Hope is the anchor of the soul.",
		"Patience grows in seasons of waiting.",
	})

	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}
	stats, err := svc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	if stats.Embedded != 0 || stats.CacheHits != 2 {
		t.Errorf("stats = %+v, want all cache hits", stats)
	}
}

func TestRebuildPurgesCacheOfRegeneratedChunks(t *testing.T) {
	svc, chunkRepo, _ := newTestIndexer(t)
	seedChunks(t, chunkRepo, "vid-1", []string{
		"Hope is the anchor of the soul.",
		"Patience grows in seasons of waiting.",
		"Forgiveness is given, not earned.",
	})
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}

	// Regeneration allocates fresh chunk IDs; the old cache rows are dead
	seedChunks(t, chunkRepo, "vid-1", []string{
		"Hope is the anchor of the soul, rewritten.",
	})
	stats, err := svc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	if stats.Chunks != 1 || stats.Embedded != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.PurgedCache != 3 {
		t.Errorf("purged = %d, want 3", stats.PurgedCache)
	}
}
