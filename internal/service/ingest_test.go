package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/timmy/sermonkb/internal/chunker"
	"github.com/timmy/sermonkb/internal/domain"
	"github.com/timmy/sermonkb/internal/logger"
	"github.com/timmy/sermonkb/internal/repository"
	"github.com/timmy/sermonkb/internal/source"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&domain.Video{}, &domain.Chunk{}, &domain.ChunkEmbedding{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeSource struct {
	items       []source.VideoItem
	transcripts map[string]string
	disabled    map[string]bool
	blocked     bool
}

func (f *fakeSource) GetSourceID() string    { return "fake" }
func (f *fakeSource) GetDisplayName() string { return "Fake source" }

func (f *fakeSource) ListVideos(ctx context.Context, cursor string, limit int) ([]source.VideoItem, string, error) {
	if f.blocked {
		return nil, "", source.ErrSourceBlocked
	}
	if cursor != "" {
		return nil, "", nil
	}
	return f.items, "", nil
}

func (f *fakeSource) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	if f.blocked {
		return "", source.ErrSourceBlocked
	}
	if f.disabled[videoID] {
		return "", source.ErrTranscriptsDisabled
	}
	return f.transcripts[videoID], nil
}

func newTestIngest(t *testing.T, db *gorm.DB) (*IngestService, *repository.VideoRepository, *repository.ChunkRepository) {
	t.Helper()
	split, err := chunker.New(chunker.Config{Unit: chunker.UnitChars, Size: 40, Overlap: 10})
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	videoRepo := repository.NewVideoRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	svc := NewIngestService(videoRepo, chunkRepo, split, logger.NewDefault(), 1, 10, 0, 0)
	return svc, videoRepo, chunkRepo
}

func TestIngestStoresTranscriptsAndChunks(t *testing.T) {
	db := newTestDB(t)
	svc, videoRepo, chunkRepo := newTestIngest(t, db)

	published := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		items: []source.VideoItem{
			{VideoID: "vid-1", Title: "On Hope", PublishedAt: published},
			{VideoID: "vid-2", Title: "No Captions", PublishedAt: published},
		},
		transcripts: map[string]string{
			"vid-1": "Hope is the anchor of the soul through every storm we face.",
		},
		disabled: map[string]bool{"vid-2": true},
	}

	stats, err := svc.IngestFromSource(context.Background(), src, 0, nil)
	if err != nil {
		t.Fatalf("IngestFromSource: %v", err)
	}
	if stats.TotalItems != 2 || stats.DisabledItems != 1 || stats.FailedItems != 0 {
		t.Errorf("stats = %+v", stats)
	}

	video, err := videoRepo.GetByID(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if video.TranscriptStatus != domain.TranscriptStatusAvailable {
		t.Errorf("status = %q", video.TranscriptStatus)
	}
	if !video.PublishedAt.Equal(published) {
		t.Errorf("published_at = %v, want %v", video.PublishedAt, published)
	}
	count, err := chunkRepo.CountByVideo(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("CountByVideo: %v", err)
	}
	if count == 0 {
		t.Error("no chunks stored for vid-1")
	}

	other, err := videoRepo.GetByID(context.Background(), "vid-2")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if other.TranscriptStatus != domain.TranscriptStatusDisabled {
		t.Errorf("status = %q, want disabled", other.TranscriptStatus)
	}
}

func TestIngestDisabledKeepsExistingTranscript(t *testing.T) {
	db := newTestDB(t)
	svc, videoRepo, chunkRepo := newTestIngest(t, db)

	src := &fakeSource{
		items: []source.VideoItem{{VideoID: "vid-1", Title: "On Hope"}},
		transcripts: map[string]string{
			"vid-1": "Hope is the anchor of the soul through every storm we face.",
		},
		disabled: map[string]bool{},
	}
	if _, err := svc.IngestFromSource(context.Background(), src, 0, nil); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	before, err := chunkRepo.CountByVideo(context.Background(), "vid-1")
	if err != nil || before == 0 {
		t.Fatalf("chunks before = %d, err = %v", before, err)
	}

	// The source now reports captions disabled for the same video
	src.disabled["vid-1"] = true
	stats, err := svc.IngestFromSource(context.Background(), src, 0, &IngestOptions{Force: true})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if stats.DisabledItems != 1 {
		t.Errorf("stats = %+v", stats)
	}

	video, err := videoRepo.GetByID(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if video.TranscriptStatus != domain.TranscriptStatusDisabled {
		t.Errorf("status = %q, want disabled", video.TranscriptStatus)
	}
	if video.Transcript == "" {
		t.Error("previously fetched transcript was wiped")
	}
	after, err := chunkRepo.CountByVideo(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("CountByVideo: %v", err)
	}
	if after != before {
		t.Errorf("chunks = %d, want %d unchanged", after, before)
	}
}

func TestIngestSkipsAvailableWithoutForce(t *testing.T) {
	db := newTestDB(t)
	svc, _, _ := newTestIngest(t, db)

	src := &fakeSource{
		items:       []source.VideoItem{{VideoID: "vid-1", Title: "On Hope"}},
		transcripts: map[string]string{"vid-1": "Hope is the anchor of the soul."},
	}
	if _, err := svc.IngestFromSource(context.Background(), src, 0, nil); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	stats, err := svc.IngestFromSource(context.Background(), src, 0, nil)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if stats.SkippedItems != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestIngestBlockedSourceAbortsRun(t *testing.T) {
	db := newTestDB(t)
	svc, _, _ := newTestIngest(t, db)

	src := &fakeSource{blocked: true}
	if _, err := svc.IngestFromSource(context.Background(), src, 0, nil); !errors.Is(err, source.ErrSourceBlocked) {
		t.Errorf("err = %v, want ErrSourceBlocked", err)
	}
}
