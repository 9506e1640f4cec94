package service

import (
	"context"
	"errors"
	"testing"

	"github.com/timmy/sermonkb/internal/domain"
	"github.com/timmy/sermonkb/internal/index"
)

type fakeSearcher struct {
	candidates []index.Candidate
	gotK       int
}

func (f *fakeSearcher) Search(ctx context.Context, vector []float32, k int) ([]index.Candidate, error) {
	f.gotK = k
	if k < len(f.candidates) {
		return f.candidates[:k], nil
	}
	return f.candidates, nil
}

func (f *fakeSearcher) Size(ctx context.Context) (int, error) { return len(f.candidates), nil }
func (f *fakeSearcher) Identity() (provider, model string)    { return "local", "feature-hash-8" }
func (f *fakeSearcher) Close() error                          { return nil }

type fakeChunkResolver map[int64]domain.Chunk

func (f fakeChunkResolver) GetByIDs(ctx context.Context, chunkIDs []int64) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, id := range chunkIDs {
		if c, ok := f[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

type fakeVideoResolver map[string]domain.Video

func (f fakeVideoResolver) GetByIDs(ctx context.Context, videoIDs []string) ([]domain.Video, error) {
	var videos []domain.Video
	for _, id := range videoIDs {
		if v, ok := f[id]; ok {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

func newTestRetrieval(t *testing.T, searcher index.Searcher, chunks fakeChunkResolver, videos fakeVideoResolver) *RetrievalService {
	t.Helper()
	embedder, err := NewLocalEmbedder(8)
	if err != nil {
		t.Fatalf("NewLocalEmbedder: %v", err)
	}
	return NewRetrievalService(embedder, searcher, chunks, videos, 5, 50)
}

func TestRetrieveResolvesChunksInRankOrder(t *testing.T) {
	searcher := &fakeSearcher{candidates: []index.Candidate{
		{ChunkID: 2, VideoID: "v1", Distance: 0.1},
		{ChunkID: 7, VideoID: "v2", Distance: 0.4},
	}}
	chunks := fakeChunkResolver{
		2: {ChunkID: 2, VideoID: "v1", Position: 0, Content: "first"},
		7: {ChunkID: 7, VideoID: "v2", Position: 3, Content: "second"},
	}
	videos := fakeVideoResolver{
		"v1": {VideoID: "v1", Title: "Sermon One"},
		"v2": {VideoID: "v2", Title: "Sermon Two"},
	}

	svc := newTestRetrieval(t, searcher, chunks, videos)
	results, err := svc.Retrieve(context.Background(), "hope", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ChunkID != 2 || results[1].ChunkID != 7 {
		t.Errorf("results out of rank order: %+v", results)
	}
	if results[0].VideoTitle != "Sermon One" {
		t.Errorf("video join failed: %+v", results[0])
	}
}

func TestRetrieveSkipsStaleChunks(t *testing.T) {
	searcher := &fakeSearcher{candidates: []index.Candidate{
		{ChunkID: 1, VideoID: "v1", Distance: 0.1},
		{ChunkID: 99, VideoID: "v1", Distance: 0.2}, // regenerated away
		{ChunkID: 3, VideoID: "v1", Distance: 0.3},
	}}
	chunks := fakeChunkResolver{
		1: {ChunkID: 1, VideoID: "v1", Content: "a"},
		3: {ChunkID: 3, VideoID: "v1", Content: "b"},
	}
	videos := fakeVideoResolver{"v1": {VideoID: "v1", Title: "Sermon"}}

	svc := newTestRetrieval(t, searcher, chunks, videos)
	results, err := svc.Retrieve(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (stale hit skipped)", len(results))
	}
	if results[0].ChunkID != 1 || results[1].ChunkID != 3 {
		t.Errorf("results = %+v", results)
	}
}

func TestRetrieveClampsTopK(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newTestRetrieval(t, searcher, fakeChunkResolver{}, fakeVideoResolver{})

	// Zero uses the default
	if _, err := svc.Retrieve(context.Background(), "q", 0); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if searcher.gotK != 5 {
		t.Errorf("k = %d, want default 5", searcher.gotK)
	}

	// Above the cap is clamped
	if _, err := svc.Retrieve(context.Background(), "q", 500); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if searcher.gotK != 50 {
		t.Errorf("k = %d, want cap 50", searcher.gotK)
	}
}

func TestRetrieveWithoutIndex(t *testing.T) {
	svc := newTestRetrieval(t, nil, fakeChunkResolver{}, fakeVideoResolver{})
	if _, err := svc.Retrieve(context.Background(), "q", 5); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("Retrieve = %v, want ErrIndexUnavailable", err)
	}
}
