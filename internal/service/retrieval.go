package service

import (
	"context"
	"time"

	"github.com/timmy/sermonkb/internal/domain"
	"github.com/timmy/sermonkb/internal/index"
	"github.com/timmy/sermonkb/internal/logger"
)

// ChunkResolver resolves chunk IDs to stored chunks.
type ChunkResolver interface {
	GetByIDs(ctx context.Context, chunkIDs []int64) ([]domain.Chunk, error)
}

// VideoResolver resolves video IDs to stored videos.
type VideoResolver interface {
	GetByIDs(ctx context.Context, videoIDs []string) ([]domain.Video, error)
}

// RetrievedChunk is one semantic search result joined with its video.
type RetrievedChunk struct {
	ChunkID     int64     `json:"chunk_id"`
	VideoID     string    `json:"video_id"`
	VideoTitle  string    `json:"video_title"`
	PublishedAt time.Time `json:"published_at"`
	Position    int       `json:"position"`
	Content     string    `json:"content"`
	Distance    float32   `json:"distance"`
}

// RetrievalService embeds a query, searches the vector index, and resolves
// the hits back to transcript chunks and their videos.
type RetrievalService struct {
	embedder    Embedder
	searcher    index.Searcher
	chunks      ChunkResolver
	videos      VideoResolver
	defaultTopK int
	maxTopK     int
}

// NewRetrievalService creates a new RetrievalService.
func NewRetrievalService(embedder Embedder, searcher index.Searcher, chunks ChunkResolver, videos VideoResolver, defaultTopK, maxTopK int) *RetrievalService {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if maxTopK <= 0 {
		maxTopK = 50
	}
	return &RetrievalService{
		embedder:    embedder,
		searcher:    searcher,
		chunks:      chunks,
		videos:      videos,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
}

// Retrieve returns the topK chunks most similar to the query, nearest
// first. topK <= 0 uses the default, values above the cap are clamped.
// Index hits whose chunks were regenerated since the last index build are
// skipped rather than failing the whole search.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, topK int) ([]RetrievedChunk, error) {
	if s.searcher == nil {
		return nil, domain.ErrIndexUnavailable
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := s.searcher.Search(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	chunkIDs := make([]int64, len(candidates))
	for i, c := range candidates {
		chunkIDs[i] = c.ChunkID
	}
	chunks, err := s.chunks.GetByIDs(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}
	chunksByID := make(map[int64]domain.Chunk, len(chunks))
	for _, c := range chunks {
		chunksByID[c.ChunkID] = c
	}

	videoIDs := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.VideoID]; !ok {
			seen[c.VideoID] = struct{}{}
			videoIDs = append(videoIDs, c.VideoID)
		}
	}
	videos, err := s.videos.GetByIDs(ctx, videoIDs)
	if err != nil {
		return nil, err
	}
	videosByID := make(map[string]domain.Video, len(videos))
	for _, v := range videos {
		videosByID[v.VideoID] = v
	}

	results := make([]RetrievedChunk, 0, len(candidates))
	for _, c := range candidates {
		chunk, ok := chunksByID[c.ChunkID]
		if !ok {
			// Chunk was regenerated after the index build; a stale hit
			// is skipped, not fatal.
			logger.CtxDebug(logger.WithField(ctx, logger.FieldChunkID, c.ChunkID),
				"Skipping stale index hit for chunk %d (video %s)", c.ChunkID, c.VideoID)
			continue
		}
		video, ok := videosByID[chunk.VideoID]
		if !ok {
			logger.CtxDebug(ctx, "Skipping chunk %d: video %s no longer exists", c.ChunkID, chunk.VideoID)
			continue
		}
		results = append(results, RetrievedChunk{
			ChunkID:     chunk.ChunkID,
			VideoID:     chunk.VideoID,
			VideoTitle:  video.Title,
			PublishedAt: video.PublishedAt,
			Position:    chunk.Position,
			Content:     chunk.Content,
			Distance:    c.Distance,
		})
	}
	return results, nil
}
