package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/sermonkb/internal/domain"
	"github.com/timmy/sermonkb/internal/index"
	"github.com/timmy/sermonkb/internal/logger"
	"github.com/timmy/sermonkb/internal/repository"
)

const indexerPageSize = 500

// VectorSink mirrors a finished index build into an external vector
// backend. The flat file artifacts remain the source of truth.
type VectorSink interface {
	ReplaceAll(ctx context.Context, entries []index.EntryRef, vectors [][]float32) error
}

// ArtifactPublisher uploads finished index artifacts to remote storage.
type ArtifactPublisher interface {
	Publish(ctx context.Context) error
}

// IndexerService rebuilds the vector index from all stored chunks. Cached
// embeddings are reused; only chunks the current provider identity has
// never embedded hit the provider.
type IndexerService struct {
	chunkRepo *repository.ChunkRepository
	embedRepo *repository.EmbeddingRepository
	embedder  Embedder
	store     *index.FileStore
	sink      VectorSink        // optional
	publisher ArtifactPublisher // optional
	logger    *logger.Logger
}

// NewIndexerService creates a new IndexerService. sink and publisher may
// be nil.
func NewIndexerService(
	chunkRepo *repository.ChunkRepository,
	embedRepo *repository.EmbeddingRepository,
	embedder Embedder,
	store *index.FileStore,
	sink VectorSink,
	publisher ArtifactPublisher,
	log *logger.Logger,
) *IndexerService {
	return &IndexerService{
		chunkRepo: chunkRepo,
		embedRepo: embedRepo,
		embedder:  embedder,
		store:     store,
		sink:      sink,
		publisher: publisher,
		logger:    log,
	}
}

func (s *IndexerService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// RebuildStats summarizes one index rebuild.
type RebuildStats struct {
	Chunks      int
	Embedded    int
	CacheHits   int
	PurgedCache int64
	Dimension   int
	StartTime   time.Time
	EndTime     time.Time
}

// Rebuild embeds every chunk and atomically replaces the index artifacts.
// Readers keep serving the previous index until both files are renamed
// into place.
func (s *IndexerService) Rebuild(ctx context.Context) (*RebuildStats, error) {
	stats := &RebuildStats{
		StartTime: time.Now(),
		Dimension: s.embedder.Dimension(),
	}
	ctx = logger.SetProvider(ctx, s.embedder.Name())

	cachedCount, err := s.embedRepo.CountByIdentity(ctx, s.embedder.Name(), s.embedder.Model())
	if err != nil {
		return nil, fmt.Errorf("failed to count cached embeddings: %w", err)
	}
	s.log(ctx).WithFields(logger.Fields{
		"provider":  s.embedder.Name(),
		"model":     s.embedder.Model(),
		"dimension": s.embedder.Dimension(),
		"cached":    cachedCount,
	}).Info("Starting index rebuild")

	flat, err := index.NewFlat(s.embedder.Dimension())
	if err != nil {
		return nil, err
	}
	var entries []index.EntryRef
	var allVectors [][]float32
	keepVectors := s.sink != nil

	afterID := int64(0)
	for {
		chunks, err := s.chunkRepo.ListPage(ctx, afterID, indexerPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to page chunks: %w", err)
		}
		if len(chunks) == 0 {
			break
		}
		afterID = chunks[len(chunks)-1].ChunkID

		vectors, embedded, err := s.embedPage(ctx, chunks)
		if err != nil {
			return nil, err
		}
		stats.Embedded += embedded
		stats.CacheHits += len(chunks) - embedded

		for i, chunk := range chunks {
			if err := flat.Add(vectors[i]); err != nil {
				return nil, fmt.Errorf("chunk %d: %w", chunk.ChunkID, err)
			}
			entries = append(entries, index.EntryRef{
				ChunkID: chunk.ChunkID,
				VideoID: chunk.VideoID,
			})
			if keepVectors {
				allVectors = append(allVectors, vectors[i])
			}
		}
		stats.Chunks += len(chunks)
	}

	meta := &index.Metadata{
		Provider: s.embedder.Name(),
		Model:    s.embedder.Model(),
		BuiltAt:  time.Now().UTC(),
		Entries:  entries,
	}
	if err := s.store.Save(flat, meta); err != nil {
		return nil, fmt.Errorf("failed to save index artifacts: %w", err)
	}

	// Cache rows for chunks that were regenerated away are dead weight
	if purged, err := s.embedRepo.PurgeStale(ctx); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to purge stale embedding cache rows")
	} else {
		stats.PurgedCache = purged
	}

	if s.sink != nil {
		if err := s.sink.ReplaceAll(ctx, entries, allVectors); err != nil {
			// The file artifacts are already published; the sink can be
			// refilled on the next rebuild.
			s.log(ctx).WithError(err).Error("Failed to mirror index into vector backend")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx); err != nil {
			s.log(ctx).WithError(err).Error("Failed to upload index artifacts")
		}
	}

	stats.EndTime = time.Now()
	s.log(ctx).WithFields(logger.Fields{
		"chunks":     stats.Chunks,
		"embedded":   stats.Embedded,
		"cache_hits": stats.CacheHits,
		"purged":     stats.PurgedCache,
		"duration":   stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Index rebuild completed")
	return stats, nil
}

// embedPage returns one vector per chunk in input order, serving from the
// embedding cache where possible.
func (s *IndexerService) embedPage(ctx context.Context, chunks []domain.Chunk) ([][]float32, int, error) {
	chunkIDs := make([]int64, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ChunkID
	}

	cached, err := s.embedRepo.GetByChunkIDs(ctx, s.embedder.Name(), s.embedder.Model(), chunkIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read embedding cache: %w", err)
	}

	vectors := make([][]float32, len(chunks))
	var missing []int
	var missingTexts []string
	for i, chunk := range chunks {
		blob, ok := cached[chunk.ChunkID]
		if !ok {
			missing = append(missing, i)
			missingTexts = append(missingTexts, chunk.Content)
			continue
		}
		vec, err := index.DecodeVector(blob, s.embedder.Dimension())
		if err != nil {
			// Corrupt or wrong-width cache row; re-embed
			missing = append(missing, i)
			missingTexts = append(missingTexts, chunk.Content)
			continue
		}
		vectors[i] = vec
	}

	if len(missing) == 0 {
		return vectors, 0, nil
	}

	fresh, err := s.embedder.EmbedBatch(ctx, missingTexts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(fresh) != len(missing) {
		return nil, 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missing))
	}

	rows := make([]domain.ChunkEmbedding, len(missing))
	for j, i := range missing {
		vectors[i] = fresh[j]
		rows[j] = domain.ChunkEmbedding{
			ChunkID:   chunks[i].ChunkID,
			Provider:  s.embedder.Name(),
			Model:     s.embedder.Model(),
			Dimension: len(fresh[j]),
			Vector:    index.EncodeVector(fresh[j]),
		}
	}
	if err := s.embedRepo.UpsertBatch(ctx, rows); err != nil {
		return nil, 0, fmt.Errorf("failed to write embedding cache: %w", err)
	}
	return vectors, len(missing), nil
}
