package repository

import (
	"context"

	"github.com/timmy/sermonkb/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmbeddingRepository caches chunk embeddings per provider/model identity.
// Cache rows never cross identities: a rebuild against a different
// provider sees only misses.
type EmbeddingRepository struct {
	db *gorm.DB
}

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// GetByChunkIDs returns cached vectors for the given chunks under one
// provider identity, keyed by chunk ID. Missing chunks are simply absent.
func (r *EmbeddingRepository) GetByChunkIDs(ctx context.Context, provider, model string, chunkIDs []int64) (map[int64][]byte, error) {
	if len(chunkIDs) == 0 {
		return map[int64][]byte{}, nil
	}
	var rows []domain.ChunkEmbedding
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND model = ? AND chunk_id IN ?", provider, model, chunkIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	cached := make(map[int64][]byte, len(rows))
	for _, row := range rows {
		cached[row.ChunkID] = row.Vector
	}
	return cached, nil
}

// UpsertBatch stores freshly computed embeddings, replacing any existing
// rows for the same (chunk, provider, model).
func (r *EmbeddingRepository) UpsertBatch(ctx context.Context, rows []domain.ChunkEmbedding) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chunk_id"}, {Name: "provider"}, {Name: "model"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

// PurgeStale removes cache rows whose chunks no longer exist.
func (r *EmbeddingRepository) PurgeStale(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("chunk_id NOT IN (SELECT chunk_id FROM chunks)").
		Delete(&domain.ChunkEmbedding{})
	return result.RowsAffected, result.Error
}

// CountByIdentity returns the number of cached vectors for one provider
// identity.
func (r *EmbeddingRepository) CountByIdentity(ctx context.Context, provider, model string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.ChunkEmbedding{}).
		Where("provider = ? AND model = ?", provider, model).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
