package repository

import (
	"context"

	"github.com/timmy/sermonkb/internal/domain"
	"gorm.io/gorm"
)

// ChunkRepository handles transcript chunk data operations.
type ChunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceForVideo regenerates the chunk set of a video atomically: the old
// chunks are deleted and the new ones inserted inside one transaction, so
// a failure leaves the previous set intact. Chunk IDs are allocated by the
// database and stay monotonic across regenerations.
func (r *ChunkRepository) ReplaceForVideo(ctx context.Context, videoID string, chunks []domain.Chunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", videoID).Delete(&domain.Chunk{}).Error; err != nil {
			return err
		}
		for i := range chunks {
			chunks[i].ChunkID = 0
			chunks[i].VideoID = videoID
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.Create(&chunks).Error
	})
}

// GetByIDs retrieves chunks for the given IDs. Stale IDs are simply absent
// from the result.
func (r *ChunkRepository) GetByIDs(ctx context.Context, chunkIDs []int64) ([]domain.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	var chunks []domain.Chunk
	if err := r.db.WithContext(ctx).
		Where("chunk_id IN ?", chunkIDs).
		Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// ListPage retrieves chunks in chunk ID order, for index builds. afterID
// is exclusive; pass 0 for the first page.
func (r *ChunkRepository) ListPage(ctx context.Context, afterID int64, limit int) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	if err := r.db.WithContext(ctx).
		Where("chunk_id > ?", afterID).
		Order("chunk_id").
		Limit(limit).
		Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// Count returns the total number of chunks.
func (r *ChunkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Chunk{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByVideo returns the number of chunks for a video.
func (r *ChunkRepository) CountByVideo(ctx context.Context, videoID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Chunk{}).
		Where("video_id = ?", videoID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
